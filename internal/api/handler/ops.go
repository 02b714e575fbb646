// Package handler provides HTTP handlers for the series API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/breatheroute/airseries/internal/api/models"
	"github.com/breatheroute/airseries/internal/api/response"
	"github.com/breatheroute/airseries/internal/provider/resilience"
)

// readinessTimeout bounds all readiness checks of one request.
const readinessTimeout = 2 * time.Second

// ReadinessCheck checks one dependency the service needs to serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds configuration for the OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Registry reports upstream provider health. Optional.
	Registry *resilience.Registry

	// Checks are run by the readiness and status endpoints.
	Checks []ReadinessCheck
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	config OpsConfig
	now    func() time.Time
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{config: cfg, now: time.Now}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.config.Version,
			"buildTime": h.config.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - 503 while any dependency check fails.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
	}
	status := http.StatusOK
	for _, s := range subsystems {
		if s.Status != models.HealthStatusOK {
			if health.Details == nil {
				health.Details = map[string]interface{}{}
			}
			health.Details[s.Name] = *s.Detail
			health.Status = models.HealthStatusFail
			status = http.StatusServiceUnavailable
		}
	}
	response.JSON(w, r, status, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
// Upstream outages degrade series quality without failing requests, so only
// a failed subsystem or every provider being unhealthy reports FAIL.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(h.now()),
		Subsystems: h.runChecks(r.Context()),
		Providers:  []models.ProviderStatus{},
	}

	if h.config.Registry != nil {
		for _, p := range h.config.Registry.Snapshot() {
			status.Providers = append(status.Providers, toProviderStatus(p))
		}
	}

	failed := 0
	for _, p := range status.Providers {
		if p.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
		if p.Status == models.HealthStatusFail {
			failed++
		}
	}
	if len(status.Providers) > 0 && failed == len(status.Providers) {
		status.Status = models.HealthStatusFail
	}
	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusFail
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	out := make([]models.SubsystemStatus, 0, len(h.config.Checks))
	for _, c := range h.config.Checks {
		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err := c.Check(ctx); err != nil {
			detail := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &detail
		}
		out = append(out, s)
	}
	return out
}

func toProviderStatus(p resilience.ProviderHealth) models.ProviderStatus {
	out := models.ProviderStatus{
		Provider:     p.Name,
		CircuitState: p.CircuitState.String(),
		Requests:     p.Counts.Requests,
		Failures:     p.Counts.ConsecutiveFailures,
	}

	switch p.Status() {
	case resilience.StatusUnhealthy:
		out.Status = models.HealthStatusFail
	case resilience.StatusDegraded:
		out.Status = models.HealthStatusDegraded
	default:
		out.Status = models.HealthStatusOK
	}

	if p.LastSuccessAt != nil {
		ts := models.Timestamp(*p.LastSuccessAt)
		out.LastSuccessAt = &ts
	}
	if p.LastFailureAt != nil {
		ts := models.Timestamp(*p.LastFailureAt)
		out.LastFailureAt = &ts
	}
	if p.LastError != "" {
		msg := p.LastError
		out.Message = &msg
	}
	return out
}
