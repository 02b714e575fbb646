package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/series"
)

// Job types carried in RefreshMessage.JobType.
const (
	JobWarmSites   = "warm_sites"
	JobHealthCheck = "health_check"
)

// ErrUnknownJob is returned by Dispatch for an unrecognised job type.
var ErrUnknownJob = errors.New("unknown job type")

// healthCheckSite is requested when no warm sites are configured.
var healthCheckSite = series.Request{Lat: 52.3676, Lon: 4.9041, Hours: 1}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	refreshJob       *RefreshJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// RefreshMessage represents a worker job message.
type RefreshMessage struct {
	JobType string `json:"job_type"`

	// Sites overrides the configured warm sites for one warm_sites run.
	Sites []SiteMessage `json:"sites,omitempty"`
}

// SiteMessage is one site in a warm_sites message.
type SiteMessage struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Name  string  `json:"name,omitempty"`
	Hours int     `json:"hours,omitempty"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		refreshJob:       cfg.RefreshJob,
		logger:           cfg.Logger,
	}, nil
}

// NewDispatcher creates a handler without a Pub/Sub connection. Only
// Dispatch may be used on it.
func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *PubSubHandler {
	return &PubSubHandler{refreshJob: job, logger: logger}
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	if h.client == nil {
		return nil
	}
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.Dispatch(ctx, msg.Data)
	switch {
	case errors.Is(err, ErrUnknownJob):
		logger.Warn().Err(err).Msg("unknown job type")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	case err != nil:
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	logger.Info().
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")

	msg.Ack()
}

// Dispatch decodes a message payload and runs the job it names.
func (h *PubSubHandler) Dispatch(ctx context.Context, data []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse message: %w", err)
	}

	switch msg.JobType {
	case JobWarmSites:
		return h.handleWarmSites(ctx, msg)
	case JobHealthCheck:
		return h.handleHealthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (h *PubSubHandler) handleWarmSites(ctx context.Context, msg RefreshMessage) error {
	var result *RefreshResult
	if len(msg.Sites) > 0 {
		sites := make([]series.Request, len(msg.Sites))
		for i, s := range msg.Sites {
			sites[i] = series.Request{Lat: s.Lat, Lon: s.Lon, Name: s.Name, Hours: s.Hours}
		}
		result = h.refreshJob.RunSites(ctx, sites)
	} else {
		result = h.refreshJob.Run(ctx)
	}

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many warm-up failures: %d/%d", result.Failed, result.TotalSites)
	}
	return nil
}

// handleHealthCheck builds one short series and fails when no live provider
// contributed to it.
func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	site := healthCheckSite
	if sites := h.refreshJob.config.Sites; len(sites) > 0 {
		site = sites[0]
		site.Hours = 1
	}

	ctx, cancel := context.WithTimeout(ctx, h.refreshJob.config.Timeout)
	defer cancel()

	resp, err := h.refreshJob.builder.BuildHourlySeries(ctx, site)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.Series.Tier == airquality.TierReplicated && len(resp.Warnings) > 0 {
		return fmt.Errorf("health check failed: no live provider data (%d warnings)", len(resp.Warnings))
	}

	h.logger.Debug().Str("tier", resp.Series.Tier.String()).Msg("health check passed")
	return nil
}
