package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Health statuses reported by ProviderHealth.Status.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ProviderHealth is a point-in-time view of one provider.
type ProviderHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Status maps the breaker state to a health status: closed is healthy,
// half-open degraded and open unhealthy.
func (h ProviderHealth) Status() string {
	switch h.CircuitState {
	case gobreaker.StateOpen:
		return StatusUnhealthy
	case gobreaker.StateHalfOpen:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// Registry tracks provider clients and the outcome of their last calls.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*tracked
	now       func() time.Time
}

type tracked struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*tracked),
		now:       time.Now,
	}
}

// Register adds a client, replacing any previous client of the same name.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[c.Name()] = &tracked{client: c}
}

// RecordSuccess stamps the last success time of a registered provider.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := r.now().UTC()
		p.lastSuccessAt = &now
	}
}

// RecordFailure stamps the last failure time and error of a registered provider.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		now := r.now().UTC()
		p.lastFailureAt = &now
		if err != nil {
			p.lastError = err.Error()
		}
	}
}

// Health returns the health of one provider, or false if it is not registered.
func (r *Registry) Health(name string) (ProviderHealth, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return ProviderHealth{}, false
	}
	return p.health(name), true
}

// Snapshot returns the health of every provider ordered by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, p.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

func (p *tracked) health(name string) ProviderHealth {
	return ProviderHealth{
		Name:          name,
		CircuitState:  p.client.State(),
		Counts:        p.client.Counts(),
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
	}
}
