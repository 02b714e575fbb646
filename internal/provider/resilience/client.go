package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Client errors.
var (
	// ErrCircuitOpen is returned without calling upstream while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrMalformedResponse wraps body decoding failures.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 8 << 20

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Provider   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether another attempt may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ClientConfig holds configuration for a provider client.
type ClientConfig struct {
	// Name identifies the provider. Required.
	Name string

	// Timeout bounds each attempt.
	// Default: 20 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Default: 2
	MaxRetries uint64

	// InitialInterval is the first retry backoff.
	// Default: 200ms
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff.
	// Default: 2 seconds
	MaxInterval time.Duration

	// Breaker overrides DefaultBreakerConfig(Name).
	Breaker *BreakerConfig

	// Registry, if set, has the client registered and its outcomes recorded.
	Registry *Registry

	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper

	// Logger for retry and breaker events.
	Logger zerolog.Logger
}

// DefaultClientConfig returns defaults for the named provider.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         20 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Client performs GET requests against one provider with retry and circuit
// breaking. It is safe for concurrent use.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	registry   *Registry
	config     ClientConfig
	logger     zerolog.Logger
}

// NewClient creates a provider client.
func NewClient(cfg ClientConfig) *Client {
	defaults := DefaultClientConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaults.MaxInterval
	}

	breakerCfg := DefaultBreakerConfig(cfg.Name)
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
		if breakerCfg.Name == "" {
			breakerCfg.Name = cfg.Name
		}
	}
	breakerCfg.Logger = cfg.Logger

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	c := &Client{
		name:       cfg.Name,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		breaker:    newBreaker(breakerCfg),
		registry:   cfg.Registry,
		config:     cfg,
		logger:     cfg.Logger.With().Str("provider", cfg.Name).Logger(),
	}
	if c.registry != nil {
		c.registry.Register(c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Get fetches url and returns the response body. 5xx, 429 and network errors
// are retried with exponential backoff; other non-2xx statuses fail at once
// with a *StatusError.
func (c *Client) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	attempt := 0
	var body []byte
	operation := func() error {
		attempt++
		b, err := c.breaker.Execute(func() ([]byte, error) {
			return c.fetch(ctx, url, header)
		})
		if err == nil {
			body = b
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return backoff.Permanent(err)
		}

		c.logger.Debug().
			Int("attempt", attempt).
			Err(err).
			Msg("provider request failed")
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)
	err := backoff.Retry(operation, policy)
	c.record(err)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	body, err := c.Get(ctx, url, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: %v", c.name, ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{Provider: c.name, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (c *Client) record(err error) {
	if c.registry == nil {
		return
	}
	if err != nil {
		c.registry.RecordFailure(c.name, err)
		return
	}
	c.registry.RecordSuccess(c.name)
}

// State returns the current breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the current breaker counts.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}
