package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airseries/internal/provider/resilience"
)

func fastConfig(name string) resilience.ClientConfig {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Timeout = 2 * time.Second
	cfg.InitialInterval = 5 * time.Millisecond
	cfg.MaxInterval = 20 * time.Millisecond
	return cfg
}

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("test"))

	var out struct {
		Status string `json:"status"`
	}
	err := client.GetJSON(context.Background(), server.URL, http.Header{"X-API-Key": {"secret"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, "test", client.Name())
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch attempts.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer server.Close()

	cfg := fastConfig("test-retry")
	cfg.MaxRetries = 3
	client := resilience.NewClient(cfg)

	body, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("test-4xx"))

	_, err := client.Get(context.Background(), server.URL, nil)
	require.Error(t, err)

	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.False(t, se.Retryable())
	assert.Equal(t, int32(1), attempts.Load())
	assert.Equal(t, uint32(0), client.Counts().TotalFailures, "4xx does not count against upstream health")
}

func TestClient_ExhaustedRetries(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := fastConfig("test-exhaust")
	cfg.MaxRetries = 2
	cfg.Breaker = &resilience.BreakerConfig{
		ReadyToTrip: func(gobreaker.Counts) bool { return false },
	}
	client := resilience.NewClient(cfg)

	_, err := client.Get(context.Background(), server.URL, nil)

	var se *resilience.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_CircuitOpens(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := fastConfig("test-trip")
	cfg.MaxRetries = 1
	cfg.Breaker = &resilience.BreakerConfig{
		OpenTimeout: time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 2 },
	}
	client := resilience.NewClient(cfg)

	_, err := client.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, client.State())

	before := attempts.Load()
	_, err = client.Get(context.Background(), server.URL, nil)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, attempts.Load(), "open breaker must not reach upstream")
}

func TestClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"list":`))
	}))
	defer server.Close()

	client := resilience.NewClient(fastConfig("test-malformed"))

	var out map[string]any
	err := client.GetJSON(context.Background(), server.URL, nil, &out)
	assert.ErrorIs(t, err, resilience.ErrMalformedResponse)
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := resilience.NewClient(fastConfig("test-cancel"))
	_, err := client.Get(ctx, server.URL, nil)
	assert.Error(t, err)
}
