package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/breatheroute/airseries/internal/api/middleware"
)

func newTestMetrics(t *testing.T) (*middleware.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := middleware.NewMetricsWithMeter(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

// requestTotals returns request counts keyed by route and status.
func requestTotals(t *testing.T, reader *sdkmetric.ManualReader) map[[2]string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[[2]string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.server.request.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value(attribute.Key("http.route"))
				status, _ := dp.Attributes.Value(attribute.Key("http.status_code"))
				out[[2]string{route.AsString(), status.AsString()}] += dp.Value
			}
		}
	}
	return out
}

func TestNewMetrics(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)
	assert.NotNil(t, metrics)
}

func TestMetrics_Middleware_LabelsByRoutePattern(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/v1/sites/{siteID}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	for _, path := range []string{"/v1/sites/amsterdam-nl", "/v1/sites/paris-fr"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	totals := requestTotals(t, reader)
	assert.Equal(t, int64(2), totals[[2]string{"/v1/sites/{siteID}", "200"}])
}

func TestMetrics_Middleware_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{"server error", http.StatusInternalServerError, "500"},
		{"bad request", http.StatusBadRequest, "400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics, reader := newTestMetrics(t)

			handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/anything", http.NoBody))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, int64(1), requestTotals(t, reader)[[2]string{"unmatched", tt.want}])
		})
	}
}

func TestMetrics_Middleware_DefaultStatusCode(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("response"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), requestTotals(t, reader)[[2]string{"unmatched", "200"}])
}
