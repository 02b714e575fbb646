package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/app"
	"github.com/breatheroute/airseries/internal/config"
	"github.com/breatheroute/airseries/internal/series"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		OWMAPIKey:         "test",
		OWMAirBaseURL:     baseURL,
		OWMWeatherBaseURL: baseURL,
		OpenAQBaseURL:     baseURL,
		NASAPowerBaseURL:  baseURL,
		GeocodeBaseURL:    baseURL,
		ClimateCountries:  []string{"NL"},
		ProviderTimeout:   2 * time.Second,
		SeriesHours:       6,
		SeriesMaxHours:    48,
		HistoryLookback:   24 * time.Hour,
		OfflineDefault:    map[airquality.Component]float64{airquality.ComponentPM25: 12},
		CacheBackend:      config.CacheBackendMemory,
		CacheTTL:          time.Minute,
	}
}

func TestNew_EveryProviderDown(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer upstream.Close()

	a, err := app.New(context.Background(), testConfig(upstream.URL), zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.ReadinessChecks)
	assert.Equal(t, 5, a.Registry.Len())

	resp, err := a.Service.BuildHourlySeries(context.Background(), series.Request{Lat: 52.37, Lon: 4.89})
	require.NoError(t, err)

	assert.Equal(t, airquality.TierReplicated, resp.Series.Tier)
	require.Len(t, resp.Series.Entries, 6)
	for _, e := range resp.Series.Entries {
		assert.Equal(t, 12.0, e.Values[airquality.ComponentPM25])
		assert.Zero(t, e.SampleCount)
	}
	assert.NotEmpty(t, resp.Warnings)

	_, err = a.Service.BuildHourlySeries(context.Background(), series.Request{Lat: 52.37, Lon: 4.89, Hours: 49})
	assert.ErrorIs(t, err, series.ErrInvalidHours)
}

func TestNew_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig("http://127.0.0.1:1")
	cfg.CacheBackend = config.CacheBackendRedis
	cfg.RedisAddr = mr.Addr()

	a, err := app.New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer a.Close()

	require.Len(t, a.ReadinessChecks, 1)
	assert.Equal(t, "cache", a.ReadinessChecks[0].Name)
	assert.NoError(t, a.ReadinessChecks[0].Check(context.Background()))

	mr.Close()
	assert.Error(t, a.ReadinessChecks[0].Check(context.Background()))
}

func TestNew_RedisUnavailable(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.CacheBackend = config.CacheBackendRedis
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := app.New(context.Background(), cfg, zerolog.Nop())
	assert.ErrorContains(t, err, "connect redis cache")
}
