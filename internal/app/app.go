// Package app wires providers, cache and the series service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/airquality/openaq"
	owmair "github.com/breatheroute/airseries/internal/airquality/openweathermap"
	"github.com/breatheroute/airseries/internal/api/handler"
	"github.com/breatheroute/airseries/internal/cache"
	"github.com/breatheroute/airseries/internal/config"
	"github.com/breatheroute/airseries/internal/geo"
	"github.com/breatheroute/airseries/internal/geo/bigdatacloud"
	"github.com/breatheroute/airseries/internal/provider/resilience"
	"github.com/breatheroute/airseries/internal/series"
	"github.com/breatheroute/airseries/internal/telemetry"
	"github.com/breatheroute/airseries/internal/weather/nasapower"
	owmweather "github.com/breatheroute/airseries/internal/weather/openweathermap"
)

// App holds the wired series service and the resources behind it.
type App struct {
	Service  *series.Service
	Registry *resilience.Registry
	Store    cache.Store

	// ReadinessChecks test the dependencies the service cannot run without.
	ReadinessChecks []handler.ReadinessCheck
}

// New builds the series service described by cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	registry := resilience.NewRegistry()
	httpClient := func(name string) *resilience.Client {
		c := resilience.DefaultClientConfig(name)
		c.Timeout = cfg.ProviderTimeout
		c.Registry = registry
		c.Logger = log
		return resilience.NewClient(c)
	}

	if cfg.OWMAPIKey == "" {
		log.Warn().Msg("OWM_API_KEY not set - forecast, current and weather providers will fail")
	}

	air := owmair.NewClient(owmair.ClientConfig{
		APIKey:     cfg.OWMAPIKey,
		BaseURL:    cfg.OWMAirBaseURL,
		HTTPClient: httpClient(owmair.ProviderName),
		Logger:     log,
	})
	aq := openaq.NewClient(openaq.ClientConfig{
		APIKey:       cfg.OpenAQAPIKey,
		BaseURL:      cfg.OpenAQBaseURL,
		RadiusMeters: cfg.OpenAQRadius,
		HTTPClient:   httpClient(openaq.ProviderName),
		Logger:       log,
	})
	pointWeather := owmweather.NewClient(owmweather.ClientConfig{
		APIKey:     cfg.OWMAPIKey,
		BaseURL:    cfg.OWMWeatherBaseURL,
		HTTPClient: httpClient(owmweather.ProviderName),
		Logger:     log,
	})
	climate := nasapower.NewClient(nasapower.ClientConfig{
		BaseURL:    cfg.NASAPowerBaseURL,
		HTTPClient: httpClient(nasapower.ProviderName),
		Logger:     log,
	})
	geocoder := bigdatacloud.NewClient(bigdatacloud.ClientConfig{
		BaseURL:    cfg.GeocodeBaseURL,
		HTTPClient: httpClient(bigdatacloud.ProviderName),
		Logger:     log,
	})

	store, checks, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", cfg.CacheBackend).Dur("ttl", cfg.CacheTTL).Msg("provider cache initialized")

	metrics, err := telemetry.NewSeriesMetrics()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("series metrics: %w", err)
	}

	builderCfg := airquality.DefaultBuilderConfig()
	builderCfg.Length = cfg.SeriesHours
	builderCfg.OfflineDefault = cfg.OfflineDefaultSample()
	builderCfg.Logger = log

	svc := series.NewService(series.Config{
		Forecast:         air,
		History:          []series.HistorySource{aq, air},
		Current:          air,
		Weather:          pointWeather,
		Climate:          climate,
		Geocoder:         geocoder,
		ClimateCountries: geo.NewAllowList(cfg.ClimateCountries...),
		Builder:          airquality.NewBuilder(builderCfg),
		Loader: cache.NewLoader(cache.LoaderConfig{
			Store:  store,
			TTL:    cfg.CacheTTL,
			Logger: log,
		}),
		Metrics:       metrics,
		CallTimeout:   cfg.ProviderTimeout,
		HistoryWindow: cfg.HistoryLookback,
		MaxHours:      cfg.SeriesMaxHours,
		Logger:        log,
	})

	return &App{
		Service:         svc,
		Registry:        registry,
		Store:           store,
		ReadinessChecks: checks,
	}, nil
}

// Close releases the cache store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

func newStore(ctx context.Context, cfg *config.Config) (cache.Store, []handler.ReadinessCheck, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		rdb, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return rdb, []handler.ReadinessCheck{{Name: "cache", Check: rdb.Ping}}, nil
	case config.CacheBackendMemory, "":
		return cache.NewMemory(), nil, nil
	default:
		return nil, nil, errors.New("unknown cache backend " + cfg.CacheBackend)
	}
}
