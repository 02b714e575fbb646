// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/breatheroute/airseries/internal/airquality"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// DefaultClimateCountries are the countries NASA POWER reanalysis is fetched for.
const DefaultClimateCountries = "US,CA,GB,DE,FR,NL,IN,AU"

// Site is a location the worker keeps warm.
type Site struct {
	Lat  float64
	Lon  float64
	Name string
}

// Config holds configuration shared by the API server and the worker.
type Config struct {
	Port string
	Env  string

	OTelEnabled  bool
	OTLPEndpoint string

	// Providers
	OWMAPIKey         string
	OWMAirBaseURL     string
	OWMWeatherBaseURL string
	OpenAQAPIKey      string
	OpenAQBaseURL     string
	OpenAQRadius      float64
	NASAPowerBaseURL  string
	GeocodeBaseURL    string
	ClimateCountries  []string
	ProviderTimeout   time.Duration

	// Series
	SeriesHours     int
	SeriesMaxHours  int
	HistoryLookback time.Duration
	OfflineDefault  map[airquality.Component]float64

	// Cache
	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HTTP
	CORSAllowedOrigins []string
	RequireTLS         bool
	RateLimitSeries    int

	// Worker
	GCPProjectID       string
	PubSubSubscription string
	RefreshInterval    time.Duration
	WarmSites          []Site
}

// FromEnv loads a .env file if present, then reads the environment.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	cfg := &Config{
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		Env:                getEnvOrDefault("APP_ENV", "development"),
		OTelEnabled:        getEnvBool("OTEL_ENABLED", false, &errs),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OWMAPIKey:          os.Getenv("OWM_API_KEY"),
		OWMAirBaseURL:      os.Getenv("OWM_AIR_BASE_URL"),
		OWMWeatherBaseURL:  os.Getenv("OWM_WEATHER_BASE_URL"),
		OpenAQAPIKey:       os.Getenv("OPENAQ_API_KEY"),
		OpenAQBaseURL:      os.Getenv("OPENAQ_BASE_URL"),
		OpenAQRadius:       getEnvFloat("OPENAQ_RADIUS_METERS", 25000, &errs),
		NASAPowerBaseURL:   os.Getenv("NASA_POWER_BASE_URL"),
		GeocodeBaseURL:     os.Getenv("GEOCODE_BASE_URL"),
		ClimateCountries:   splitList(getEnvOrDefault("CLIMATE_COUNTRIES", DefaultClimateCountries), ","),
		ProviderTimeout:    getEnvDuration("PROVIDER_TIMEOUT", 20*time.Second, &errs),
		SeriesHours:        getEnvInt("SERIES_HOURS", 24, &errs),
		SeriesMaxHours:     getEnvInt("SERIES_MAX_HOURS", 168, &errs),
		HistoryLookback:    getEnvDuration("HISTORY_LOOKBACK", 24*time.Hour, &errs),
		CacheBackend:       strings.ToLower(getEnvOrDefault("CACHE_BACKEND", CacheBackendMemory)),
		CacheTTL:           getEnvDuration("CACHE_TTL", 10*time.Minute, &errs),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0, &errs),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS"), ","),
		RequireTLS:         getEnvBool("REQUIRE_TLS", false, &errs),
		RateLimitSeries:    getEnvInt("RATE_LIMIT_SERIES", 30, &errs),
		GCPProjectID:       os.Getenv("GCP_PROJECT_ID"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),
		RefreshInterval:    getEnvDuration("REFRESH_INTERVAL", 15*time.Minute, &errs),
	}

	cfg.OfflineDefault = map[airquality.Component]float64{
		airquality.ComponentPM25: getEnvFloat("OFFLINE_DEFAULT_PM25", 12, &errs),
		airquality.ComponentPM10: getEnvFloat("OFFLINE_DEFAULT_PM10", 20, &errs),
		airquality.ComponentNO2:  getEnvFloat("OFFLINE_DEFAULT_NO2", 15, &errs),
		airquality.ComponentO3:   getEnvFloat("OFFLINE_DEFAULT_O3", 40, &errs),
		airquality.ComponentCO:   getEnvFloat("OFFLINE_DEFAULT_CO", 250, &errs),
	}

	sites, err := ParseSites(os.Getenv("WARM_SITES"))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.WarmSites = sites

	if err := cfg.validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// OfflineDefaultSample returns the static fallback reading, or nil if every
// component is disabled with a negative value.
func (c *Config) OfflineDefaultSample() *airquality.Sample {
	s := airquality.NewSample(0)
	for comp, v := range c.OfflineDefault {
		if v >= 0 {
			s.Components[comp] = v
		}
	}
	if s.IsEmpty() {
		return nil
	}
	return &s
}

// ErrWorkerCacheNotShared is returned when the worker would warm a cache that
// no API process can read.
var ErrWorkerCacheNotShared = errors.New("worker requires CACHE_BACKEND=redis")

// ValidateWorker checks settings the warm-up worker depends on. Warming an
// in-process memory cache has no effect on the API.
func (c *Config) ValidateWorker() error {
	if c.CacheBackend != CacheBackendRedis {
		return fmt.Errorf("%w, got %q", ErrWorkerCacheNotShared, c.CacheBackend)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.CacheBackend)
	}
	if c.SeriesMaxHours < 1 {
		return fmt.Errorf("SERIES_MAX_HOURS must be positive, got %d", c.SeriesMaxHours)
	}
	if c.SeriesHours < 1 || c.SeriesHours > c.SeriesMaxHours {
		return fmt.Errorf("SERIES_HOURS must be in [1, %d], got %d", c.SeriesMaxHours, c.SeriesHours)
	}
	if c.RateLimitSeries < 1 {
		return fmt.Errorf("RATE_LIMIT_SERIES must be positive, got %d", c.RateLimitSeries)
	}
	return nil
}

// ParseSites parses a ';'-separated list of "lat,lon[,name]" entries.
func ParseSites(raw string) ([]Site, error) {
	var sites []Site
	for _, entry := range splitList(raw, ";") {
		parts := strings.SplitN(entry, ",", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("WARM_SITES entry %q: want lat,lon[,name]", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("WARM_SITES entry %q: invalid latitude: %w", entry, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("WARM_SITES entry %q: invalid longitude: %w", entry, err)
		}
		site := Site{Lat: lat, Lon: lon}
		if len(parts) == 3 {
			site.Name = strings.TrimSpace(parts[2])
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return d
}
