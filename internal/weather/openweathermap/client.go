// Package openweathermap provides current point weather from OpenWeatherMap.
package openweathermap

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/geo"
	"github.com/breatheroute/airseries/internal/provider/resilience"
	"github.com/breatheroute/airseries/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap-weather"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// CurrentWeather fetches current weather for a point in metric units.
func (c *Client) CurrentWeather(ctx context.Context, p geo.Point) (*weather.Observation, error) {
	if c.apiKey == "" {
		return nil, weather.ErrMissingAPIKey
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 6, 64))
	q.Set("units", "metric")
	q.Set("appid", c.apiKey)

	var resp currentWeatherResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/weather?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("current weather: %w", err)
	}

	obs := c.toObservation(&resp)
	if obs.Fields().IsEmpty() {
		return nil, weather.ErrNoDataForLocation
	}
	return obs, nil
}

// toObservation converts an OpenWeatherMap response to the domain model.
func (c *Client) toObservation(resp *currentWeatherResponse) *weather.Observation {
	obs := &weather.Observation{
		Temperature: resp.Main.Temp,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		Pressure:    resp.Main.Pressure,
	}
	if resp.Dt > 0 {
		obs.ObservedAt = time.Unix(resp.Dt, 0).UTC()
	}
	return obs
}

// OpenWeatherMap API response structure.

type currentWeatherResponse struct {
	Main struct {
		Temp     *float64 `json:"temp"`
		Pressure *float64 `json:"pressure"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Dt   int64  `json:"dt"`
	Name string `json:"name"`
}
