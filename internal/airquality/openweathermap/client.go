// Package openweathermap adapts the OpenWeatherMap Air Pollution API to the
// airquality record types.
package openweathermap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/geo"
	"github.com/breatheroute/airseries/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "openweathermap-air"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// Errors returned by the client.
var (
	ErrMissingAPIKey = errors.New("openweathermap: api key not configured")
	ErrNoReading     = errors.New("openweathermap: empty air pollution list")
)

// ClientConfig holds configuration for the air pollution client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// HTTPClient is the resilient client to use. If nil, one is created.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap Air Pollution API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new air pollution client.
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

// Forecast fetches the hourly air pollution forecast (about four days ahead).
func (c *Client) Forecast(ctx context.Context, p geo.Point) ([]airquality.ForecastRecord, error) {
	list, err := c.fetch(ctx, "/air_pollution/forecast", p, nil)
	if err != nil {
		return nil, fmt.Errorf("air pollution forecast: %w", err)
	}

	records := make([]airquality.ForecastRecord, 0, len(list))
	for _, item := range list {
		records = append(records, airquality.ForecastRecord{
			Dt:         item.Dt,
			Components: item.Components,
		})
	}
	return records, nil
}

// Current fetches the current air pollution reading.
func (c *Client) Current(ctx context.Context, p geo.Point) (airquality.CurrentRecord, error) {
	list, err := c.fetch(ctx, "/air_pollution", p, nil)
	if err != nil {
		return airquality.CurrentRecord{}, fmt.Errorf("air pollution current: %w", err)
	}
	if len(list) == 0 {
		return airquality.CurrentRecord{}, ErrNoReading
	}
	return airquality.CurrentRecord{
		Dt:         list[0].Dt,
		Components: list[0].Components,
	}, nil
}

// History fetches modelled hourly history in [from, to) and flattens every
// entry into one record per component, the same shape station networks report.
func (c *Client) History(ctx context.Context, p geo.Point, from, to time.Time) ([]airquality.HistoryRecord, error) {
	extra := url.Values{}
	extra.Set("start", strconv.FormatInt(from.Unix(), 10))
	extra.Set("end", strconv.FormatInt(to.Unix(), 10))

	list, err := c.fetch(ctx, "/air_pollution/history", p, extra)
	if err != nil {
		return nil, fmt.Errorf("air pollution history: %w", err)
	}

	location := geo.GridCell(p, 0.01)
	var records []airquality.HistoryRecord
	for _, item := range list {
		measuredAt := time.Unix(item.Dt, 0).UTC().Format(time.RFC3339)
		names := make([]string, 0, len(item.Components))
		for name := range item.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			records = append(records, airquality.HistoryRecord{
				Location:   location,
				Parameter:  name,
				Value:      item.Components[name],
				MeasuredAt: measuredAt,
			})
		}
	}
	return records, nil
}

type airPollutionResponse struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	List []airPollutionItem `json:"list"`
}

type airPollutionItem struct {
	Dt   int64 `json:"dt"`
	Main struct {
		AQI int `json:"aqi"`
	} `json:"main"`
	Components map[string]*float64 `json:"components"`
}

func (c *Client) fetch(ctx context.Context, path string, p geo.Point, extra url.Values) ([]airPollutionItem, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 6, 64))
	for k, vs := range extra {
		q[k] = vs
	}
	q.Set("appid", c.apiKey)

	var resp airPollutionResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+path+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("path", path).
		Int("items", len(resp.List)).
		Msg("fetched air pollution data")

	return resp.List, nil
}
