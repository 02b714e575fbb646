// Package nasapower provides daily reanalysis values from the NASA POWER API.
package nasapower

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/geo"
	"github.com/breatheroute/airseries/internal/provider/resilience"
	"github.com/breatheroute/airseries/internal/weather"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "nasapower"

	// DefaultBaseURL is the NASA POWER daily point endpoint.
	DefaultBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

	// fillValue marks days the reanalysis has not produced yet.
	fillValue = -999.0

	dayLayout = "20060102"
)

// Requested parameters: 2m temperature (°C), 2m relative humidity (%),
// 2m wind speed (m/s) and surface pressure (kPa).
const (
	paramTemperature = "T2M"
	paramHumidity    = "RH2M"
	paramWindSpeed   = "WS2M"
	paramPressure    = "PS"
)

// ClientConfig holds configuration for the NASA POWER client.
type ClientConfig struct {
	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// Community selects the POWER user community. Default: "RE".
	Community string

	// HTTPClient is the resilient client to use. If nil, one is created.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a NASA POWER API client.
type Client struct {
	baseURL    string
	community  string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new NASA POWER client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	community := cfg.Community
	if community == "" {
		community = "RE"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		community:  community,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// DailyClimate fetches daily values for every UTC day from from to to
// inclusive. Days where all parameters carry the fill value are omitted;
// an empty result is ErrNoDataForLocation.
func (c *Client) DailyClimate(ctx context.Context, p geo.Point, from, to time.Time) (airquality.DailyClimate, error) {
	q := url.Values{}
	q.Set("parameters", strings.Join([]string{paramTemperature, paramHumidity, paramWindSpeed, paramPressure}, ","))
	q.Set("community", c.community)
	q.Set("latitude", strconv.FormatFloat(p.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(p.Lon, 'f', 4, 64))
	q.Set("start", from.UTC().Format(dayLayout))
	q.Set("end", to.UTC().Format(dayLayout))
	q.Set("format", "JSON")

	var resp powerResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("daily point data: %w", err)
	}

	params := resp.Properties.Parameter
	climate := make(airquality.DailyClimate)
	for _, days := range params {
		for day := range days {
			c.merge(climate, day, params)
		}
	}

	if len(climate) == 0 {
		return nil, weather.ErrNoDataForLocation
	}

	c.logger.Debug().
		Int("days", len(climate)).
		Msg("fetched daily climate")

	return climate, nil
}

func (c *Client) merge(climate airquality.DailyClimate, day string, params map[string]map[string]float64) {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return
	}
	key := airquality.DayKey(t)
	if _, done := climate[key]; done {
		return
	}

	fields := airquality.WeatherFields{
		Temperature: value(params, paramTemperature, day, 1),
		Humidity:    value(params, paramHumidity, day, 1),
		WindSpeed:   value(params, paramWindSpeed, day, 1),
		Pressure:    value(params, paramPressure, day, 10),
	}
	if fields.IsEmpty() {
		return
	}
	climate[key] = fields
}

// value returns the parameter for day scaled by factor, or nil for missing
// and fill values.
func value(params map[string]map[string]float64, name, day string, factor float64) *float64 {
	v, ok := params[name][day]
	if !ok || v <= fillValue {
		return nil
	}
	v *= factor
	return &v
}
