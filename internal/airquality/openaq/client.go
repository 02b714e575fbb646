// Package openaq provides a client for OpenAQ station measurements.
package openaq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/geo"
	"github.com/breatheroute/airseries/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the base URL for the OpenAQ API.
	DefaultBaseURL = "https://api.openaq.org/v2"

	// ProviderName identifies this provider.
	ProviderName = "openaq"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("openaq: api key not configured")

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// APIKey is sent as X-API-Key (required).
	APIKey string

	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// RadiusMeters bounds stations around the query point.
	// Default: 25000
	RadiusMeters float64

	// PageSize is the number of measurements per page.
	// Default: 1000
	PageSize int

	// MaxPages caps pagination.
	// Default: 5
	MaxPages int

	// HTTPClient is the resilient client to use. If nil, one is created.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenAQ API client.
type Client struct {
	apiKey     string
	baseURL    string
	radius     float64
	pageSize   int
	maxPages   int
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = 25000
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		radius:     cfg.RadiusMeters,
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// API response types.

type measurementsResponse struct {
	Meta    metaInfo          `json:"meta"`
	Results []measurementData `json:"results"`
}

type metaInfo struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type measurementData struct {
	Location    string   `json:"location"`
	Parameter   string   `json:"parameter"`
	Value       *float64 `json:"value"`
	Unit        string   `json:"unit"`
	Date        dateInfo `json:"date"`
	Coordinates *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
}

type dateInfo struct {
	UTC string `json:"utc"`
}

// History retrieves station measurements within the radius of p between
// from and to. Records reported by stations outside the radius are dropped.
func (c *Client) History(ctx context.Context, p geo.Point, from, to time.Time) ([]airquality.HistoryRecord, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	var records []airquality.HistoryRecord
	for page := 1; page <= c.maxPages; page++ {
		results, err := c.fetchPage(ctx, p, from, to, page)
		if err != nil {
			return nil, err
		}
		for i := range results {
			if rec, ok := c.toRecord(p, &results[i]); ok {
				records = append(records, rec)
			}
		}
		if len(results) < c.pageSize {
			break
		}
	}

	c.logger.Debug().
		Int("records", len(records)).
		Float64("radius_m", c.radius).
		Msg("fetched openaq measurements")

	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, p geo.Point, from, to time.Time, page int) ([]measurementData, error) {
	q := url.Values{}
	q.Set("coordinates", strconv.FormatFloat(p.Lat, 'f', 4, 64)+","+strconv.FormatFloat(p.Lon, 'f', 4, 64))
	q.Set("radius", strconv.FormatFloat(c.radius, 'f', 0, 64))
	q.Set("date_from", from.UTC().Format(time.RFC3339))
	q.Set("date_to", to.UTC().Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("page", strconv.Itoa(page))
	q.Set("order_by", "datetime")
	for _, param := range []string{"pm25", "pm10", "no2", "o3", "co"} {
		q.Add("parameter", param)
	}

	header := http.Header{}
	header.Set("X-API-Key", c.apiKey)

	var resp measurementsResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/measurements?"+q.Encode(), header, &resp); err != nil {
		return nil, fmt.Errorf("fetch measurements page %d: %w", page, err)
	}
	return resp.Results, nil
}

// toRecord converts API measurement data to a history record.
func (c *Client) toRecord(p geo.Point, m *measurementData) (airquality.HistoryRecord, bool) {
	if m.Coordinates != nil {
		station := geo.Point{Lat: m.Coordinates.Latitude, Lon: m.Coordinates.Longitude}
		if geo.DistanceMeters(p, station) > c.radius {
			return airquality.HistoryRecord{}, false
		}
	}

	value := m.Value
	if value != nil && isPPM(m.Unit) {
		value = nil
	}

	return airquality.HistoryRecord{
		Location:   m.Location,
		Parameter:  m.Parameter,
		Value:      value,
		MeasuredAt: m.Date.UTC,
	}, true
}

// isPPM reports volumetric units; series components are mass concentrations.
func isPPM(unit string) bool {
	switch strings.ToLower(unit) {
	case "ppm", "ppb":
		return true
	default:
		return false
	}
}
