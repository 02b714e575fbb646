// Package bigdatacloud resolves coordinates to a country and locality with the
// BigDataCloud client-side reverse geocoding API.
package bigdatacloud

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/geo"
	"github.com/breatheroute/airseries/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "bigdatacloud"

	// DefaultBaseURL is the BigDataCloud API base URL.
	DefaultBaseURL = "https://api.bigdatacloud.net/data"
)

// ErrNoCountry is returned when the point resolves to no country (open sea).
var ErrNoCountry = errors.New("no country for location")

// ClientConfig holds configuration for the BigDataCloud client.
type ClientConfig struct {
	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// HTTPClient is the resilient client to use. If nil, one is created.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a BigDataCloud reverse geocoding client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new BigDataCloud client.
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
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

type reverseGeocodeResponse struct {
	CountryCode          string `json:"countryCode"`
	CountryName          string `json:"countryName"`
	City                 string `json:"city"`
	Locality             string `json:"locality"`
	PrincipalSubdivision string `json:"principalSubdivision"`
}

// ReverseGeocode resolves p to a place. The name is the city, else the
// locality, else the principal subdivision.
func (c *Client) ReverseGeocode(ctx context.Context, p geo.Point) (geo.Place, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("longitude", strconv.FormatFloat(p.Lon, 'f', 6, 64))
	q.Set("localityLanguage", "en")

	var resp reverseGeocodeResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/reverse-geocode-client?"+q.Encode(), nil, &resp); err != nil {
		return geo.Place{}, fmt.Errorf("reverse geocode: %w", err)
	}

	if resp.CountryCode == "" {
		return geo.Place{}, ErrNoCountry
	}

	name := firstNonEmpty(resp.City, resp.Locality, resp.PrincipalSubdivision)
	c.logger.Debug().
		Str("country", resp.CountryCode).
		Str("name", name).
		Msg("resolved place")

	return geo.Place{
		Name:        name,
		CountryCode: strings.ToUpper(resp.CountryCode),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
