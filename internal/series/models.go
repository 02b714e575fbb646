// Package series builds hourly air quality series for a coordinate by fanning
// out to every configured provider and reconciling whatever comes back.
package series

import (
	"context"
	"errors"
	"time"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/geo"
)

// Service errors.
var (
	ErrInvalidCoordinates = geo.ErrInvalidCoordinates
	ErrInvalidHours       = errors.New("hours out of range")
)

// Upstream sources consumed by the service. Adapters in the provider packages
// satisfy these.
type (
	// ForecastSource returns forward-looking hourly records.
	ForecastSource interface {
		Forecast(ctx context.Context, p geo.Point) ([]airquality.ForecastRecord, error)
		Name() string
	}

	// HistorySource returns single-parameter measurements in [from, to].
	HistorySource interface {
		History(ctx context.Context, p geo.Point, from, to time.Time) ([]airquality.HistoryRecord, error)
		Name() string
	}

	// CurrentSource returns a single current reading.
	CurrentSource interface {
		Current(ctx context.Context, p geo.Point) (airquality.CurrentRecord, error)
		Name() string
	}

	// Geocoder resolves a point to a place.
	Geocoder interface {
		ReverseGeocode(ctx context.Context, p geo.Point) (geo.Place, error)
		Name() string
	}
)

// Request identifies the site and horizon of a series.
type Request struct {
	Lat float64
	Lon float64

	// Hours is the series length. Zero uses the configured default.
	Hours int

	// Name overrides the geocoded site name.
	Name string
}

// Site describes where a series was built for.
type Site struct {
	Lat         float64
	Lon         float64
	Name        string
	ID          string
	CountryCode string
}

// Response is a built series with its site and degradation warnings.
type Response struct {
	Site        Site
	GeneratedAt time.Time
	Series      airquality.Series
	Warnings    []airquality.Warning
}
