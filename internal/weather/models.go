// Package weather provides point observations and daily reanalysis values used
// to enrich an air quality series.
package weather

import (
	"context"
	"errors"
	"time"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/geo"
)

// Weather errors.
var (
	ErrMissingAPIKey     = errors.New("weather: api key not configured")
	ErrNoDataForLocation = errors.New("no weather data for location")
)

// Observation is a single weather reading at a point. Nil fields were not
// reported by the provider.
type Observation struct {
	// Temperature in Celsius
	Temperature *float64

	// Humidity percentage (0-100)
	Humidity *float64

	// WindSpeed in m/s
	WindSpeed *float64

	// Pressure in hPa
	Pressure *float64

	ObservedAt time.Time
}

// Fields returns the observation as series weather fields.
func (o *Observation) Fields() airquality.WeatherFields {
	if o == nil {
		return airquality.WeatherFields{}
	}
	return airquality.WeatherFields{
		Temperature: o.Temperature,
		Humidity:    o.Humidity,
		WindSpeed:   o.WindSpeed,
		Pressure:    o.Pressure,
	}
}

// PointProvider returns the current weather at a point.
type PointProvider interface {
	CurrentWeather(ctx context.Context, p geo.Point) (*Observation, error)
	Name() string
}

// ClimateProvider returns daily reanalysis values for the UTC days in [from, to].
type ClimateProvider interface {
	DailyClimate(ctx context.Context, p geo.Point, from, to time.Time) (airquality.DailyClimate, error)
	Name() string
}
