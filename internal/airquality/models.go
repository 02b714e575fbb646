// Package airquality reconciles sparse air quality samples from several
// providers into a dense hourly series.
package airquality

import (
	"errors"
	"time"
)

// Series errors.
var (
	ErrInsufficientData = errors.New("insufficient data for series tier")
	ErrNoDataAtAll      = errors.New("no air quality data from any source")
)

// Component identifies a pollutant concentration carried by a sample.
type Component string

const (
	ComponentPM25 Component = "PM25"
	ComponentPM10 Component = "PM10"
	ComponentNO2  Component = "NO2"
	ComponentO3   Component = "O3"
	ComponentCO   Component = "CO"
)

// Components lists every component in output order.
var Components = []Component{
	ComponentPM25,
	ComponentPM10,
	ComponentNO2,
	ComponentO3,
	ComponentCO,
}

// HourSeconds is the length of one series slot.
const HourSeconds int64 = 3600

// Sample is a single point-in-time reading in canonical form.
// Components is sparse: a missing key means the provider did not report it.
type Sample struct {
	Timestamp  int64
	Components map[Component]float64
}

// NewSample creates a sample with an empty component map.
func NewSample(ts int64) Sample {
	return Sample{Timestamp: ts, Components: make(map[Component]float64)}
}

// Time returns the sample timestamp as UTC time.
func (s Sample) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// Value returns the value of a component and whether it is present.
func (s Sample) Value(c Component) (float64, bool) {
	v, ok := s.Components[c]
	return v, ok
}

// IsEmpty reports whether the sample carries no components.
func (s Sample) IsEmpty() bool {
	return len(s.Components) == 0
}

// HourStart truncates a unix timestamp down to the start of its hour.
func HourStart(ts int64) int64 {
	h := ts / HourSeconds
	if ts%HourSeconds < 0 {
		h--
	}
	return h * HourSeconds
}

// WeatherFields holds optional auxiliary weather values.
// Units: Temperature °C, Humidity %, WindSpeed m/s, Pressure hPa.
type WeatherFields struct {
	Temperature *float64
	Humidity    *float64
	WindSpeed   *float64
	Pressure    *float64
}

// IsEmpty reports whether no field is set.
func (w WeatherFields) IsEmpty() bool {
	return w.Temperature == nil && w.Humidity == nil && w.WindSpeed == nil && w.Pressure == nil
}

// Entry is one hourly slot of a series.
type Entry struct {
	Time        time.Time
	Values      map[Component]float64
	SampleCount int
	Weather     WeatherFields
}

// Value returns the value of a component and whether it is present.
func (e Entry) Value(c Component) (float64, bool) {
	v, ok := e.Values[c]
	return v, ok
}

// Tier identifies the fallback strategy that produced a series.
type Tier int

const (
	TierNone Tier = iota
	TierCombined
	TierForecastDirect
	TierHistory
	TierReplicated
)

// String returns the tier name used in logs and API output.
func (t Tier) String() string {
	switch t {
	case TierCombined:
		return "combined"
	case TierForecastDirect:
		return "forecast_direct"
	case TierHistory:
		return "history"
	case TierReplicated:
		return "replicated"
	default:
		return "none"
	}
}

// Series is an ordered, gap-free hourly sequence.
type Series struct {
	Start   time.Time
	Entries []Entry
	Tier    Tier
}

// Len returns the number of entries.
func (s *Series) Len() int {
	return len(s.Entries)
}

// Populated counts the entries that carry the given component.
func (s *Series) Populated(c Component) int {
	n := 0
	for _, e := range s.Entries {
		if _, ok := e.Values[c]; ok {
			n++
		}
	}
	return n
}

// Warning describes a degraded or failed upstream source.
type Warning struct {
	Source string
	Detail string
}
