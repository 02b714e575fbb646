package models

// SeriesResponse is the body of GET /v1/series.
type SeriesResponse struct {
	Site        Site          `json:"site"`
	GeneratedAt Timestamp     `json:"generated_at"`
	Tier        string        `json:"tier"`
	Hourly      []HourlyEntry `json:"hourly"`
	Warnings    []Warning     `json:"warnings"`
}

// Site identifies where a series was built for.
type Site struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Name        string  `json:"name"`
	ID          string  `json:"id"`
	CountryCode string  `json:"country_code,omitempty"`
}

// HourlyEntry is one hour of a series. Absent values are omitted, never zero.
type HourlyEntry struct {
	Time        Timestamp `json:"time"`
	PM25        *float64  `json:"PM25,omitempty"`
	PM10        *float64  `json:"PM10,omitempty"`
	NO2         *float64  `json:"NO2,omitempty"`
	O3          *float64  `json:"O3,omitempty"`
	CO          *float64  `json:"CO,omitempty"`
	Temperature *float64  `json:"Temperature,omitempty"`
	Humidity    *float64  `json:"Humidity,omitempty"`
	WindSpeed   *float64  `json:"Wind_Speed,omitempty"`
	Pressure    *float64  `json:"Pressure,omitempty"`
	SampleCount int       `json:"sample_count"`
}

// Warning reports a degraded source.
type Warning struct {
	Source string `json:"source"`
	Detail string `json:"detail"`
}
