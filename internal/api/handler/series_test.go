package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/api/handler"
	"github.com/breatheroute/airseries/internal/api/models"
	"github.com/breatheroute/airseries/internal/series"
)

type fakeBuilder struct {
	got  series.Request
	resp *series.Response
	err  error
}

func (f *fakeBuilder) BuildHourlySeries(_ context.Context, req series.Request) (*series.Response, error) {
	f.got = req
	return f.resp, f.err
}

func ptr(v float64) *float64 { return &v }

func sampleResponse() *series.Response {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	entries := []airquality.Entry{
		{
			Time:        start,
			Values:      map[airquality.Component]float64{airquality.ComponentPM25: 12, airquality.ComponentNO2: 0},
			SampleCount: 2,
			Weather:     airquality.WeatherFields{Temperature: ptr(4.5), WindSpeed: ptr(3)},
		},
		{
			Time:   start.Add(time.Hour),
			Values: map[airquality.Component]float64{airquality.ComponentPM25: 14},
		},
	}
	return &series.Response{
		Site:        series.Site{Lat: 52.37, Lon: 4.89, Name: "Amsterdam", ID: "amsterdam-nl", CountryCode: "NL"},
		GeneratedAt: start.Add(20 * time.Minute),
		Series:      airquality.Series{Start: start, Entries: entries, Tier: airquality.TierCombined},
		Warnings:    []airquality.Warning{{Source: "openaq", Detail: "upstream returned 503"}},
	}
}

func serve(h *handler.SeriesHandler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	h.GetSeries(rec, req)
	return rec
}

func TestGetSeries_OK(t *testing.T) {
	builder := &fakeBuilder{resp: sampleResponse()}
	h := handler.NewSeriesHandler(builder, zerolog.Nop())

	rec := serve(h, "/v1/series?lat=52.37&lon=4.89&hours=2&name=Home")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
	assert.Equal(t, series.Request{Lat: 52.37, Lon: 4.89, Hours: 2, Name: "Home"}, builder.got)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Equal(t, "combined", body["tier"])
	assert.Equal(t, "2024-01-01T10:20:00Z", body["generated_at"])

	site := body["site"].(map[string]interface{})
	assert.Equal(t, "amsterdam-nl", site["id"])
	assert.Equal(t, "Amsterdam", site["name"])
	assert.Equal(t, 52.37, site["lat"])

	hourly := body["hourly"].([]interface{})
	require.Len(t, hourly, 2)
	first := hourly[0].(map[string]interface{})
	assert.Equal(t, "2024-01-01T10:00:00Z", first["time"])
	assert.Equal(t, 12.0, first["PM25"])
	assert.Equal(t, 0.0, first["NO2"])
	assert.Equal(t, 4.5, first["Temperature"])
	assert.Equal(t, 3.0, first["Wind_Speed"])
	assert.Equal(t, 2.0, first["sample_count"])
	assert.NotContains(t, first, "PM10")
	assert.NotContains(t, first, "Humidity")

	second := hourly[1].(map[string]interface{})
	assert.Equal(t, 0.0, second["sample_count"])
	assert.NotContains(t, second, "Temperature")

	warnings := body["warnings"].([]interface{})
	require.Len(t, warnings, 1)
	assert.Equal(t, "openaq", warnings[0].(map[string]interface{})["source"])
}

func TestGetSeries_EmptyWarningsIsArray(t *testing.T) {
	resp := sampleResponse()
	resp.Warnings = nil
	h := handler.NewSeriesHandler(&fakeBuilder{resp: resp}, zerolog.Nop())

	rec := serve(h, "/v1/series?lat=1&lon=2")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"warnings":[]`)
}

func TestGetSeries_QueryValidation(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		fields []string
	}{
		{"missing coordinates", "", []string{"lat", "lon"}},
		{"non numeric lat", "lat=north&lon=4", []string{"lat"}},
		{"non integer hours", "lat=1&lon=2&hours=1.5", []string{"hours"}},
		{"zero hours", "lat=1&lon=2&hours=0", []string{"hours"}},
		{"long name", fmt.Sprintf("lat=1&lon=2&name=%0101d", 0), []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := &fakeBuilder{resp: sampleResponse()}
			h := handler.NewSeriesHandler(builder, zerolog.Nop())

			rec := serve(h, "/v1/series?"+tt.query)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			fields := make([]string, len(problem.Errors))
			for i, e := range problem.Errors {
				fields[i] = e.Field
			}
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, series.Request{}, builder.got, "builder must not be called")
		})
	}
}

func TestGetSeries_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"invalid coordinates", fmt.Errorf("point: %w", series.ErrInvalidCoordinates), http.StatusBadRequest, "lat"},
		{"invalid hours", fmt.Errorf("%w: 500 not in [1, 168]", series.ErrInvalidHours), http.StatusBadRequest, "hours"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewSeriesHandler(&fakeBuilder{err: tt.err}, zerolog.Nop())

			rec := serve(h, "/v1/series?lat=95&lon=2&hours=500")

			assert.Equal(t, tt.status, rec.Code)

			var problem models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			if tt.field != "" {
				require.NotEmpty(t, problem.Errors)
				assert.Equal(t, tt.field, problem.Errors[0].Field)
			} else {
				assert.NotContains(t, problem.Detail, "boom")
			}
		})
	}
}
