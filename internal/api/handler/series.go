package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airseries/internal/airquality"
	"github.com/breatheroute/airseries/internal/api/middleware"
	"github.com/breatheroute/airseries/internal/api/models"
	"github.com/breatheroute/airseries/internal/api/response"
	"github.com/breatheroute/airseries/internal/series"
)

const maxSiteNameLength = 100

// SeriesBuilder builds hourly series for a site.
type SeriesBuilder interface {
	BuildHourlySeries(ctx context.Context, req series.Request) (*series.Response, error)
}

// SeriesHandler handles the series endpoint.
type SeriesHandler struct {
	builder SeriesBuilder
	logger  zerolog.Logger
}

// NewSeriesHandler creates a new SeriesHandler.
func NewSeriesHandler(builder SeriesBuilder, logger zerolog.Logger) *SeriesHandler {
	return &SeriesHandler{builder: builder, logger: logger}
}

// GetSeries handles GET /v1/series?lat=&lon=&hours=&name= - hourly series.
func (h *SeriesHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	req, fieldErrors := parseSeriesQuery(r)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	resp, err := h.builder.BuildHourlySeries(r.Context(), req)
	switch {
	case errors.Is(err, series.ErrInvalidCoordinates):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "lat", Message: "must be between -90 and 90", Code: models.CodeOutOfRange},
			{Field: "lon", Message: "must be between -180 and 180", Code: models.CodeOutOfRange},
		})
		return
	case errors.Is(err, series.ErrInvalidHours):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: "hours", Message: err.Error(), Code: models.CodeOutOfRange},
		})
		return
	case err != nil:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("series build failed")
		response.InternalError(w, r, "failed to build series")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	response.JSON(w, r, http.StatusOK, toSeriesResponse(resp))
}

func parseSeriesQuery(r *http.Request) (series.Request, []models.FieldError) {
	q := r.URL.Query()
	var (
		req    series.Request
		errors []models.FieldError
	)

	parseCoord := func(field string) float64 {
		raw := strings.TrimSpace(q.Get(field))
		if raw == "" {
			errors = append(errors, models.FieldError{Field: field, Message: "is required", Code: models.CodeRequired})
			return 0
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errors = append(errors, models.FieldError{Field: field, Message: "must be a number", Code: models.CodeInvalid})
			return 0
		}
		return v
	}
	req.Lat = parseCoord("lat")
	req.Lon = parseCoord("lon")

	if raw := strings.TrimSpace(q.Get("hours")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			errors = append(errors, models.FieldError{Field: "hours", Message: "must be an integer", Code: models.CodeInvalid})
		} else {
			req.Hours = hours
			if hours < 1 {
				errors = append(errors, models.FieldError{Field: "hours", Message: "must be at least 1", Code: models.CodeOutOfRange})
			}
		}
	}

	req.Name = strings.TrimSpace(q.Get("name"))
	if utf8.RuneCountInString(req.Name) > maxSiteNameLength {
		errors = append(errors, models.FieldError{Field: "name", Message: "must be at most 100 characters", Code: models.CodeOutOfRange})
	}

	return req, errors
}

func toSeriesResponse(resp *series.Response) models.SeriesResponse {
	out := models.SeriesResponse{
		Site: models.Site{
			Lat:         resp.Site.Lat,
			Lon:         resp.Site.Lon,
			Name:        resp.Site.Name,
			ID:          resp.Site.ID,
			CountryCode: resp.Site.CountryCode,
		},
		GeneratedAt: models.Timestamp(resp.GeneratedAt),
		Tier:        resp.Series.Tier.String(),
		Hourly:      make([]models.HourlyEntry, len(resp.Series.Entries)),
		Warnings:    make([]models.Warning, len(resp.Warnings)),
	}

	for i, e := range resp.Series.Entries {
		out.Hourly[i] = models.HourlyEntry{
			Time:        models.Timestamp(e.Time),
			PM25:        component(e, airquality.ComponentPM25),
			PM10:        component(e, airquality.ComponentPM10),
			NO2:         component(e, airquality.ComponentNO2),
			O3:          component(e, airquality.ComponentO3),
			CO:          component(e, airquality.ComponentCO),
			Temperature: e.Weather.Temperature,
			Humidity:    e.Weather.Humidity,
			WindSpeed:   e.Weather.WindSpeed,
			Pressure:    e.Weather.Pressure,
			SampleCount: e.SampleCount,
		}
	}
	for i, w := range resp.Warnings {
		out.Warnings[i] = models.Warning{Source: w.Source, Detail: w.Detail}
	}
	return out
}

func component(e airquality.Entry, c airquality.Component) *float64 {
	if v, ok := e.Value(c); ok {
		return &v
	}
	return nil
}
