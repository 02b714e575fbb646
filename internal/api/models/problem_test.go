package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airseries/internal/api/models"
)

func TestProblem_Builders(t *testing.T) {
	fieldErrors := []models.FieldError{
		{Field: "lat", Message: "must be between -90 and 90", Code: models.CodeOutOfRange},
		{Field: "lon", Message: "required", Code: models.CodeRequired},
	}

	p := models.NewProblem(
		models.ProblemTypeValidation,
		"Validation error",
		http.StatusBadRequest,
		"req_test123",
	).WithDetail("invalid coordinates").WithInstance("/v1/series").WithErrors(fieldErrors)

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "Validation error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "req_test123", p.TraceID)
	assert.Equal(t, "invalid coordinates", p.Detail)
	assert.Equal(t, "/v1/series", p.Instance)
	require.Len(t, p.Errors, 2)
	assert.Equal(t, models.CodeOutOfRange, p.Errors[0].Code)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "hours", Message: "must be an integer", Code: models.CodeInvalid},
	})
	p.Instance = "/v1/series"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/series", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "hours", result.Errors[0].Field)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewInternalError("", "boom").Write(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, w.Header().Get("X-Request-Id"))
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name    string
		problem *models.Problem
		typ     string
		title   string
		status  int
		detail  string
	}{
		{
			name:    "bad request",
			problem: models.NewBadRequest("req_123", "invalid data", nil),
			typ:     models.ProblemTypeValidation,
			title:   "Validation error",
			status:  http.StatusBadRequest,
			detail:  "invalid data",
		},
		{
			name:    "not found",
			problem: models.NewNotFound("req_123", "no such route"),
			typ:     models.ProblemTypeNotFound,
			title:   "Not found",
			status:  http.StatusNotFound,
			detail:  "no such route",
		},
		{
			name:    "method not allowed",
			problem: models.NewMethodNotAllowed("req_123", "DELETE"),
			typ:     models.ProblemTypeMethod,
			title:   "Method not allowed",
			status:  http.StatusMethodNotAllowed,
			detail:  "DELETE is not supported on this resource",
		},
		{
			name:    "too many requests",
			problem: models.NewTooManyRequests("req_123", "rate limit exceeded"),
			typ:     models.ProblemTypeTooManyRequests,
			title:   "Too many requests",
			status:  http.StatusTooManyRequests,
			detail:  "rate limit exceeded",
		},
		{
			name:    "tls required",
			problem: models.NewTLSRequired("req_123"),
			typ:     models.ProblemTypeTLSRequired,
			title:   "TLS required",
			status:  http.StatusForbidden,
			detail:  "This endpoint requires HTTPS",
		},
		{
			name:    "internal error",
			problem: models.NewInternalError("req_123", "unexpected"),
			typ:     models.ProblemTypeInternal,
			title:   "Internal server error",
			status:  http.StatusInternalServerError,
			detail:  "unexpected",
		},
		{
			name:    "service unavailable",
			problem: models.NewServiceUnavailable("req_123", "cache unreachable"),
			typ:     models.ProblemTypeUnavailable,
			title:   "Service unavailable",
			status:  http.StatusServiceUnavailable,
			detail:  "cache unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, tt.detail, tt.problem.Detail)
			assert.Equal(t, "req_123", tt.problem.TraceID)
		})
	}
}
