package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherdeck/weatherdeck/internal/api/models"
	"github.com/weatherdeck/weatherdeck/internal/failure"
	"github.com/weatherdeck/weatherdeck/internal/geolocation"
)

func TestProblem_Builders(t *testing.T) {
	p := models.NewProblem(models.ProblemTypeValidation, "Validation error", http.StatusBadRequest, "req_test123").
		WithDetail("query must not be empty").
		WithInstance("/v1/geocode").
		WithErrors([]models.FieldError{{Field: "query", Message: "required", Code: "REQUIRED"}})

	assert.Equal(t, models.ProblemTypeValidation, p.Type)
	assert.Equal(t, "query must not be empty", p.Detail)
	assert.Equal(t, "/v1/geocode", p.Instance)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "REQUIRED", p.Errors[0].Code)
	assert.Empty(t, p.Kind)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "location.latitude", Message: "out of range"},
	})
	p.Instance = "/v1/weather"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, models.ProblemTypeValidation, result["type"])
	assert.Equal(t, "/v1/weather", result["instance"])
	assert.Equal(t, "req_test123", result["traceId"])
	assert.NotContains(t, result, "kind")
	assert.NotContains(t, result, "persistent")
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind failure.Kind
		want int
	}{
		{failure.KindPermissionDenied, http.StatusForbidden},
		{failure.KindDeviceLocationUnavailable, http.StatusServiceUnavailable},
		{failure.KindLocationNotFound, http.StatusNotFound},
		{failure.KindGeocoding, http.StatusBadGateway},
		{failure.KindWeatherAPI, http.StatusBadGateway},
		{failure.KindUnknown, http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, models.StatusForKind(tt.kind))
		})
	}
}

func TestNewFailure(t *testing.T) {
	p := models.NewFailure("req_1", failure.KindPermissionDenied)

	assert.Equal(t, "https://api.weatherdeck.dev/problems/permission-denied", p.Type)
	assert.Equal(t, http.StatusForbidden, p.Status)
	assert.Equal(t, "Forbidden", p.Title)
	assert.Equal(t, failure.KindPermissionDenied, p.Kind)
	assert.True(t, p.Persistent)
	assert.Equal(t, failure.Message(failure.KindPermissionDenied), p.Detail)

	transient := models.NewFailure("req_1", failure.KindWeatherAPI)
	assert.False(t, transient.Persistent)
	assert.Equal(t, http.StatusBadGateway, transient.Status)

	w := httptest.NewRecorder()
	transient.Write(w)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "WEATHER_API_ERROR", body["kind"])
}

func TestNewFailure_EmptyKindIsUnknown(t *testing.T) {
	p := models.NewFailure("req_1", "")
	assert.Equal(t, failure.KindUnknown, p.Kind)
	assert.Equal(t, http.StatusInternalServerError, p.Status)
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name   string
		p      *models.Problem
		typ    string
		status int
	}{
		{"not found", models.NewNotFound("r", "city not found"), models.ProblemTypeNotFound, http.StatusNotFound},
		{"conflict", models.NewConflict("r", "city already saved"), models.ProblemTypeConflict, http.StatusConflict},
		{"too many", models.NewTooManyRequests("r", "slow down"), models.ProblemTypeTooManyRequests, http.StatusTooManyRequests},
		{"internal", models.NewInternalError("r", "boom"), models.ProblemTypeInternal, http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("r", "down"), models.ProblemTypeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typ, tt.p.Type)
			assert.Equal(t, tt.status, tt.p.Status)
			assert.NotEmpty(t, tt.p.Detail)
		})
	}
}

func TestTimestamp_RoundTrip(t *testing.T) {
	ts := models.Timestamp(time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("PET", -5*3600)))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-05-01T17:00:00Z"`, string(data))

	var back models.Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Time().Equal(ts.Time()))

	assert.Error(t, json.Unmarshal([]byte(`12`), &back))
}

func TestDeviceReport_Device(t *testing.T) {
	var missing *models.DeviceReport
	assert.Nil(t, missing.Device())

	report := &models.DeviceReport{
		PermissionGranted: true,
		Position:          &geolocation.Coordinates{Latitude: -12.05, Longitude: -77.04},
	}
	device, ok := report.Device().(geolocation.StaticDevice)
	require.True(t, ok)
	assert.True(t, device.Granted)
	assert.InDelta(t, -12.05, device.Position.Latitude, 1e-9)
}
