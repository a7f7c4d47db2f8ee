package handler

import (
	"context"
	"net/http"

	"github.com/weatherdeck/weatherdeck/internal/api/models"
	"github.com/weatherdeck/weatherdeck/internal/api/response"
	"github.com/weatherdeck/weatherdeck/internal/location"
	"github.com/weatherdeck/weatherdeck/internal/weather"
)

// WeatherService fetches snapshots and manages their cache.
type WeatherService interface {
	FetchWeather(ctx context.Context, loc location.Location, opts weather.FetchOptions) (*weather.Snapshot, error)
	ClearCache()
	CacheStats() weather.CacheStats
}

// WeatherHandler handles weather endpoints.
type WeatherHandler struct {
	service WeatherService
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(service WeatherService) *WeatherHandler {
	return &WeatherHandler{service: service}
}

// Fetch handles POST /v1/weather.
func (h *WeatherHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	var req models.WeatherRequest
	if !response.Decode(w, r, &req, false) {
		return
	}

	if fieldErrs := coordinateErrors(req.Location); len(fieldErrs) > 0 {
		response.BadRequest(w, r, "location needs valid coordinates", fieldErrs)
		return
	}

	snap, err := h.service.FetchWeather(r.Context(), req.Location, weather.FetchOptions{Refresh: req.Refresh})
	if err != nil {
		response.Failure(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, snap)
}

// CacheStats handles GET /v1/weather/cache.
func (h *WeatherHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.service.CacheStats()
	response.JSON(w, r, http.StatusOK, models.CacheStatsResponse{
		Entries:  stats.Entries,
		TTL:      stats.TTL.String(),
		Provider: stats.Provider,
	})
}

// ClearCache handles POST /v1/weather/cache:clear.
func (h *WeatherHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.service.ClearCache()
	response.NoContent(w, r)
}

func coordinateErrors(loc location.Location) []models.FieldError {
	var errs []models.FieldError
	switch {
	case loc.Latitude == nil:
		errs = append(errs, models.FieldError{Field: "location.latitude", Message: "required", Code: "REQUIRED"})
	case *loc.Latitude < -90 || *loc.Latitude > 90:
		errs = append(errs, models.FieldError{Field: "location.latitude", Message: "must be between -90 and 90", Code: "OUT_OF_RANGE"})
	}
	switch {
	case loc.Longitude == nil:
		errs = append(errs, models.FieldError{Field: "location.longitude", Message: "required", Code: "REQUIRED"})
	case *loc.Longitude < -180 || *loc.Longitude > 180:
		errs = append(errs, models.FieldError{Field: "location.longitude", Message: "must be between -180 and 180", Code: "OUT_OF_RANGE"})
	}
	return errs
}
