package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/weatherdeck/weatherdeck/internal/api/models"
	"github.com/weatherdeck/weatherdeck/internal/api/response"
	"github.com/weatherdeck/weatherdeck/internal/cities"
	"github.com/weatherdeck/weatherdeck/internal/failure"
)

// CityService manages the saved city list.
type CityService interface {
	List(ctx context.Context) ([]cities.Record, error)
	Add(ctx context.Context, name string) (cities.Record, error)
	Remove(ctx context.Context, id string) error
}

// CitiesHandler handles saved city endpoints.
type CitiesHandler struct {
	service CityService
}

// NewCitiesHandler creates a new CitiesHandler.
func NewCitiesHandler(service CityService) *CitiesHandler {
	return &CitiesHandler{service: service}
}

// List handles GET /v1/cities.
func (h *CitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		response.InternalError(w, r, "could not read saved cities")
		return
	}
	if records == nil {
		records = []cities.Record{}
	}
	response.JSON(w, r, http.StatusOK, records)
}

// Add handles POST /v1/cities.
func (h *CitiesHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req models.AddCityRequest
	if !response.Decode(w, r, &req, false) {
		return
	}

	record, err := h.service.Add(r.Context(), req.Name)
	switch {
	case err == nil:
		response.Created(w, r, "/v1/cities/"+record.ID, record)
	case errors.Is(err, cities.ErrEmptyName):
		response.BadRequest(w, r, "name is required", []models.FieldError{
			{Field: "name", Message: "required", Code: "REQUIRED"},
		})
	case errors.Is(err, cities.ErrCityExists):
		response.Conflict(w, r, "city already saved")
	case failure.Classify(err) != failure.KindUnknown:
		response.Failure(w, r, err)
	default:
		response.InternalError(w, r, "could not save city")
	}
}

// Remove handles DELETE /v1/cities/{cityId}.
func (h *CitiesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	err := h.service.Remove(r.Context(), chi.URLParam(r, "cityId"))
	switch {
	case err == nil:
		response.NoContent(w, r)
	case errors.Is(err, cities.ErrCityNotFound):
		response.NotFound(w, r, "city not saved")
	default:
		response.InternalError(w, r, "could not remove city")
	}
}
