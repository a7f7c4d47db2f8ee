package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/weatherdeck/weatherdeck/internal/aggregator"
	"github.com/weatherdeck/weatherdeck/internal/api/models"
	"github.com/weatherdeck/weatherdeck/internal/api/response"
)

// LocationSession is the aggregation session behind the carousel endpoints.
type LocationSession interface {
	Load(ctx context.Context, opts aggregator.Options) (*aggregator.Result, bool)
	Latest() (*aggregator.Result, error)
	Activate(ctx context.Context, index int) (*aggregator.Result, error)
}

// ActivateRequest is the body of PUT /v1/locations/active.
type ActivateRequest struct {
	Index int `json:"index"`
}

// LocationsHandler handles the aggregated location list.
type LocationsHandler struct {
	session LocationSession
}

// NewLocationsHandler creates a new LocationsHandler.
func NewLocationsHandler(session LocationSession) *LocationsHandler {
	return &LocationsHandler{session: session}
}

// Load handles POST /v1/locations:load. When a newer load committed while
// this one ran, the newer result is returned instead.
func (h *LocationsHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req models.LoadLocationsRequest
	if !response.Decode(w, r, &req, true) {
		return
	}

	result, committed := h.session.Load(r.Context(), aggregator.Options{
		Device:   req.Device.Device(),
		Selected: req.Selected,
		Refresh:  req.Refresh,
	})
	if !committed {
		if latest, err := h.session.Latest(); err == nil {
			result = latest
		}
	}
	response.JSON(w, r, http.StatusOK, result)
}

// Latest handles GET /v1/locations.
func (h *LocationsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	result, err := h.session.Latest()
	if err != nil {
		response.NotFound(w, r, "no locations loaded yet")
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

// Activate handles PUT /v1/locations/active.
func (h *LocationsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if !response.Decode(w, r, &req, false) {
		return
	}

	result, err := h.session.Activate(r.Context(), req.Index)
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, result)
	case errors.Is(err, aggregator.ErrNoResult):
		response.NotFound(w, r, "no locations loaded yet")
	case errors.Is(err, aggregator.ErrIndexOutOfRange):
		response.BadRequest(w, r, "index out of range", []models.FieldError{
			{Field: "index", Message: "out of range", Code: "OUT_OF_RANGE"},
		})
	case errors.Is(err, aggregator.ErrSuperseded):
		response.Conflict(w, r, "locations were reloaded; fetch the latest list and retry")
	default:
		response.InternalError(w, r, "could not activate location")
	}
}
