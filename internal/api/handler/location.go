package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/weatherdeck/weatherdeck/internal/api/models"
	"github.com/weatherdeck/weatherdeck/internal/api/response"
	"github.com/weatherdeck/weatherdeck/internal/geolocation"
	"github.com/weatherdeck/weatherdeck/internal/location"
)

// CurrentLocationResolver resolves a device position to a named location.
type CurrentLocationResolver interface {
	ResolveCurrentLocation(ctx context.Context, device geolocation.Device) (location.Location, error)
}

// CitySearcher geocodes free text.
type CitySearcher interface {
	ResolveCityName(ctx context.Context, query string) (location.Location, error)
	Suggest(ctx context.Context, query string, limit int) ([]location.Location, error)
}

// LocationHandler handles device location and geocoding endpoints.
type LocationHandler struct {
	resolver CurrentLocationResolver
	searcher CitySearcher
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(resolver CurrentLocationResolver, searcher CitySearcher) *LocationHandler {
	return &LocationHandler{resolver: resolver, searcher: searcher}
}

// ResolveCurrent handles POST /v1/location:resolve.
func (h *LocationHandler) ResolveCurrent(w http.ResponseWriter, r *http.Request) {
	var req models.ResolveLocationRequest
	if !response.Decode(w, r, &req, true) {
		return
	}

	loc, err := h.resolver.ResolveCurrentLocation(r.Context(), req.Device.Device())
	if err != nil {
		response.Failure(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, loc)
}

// Geocode handles POST /v1/geocode.
func (h *LocationHandler) Geocode(w http.ResponseWriter, r *http.Request) {
	var req models.GeocodeRequest
	if !response.Decode(w, r, &req, false) {
		return
	}

	loc, err := h.searcher.ResolveCityName(r.Context(), req.Query)
	if err != nil {
		response.Failure(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, loc)
}

// Suggestions handles GET /v1/geocode/suggestions?q=&limit=.
// A blank query yields an empty list without calling upstream.
func (h *LocationHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(w, r, "limit must be a positive integer", []models.FieldError{
				{Field: "limit", Message: "must be a positive integer", Code: "INVALID"},
			})
			return
		}
		limit = n
	}

	out := models.SuggestionsResponse{Query: query, Suggestions: []location.Location{}}
	if query == "" {
		response.JSON(w, r, http.StatusOK, out)
		return
	}

	suggestions, err := h.searcher.Suggest(r.Context(), query, limit)
	if err != nil {
		response.Failure(w, r, err)
		return
	}
	if len(suggestions) > 0 {
		out.Suggestions = suggestions
	}
	response.JSON(w, r, http.StatusOK, out)
}
