// Package geocoding resolves free-text city names to Locations.
package geocoding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/failure"
	"github.com/weatherdeck/weatherdeck/internal/location"
	"github.com/weatherdeck/weatherdeck/internal/telemetry"
)

// DefaultSuggestionLimit is the type-ahead result count.
const DefaultSuggestionLimit = 5

// MaxSuggestionLimit caps caller-provided limits.
const MaxSuggestionLimit = 20

var (
	ErrEmptyQuery = errors.New("query is empty")
	ErrNoResults  = errors.New("no place matches the query")
)

// Result is one upstream match.
type Result struct {
	// ID is the upstream identifier, empty if the upstream has none.
	ID        string
	Name      string
	Region    string
	Country   string
	Latitude  float64
	Longitude float64
}

// Searcher is an upstream forward-geocoding API. Results keep upstream order.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

// ServiceConfig holds configuration for the geocoding service.
type ServiceConfig struct {
	Searcher Searcher
	Logger   zerolog.Logger
	Metrics  *telemetry.UpstreamMetrics

	// NewID generates ids for results without an upstream id. Defaults to uuid.
	NewID func() string
}

// Service is the city geocoder. Each lookup is a single upstream attempt;
// the Searcher's HTTP client must not retry, so a failure surfaces at once and
// callers decide whether to try again.
type Service struct {
	searcher Searcher
	logger   zerolog.Logger
	metrics  *telemetry.UpstreamMetrics
	newID    func() string
}

// NewService creates a geocoding service.
func NewService(cfg ServiceConfig) *Service {
	newID := cfg.NewID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}
	return &Service{
		searcher: cfg.Searcher,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		newID:    newID,
	}
}

// ResolveCityName returns the first upstream match for query.
// Zero matches is LocationNotFound; transport and parse failures are GeocodingError.
func (s *Service) ResolveCityName(ctx context.Context, query string) (location.Location, error) {
	const op = "geocoding.ResolveCityName"

	query = strings.TrimSpace(query)
	if query == "" {
		return location.Location{}, failure.New(failure.KindLocationNotFound, op, ErrEmptyQuery)
	}

	results, err := s.search(ctx, op, query, 1)
	if err != nil {
		return location.Location{}, err
	}
	if len(results) == 0 {
		s.logger.Debug().Str("query", query).Msg("no geocoding match")
		return location.Location{}, failure.New(failure.KindLocationNotFound, op, ErrNoResults)
	}

	return s.toLocation(results[0]), nil
}

// Suggest returns up to limit candidates for type-ahead. An empty result set is
// not an error here.
func (s *Service) Suggest(ctx context.Context, query string, limit int) ([]location.Location, error) {
	const op = "geocoding.Suggest"

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, failure.New(failure.KindLocationNotFound, op, ErrEmptyQuery)
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	if limit > MaxSuggestionLimit {
		limit = MaxSuggestionLimit
	}

	results, err := s.search(ctx, op, query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]location.Location, 0, len(results))
	for _, r := range results {
		out = append(out, s.toLocation(r))
	}
	return out, nil
}

func (s *Service) search(ctx context.Context, op, query string, limit int) ([]Result, error) {
	start := time.Now()
	results, err := s.searcher.Search(ctx, query, limit)
	s.metrics.RecordRequest(ctx, s.searcher.Name(), "search", time.Since(start), err)
	if err != nil {
		s.logger.Error().Err(err).Str("query", query).Msg("geocoding request failed")
		return nil, failure.New(failure.KindGeocoding, op, err)
	}
	return results, nil
}

func (s *Service) toLocation(r Result) location.Location {
	id := r.ID
	if id == "" {
		id = s.newID()
	}
	loc := location.New(id, r.Name, r.Latitude, r.Longitude)
	loc.Region = r.Region
	loc.Country = r.Country
	return loc
}
