package cities

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/location"
)

var (
	ErrCityExists   = errors.New("city already saved")
	ErrCityNotFound = errors.New("city not saved")
	ErrEmptyName    = errors.New("city name is empty")
)

// Geocoder resolves a typed name to a place.
type Geocoder interface {
	ResolveCityName(ctx context.Context, query string) (location.Location, error)
}

// ServiceConfig holds configuration for the cities service.
type ServiceConfig struct {
	Store    *Store
	Geocoder Geocoder
	Logger   zerolog.Logger
}

// Service adds and removes saved cities. Mutations are serialised so two
// concurrent adds cannot lose each other's write.
type Service struct {
	store    *Store
	geocoder Geocoder
	logger   zerolog.Logger

	mu sync.Mutex
}

// NewService creates a cities service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		store:    cfg.Store,
		geocoder: cfg.Geocoder,
		logger:   cfg.Logger,
	}
}

// List returns the saved cities in stored order.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.store.List(ctx)
}

// Add geocodes name and appends the match. Geocoding failures are returned
// as classified by the geocoder.
func (s *Service) Add(ctx context.Context, name string) (Record, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Record{}, ErrEmptyName
	}

	loc, err := s.geocoder.ResolveCityName(ctx, name)
	if err != nil {
		return Record{}, err
	}
	record := Record{ID: loc.ID, Name: loc.Name}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.List(ctx)
	if err != nil {
		return Record{}, err
	}
	for _, r := range records {
		if r.ID == record.ID || strings.EqualFold(r.Name, record.Name) {
			return Record{}, ErrCityExists
		}
	}

	records = append(records, record)
	if err := s.store.Save(ctx, records); err != nil {
		return Record{}, err
	}

	s.logger.Info().Str("city_id", record.ID).Str("name", record.Name).Msg("city saved")
	return record, nil
}

// Remove deletes the city with id.
func (s *Service) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return ErrCityNotFound
	}

	if err := s.store.Save(ctx, kept); err != nil {
		return err
	}

	s.logger.Info().Str("city_id", id).Msg("city removed")
	return nil
}
