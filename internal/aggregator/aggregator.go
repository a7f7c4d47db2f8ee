// Package aggregator combines the device position and the saved cities into
// one ordered, deduplicated list of locations with weather.
package aggregator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/weatherdeck/weatherdeck/internal/cities"
	"github.com/weatherdeck/weatherdeck/internal/failure"
	"github.com/weatherdeck/weatherdeck/internal/geolocation"
	"github.com/weatherdeck/weatherdeck/internal/location"
	"github.com/weatherdeck/weatherdeck/internal/weather"
)

const (
	// DefaultConcurrency bounds in-flight per-city resolutions.
	DefaultConcurrency = 4

	// DefaultEntryTimeout bounds one city's geocode plus weather fetch, and
	// the current-location resolution.
	DefaultEntryTimeout = 15 * time.Second
)

// LocationResolver resolves the device position.
type LocationResolver interface {
	ResolveCurrentLocation(ctx context.Context, device geolocation.Device) (location.Location, error)
}

// CityResolver geocodes a saved city name.
type CityResolver interface {
	ResolveCityName(ctx context.Context, query string) (location.Location, error)
}

// WeatherFetcher returns the snapshot for a location.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, loc location.Location, opts weather.FetchOptions) (*weather.Snapshot, error)
}

// SavedCities lists the saved city records in stored order.
type SavedCities interface {
	List(ctx context.Context) ([]cities.Record, error)
}

// Config holds the Aggregator's collaborators and limits.
type Config struct {
	Geo     LocationResolver
	Cities  CityResolver
	Weather WeatherFetcher
	Saved   SavedCities

	// Duplicates decides which saved cities collapse into the current location.
	Duplicates location.DuplicateRule

	// Concurrency defaults to DefaultConcurrency.
	Concurrency int

	// EntryTimeout bounds each saved city and the current location
	// independently. Defaults to DefaultEntryTimeout.
	EntryTimeout time.Duration

	Logger zerolog.Logger
}

// Options controls one aggregation cycle.
type Options struct {
	// Device supplies the current position. Nil skips the current location.
	Device geolocation.Device

	// Selected is a location the user picked; matched by name.
	Selected *location.Location

	// Refresh bypasses cache reads for every fetch in the cycle.
	Refresh bool
}

// Entry is one location in the result. Weather is nil when it was deferred or
// could not be loaded; Err then carries the reason, if any.
type Entry struct {
	Location location.Location `json:"location"`
	Weather  *weather.Snapshot `json:"weather"`
	Err      failure.Kind      `json:"error,omitempty"`
}

// Result is the outcome of one cycle.
type Result struct {
	Entries []Entry `json:"entries"`

	// Active is the index of the entry to show first, -1 when Entries is empty.
	Active int `json:"active"`

	// Generation is assigned by Session; zero for stateless calls.
	Generation uint64 `json:"generation"`

	// CurrentErr explains a missing current location.
	CurrentErr failure.Kind `json:"currentLocationError,omitempty"`
}

// Aggregator runs aggregation cycles. It holds no per-cycle state, so every
// call rebuilds the list from scratch.
type Aggregator struct {
	geo          LocationResolver
	cities       CityResolver
	weather      WeatherFetcher
	saved        SavedCities
	duplicates   location.DuplicateRule
	concurrency  int
	entryTimeout time.Duration
	logger       zerolog.Logger
}

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	entryTimeout := cfg.EntryTimeout
	if entryTimeout <= 0 {
		entryTimeout = DefaultEntryTimeout
	}
	return &Aggregator{
		geo:          cfg.Geo,
		cities:       cfg.Cities,
		weather:      cfg.Weather,
		saved:        cfg.Saved,
		duplicates:   cfg.Duplicates,
		concurrency:  concurrency,
		entryTimeout: entryTimeout,
		logger:       cfg.Logger,
	}
}

// LoadAll resolves the current location and every saved city concurrently and
// returns them as: current first, then saved cities in stored order minus any
// duplicate of the current location. Individual failures degrade to
// placeholders; LoadAll itself never fails.
//
// Saved cities carry weather as part of their resolution. The current
// location's weather is fetched only when it is the active entry; otherwise it
// is deferred until Session.Activate.
func (a *Aggregator) LoadAll(ctx context.Context, opts Options) *Result {
	start := time.Now()

	records, err := a.saved.List(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("saved cities unavailable, continuing without them")
		records = nil
	}

	var (
		current    *location.Location
		currentErr failure.Kind
		slots      = make([]Entry, len(records))
	)

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)

	if opts.Device != nil {
		g.Go(func() error {
			geoCtx, cancel := context.WithTimeout(ctx, a.entryTimeout)
			defer cancel()

			loc, err := a.geo.ResolveCurrentLocation(geoCtx, opts.Device)
			if err != nil {
				currentErr = failure.Classify(err)
				a.logger.Info().Err(err).Str("kind", string(currentErr)).Msg("current location unavailable")
				return nil
			}
			current = &loc
			return nil
		})
	}

	for i, rec := range records {
		g.Go(func() error {
			slots[i] = a.resolveSaved(ctx, rec, opts.Refresh)
			return nil
		})
	}

	// Goroutines never return errors; Wait is purely the fan-in.
	_ = g.Wait()

	entries := make([]Entry, 0, len(slots)+1)
	if current != nil {
		entries = append(entries, Entry{Location: *current})
	}
	for _, e := range slots {
		if current != nil && a.duplicates.IsDuplicate(*current, e.Location) {
			ev := a.logger.Debug().Str("name", e.Location.Name)
			if km, ok := location.DistanceKm(*current, e.Location); ok {
				ev = ev.Float64("distance_km", km)
			}
			ev.Msg("saved city duplicates current location, skipped")
			continue
		}
		entries = append(entries, e)
	}

	result := &Result{Entries: entries, Active: -1, CurrentErr: currentErr}
	if len(entries) > 0 {
		result.Active = 0
		if opts.Selected != nil {
			if i := location.IndexByName(locations(entries), opts.Selected.Name); i >= 0 {
				result.Active = i
			}
		}
		a.fillActive(ctx, result, opts.Refresh)
	}

	a.logger.Debug().
		Int("entries", len(entries)).
		Int("active", result.Active).
		Dur("duration", time.Since(start)).
		Msg("locations aggregated")

	return result
}

// FetchEntry loads weather for entry i if it is missing. It reports whether
// the entry changed.
func (a *Aggregator) FetchEntry(ctx context.Context, entries []Entry, i int, refresh bool) bool {
	e := &entries[i]
	if e.Weather != nil && !refresh {
		return false
	}
	if !e.Location.HasCoordinates() {
		return false
	}
	snap, err := a.weather.FetchWeather(ctx, e.Location, weather.FetchOptions{Refresh: refresh})
	if err != nil {
		e.Err = failure.Classify(err)
		a.logger.Warn().Err(err).Str("name", e.Location.Name).Msg("weather unavailable for entry")
		return true
	}
	e.Weather = snap
	e.Err = ""
	return true
}

func (a *Aggregator) fillActive(ctx context.Context, result *Result, refresh bool) {
	if result.Entries[result.Active].Weather != nil {
		return
	}
	a.FetchEntry(ctx, result.Entries, result.Active, refresh)
}

// resolveSaved geocodes one saved city and loads its weather. Any failure
// yields a placeholder with no coordinates and no weather.
func (a *Aggregator) resolveSaved(ctx context.Context, rec cities.Record, refresh bool) Entry {
	ctx, cancel := context.WithTimeout(ctx, a.entryTimeout)
	defer cancel()

	loc, err := a.cities.ResolveCityName(ctx, rec.Name)
	if err != nil {
		return a.placeholder(rec, err)
	}
	if rec.ID != "" {
		loc.ID = rec.ID
	}

	snap, err := a.weather.FetchWeather(ctx, loc, weather.FetchOptions{Refresh: refresh})
	if err != nil {
		return a.placeholder(rec, err)
	}

	return Entry{Location: loc, Weather: snap}
}

func (a *Aggregator) placeholder(rec cities.Record, err error) Entry {
	kind := failure.Classify(err)
	a.logger.Warn().Err(err).
		Str("city_id", rec.ID).
		Str("name", rec.Name).
		Str("kind", string(kind)).
		Msg("saved city degraded to placeholder")
	return Entry{Location: location.Placeholder(rec.ID, rec.Name), Err: kind}
}

func locations(entries []Entry) []location.Location {
	out := make([]location.Location, len(entries))
	for i, e := range entries {
		out[i] = e.Location
	}
	return out
}
