// Package geolocation resolves the device position into a named Location.
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherdeck/weatherdeck/internal/failure"
	"github.com/weatherdeck/weatherdeck/internal/location"
)

// UnknownLocationName is used when reverse geocoding yields no usable name.
const UnknownLocationName = "Unknown location"

// DefaultTimeout bounds the device position read.
const DefaultTimeout = 10 * time.Second

var (
	ErrNoPosition         = errors.New("device reported no position")
	ErrInvalidCoordinates = errors.New("device reported invalid coordinates")
)

// Coordinates is a device position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Device is the device location subsystem.
type Device interface {
	// RequestPermission asks for foreground location access.
	RequestPermission(ctx context.Context) (bool, error)

	// CurrentPosition reads the position. It must honour ctx cancellation.
	CurrentPosition(ctx context.Context) (Coordinates, error)
}

// Place is one reverse-geocoding candidate. Any field may be empty.
type Place struct {
	City    string
	Region  string
	Country string
}

// ReverseGeocoder turns coordinates into places, best match first.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) ([]Place, error)
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// Reverse is optional; without it the name is always UnknownLocationName.
	Reverse ReverseGeocoder

	// Timeout bounds the position read. Defaults to DefaultTimeout.
	Timeout time.Duration

	Logger zerolog.Logger
}

// Resolver produces the "current" Location from a Device.
type Resolver struct {
	reverse ReverseGeocoder
	timeout time.Duration
	logger  zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		reverse: cfg.Reverse,
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// ResolveCurrentLocation asks device for permission and position and names the
// result by reverse geocoding. A refused permission fails with PermissionDenied
// and is not retried; a missing or late position fails with
// DeviceLocationUnavailable. Reverse-geocoding failures are logged only.
func (r *Resolver) ResolveCurrentLocation(ctx context.Context, device Device) (location.Location, error) {
	const op = "geolocation.ResolveCurrentLocation"

	if device == nil {
		return location.Location{}, failure.New(failure.KindDeviceLocationUnavailable, op, ErrNoPosition)
	}

	granted, err := device.RequestPermission(ctx)
	if err != nil {
		return location.Location{}, failure.Wrap(failure.KindDeviceLocationUnavailable, op, err)
	}
	if !granted {
		return location.Location{}, failure.New(failure.KindPermissionDenied, op, nil)
	}

	posCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pos, err := device.CurrentPosition(posCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("no position within %s: %w", r.timeout, err)
		}
		return location.Location{}, failure.Wrap(failure.KindDeviceLocationUnavailable, op, err)
	}
	if pos.Latitude < -90 || pos.Latitude > 90 || pos.Longitude < -180 || pos.Longitude > 180 {
		return location.Location{}, failure.New(failure.KindDeviceLocationUnavailable, op, ErrInvalidCoordinates)
	}

	loc := location.New(location.CurrentID, UnknownLocationName, pos.Latitude, pos.Longitude)
	place := r.lookup(ctx, pos)
	loc.Name = PlaceName(place)
	loc.Region = place.Region
	loc.Country = place.Country

	r.logger.Debug().
		Float64("lat", pos.Latitude).
		Float64("lon", pos.Longitude).
		Str("name", loc.Name).
		Msg("current location resolved")

	return loc, nil
}

func (r *Resolver) lookup(ctx context.Context, pos Coordinates) Place {
	if r.reverse == nil {
		return Place{}
	}
	places, err := r.reverse.Reverse(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		r.logger.Warn().Err(err).
			Float64("lat", pos.Latitude).
			Float64("lon", pos.Longitude).
			Msg("reverse geocoding failed, using fallback name")
		return Place{}
	}
	if len(places) == 0 {
		return Place{}
	}
	return places[0]
}

// PlaceName prefers city, then region, then country.
func PlaceName(p Place) string {
	for _, name := range []string{p.City, p.Region, p.Country} {
		if n := strings.TrimSpace(name); n != "" {
			return n
		}
	}
	return UnknownLocationName
}

// StaticDevice is a Device with a known answer, used for positions reported by
// a client over HTTP and for the worker's configured home position.
type StaticDevice struct {
	Granted  bool
	Position *Coordinates
}

// RequestPermission reports the configured grant.
func (d StaticDevice) RequestPermission(context.Context) (bool, error) {
	return d.Granted, nil
}

// CurrentPosition returns the configured position or ErrNoPosition.
func (d StaticDevice) CurrentPosition(ctx context.Context) (Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return Coordinates{}, err
	}
	if d.Position == nil {
		return Coordinates{}, ErrNoPosition
	}
	return *d.Position, nil
}
