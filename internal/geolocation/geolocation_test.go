package geolocation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherdeck/weatherdeck/internal/failure"
	"github.com/weatherdeck/weatherdeck/internal/geolocation"
	"github.com/weatherdeck/weatherdeck/internal/location"
)

type fakeReverse struct {
	places []geolocation.Place
	err    error
}

func (f fakeReverse) Reverse(context.Context, float64, float64) ([]geolocation.Place, error) {
	return f.places, f.err
}

// slowDevice never answers until ctx is done.
type slowDevice struct{}

func (slowDevice) RequestPermission(context.Context) (bool, error) { return true, nil }

func (slowDevice) CurrentPosition(ctx context.Context) (geolocation.Coordinates, error) {
	<-ctx.Done()
	return geolocation.Coordinates{}, ctx.Err()
}

type brokenPermission struct{}

func (brokenPermission) RequestPermission(context.Context) (bool, error) {
	return false, errors.New("permission service crashed")
}

func (brokenPermission) CurrentPosition(context.Context) (geolocation.Coordinates, error) {
	return geolocation.Coordinates{}, nil
}

func granted(lat, lon float64) geolocation.StaticDevice {
	return geolocation.StaticDevice{Granted: true, Position: &geolocation.Coordinates{Latitude: lat, Longitude: lon}}
}

func newResolver(rev geolocation.ReverseGeocoder) *geolocation.Resolver {
	return geolocation.NewResolver(geolocation.ResolverConfig{Reverse: rev, Logger: zerolog.Nop()})
}

func TestResolveCurrentLocation(t *testing.T) {
	resolver := newResolver(fakeReverse{places: []geolocation.Place{{City: "Miraflores", Region: "Lima", Country: "Perú"}}})

	loc, err := resolver.ResolveCurrentLocation(context.Background(), granted(-12.1211, -77.0297))
	require.NoError(t, err)

	assert.Equal(t, location.CurrentID, loc.ID)
	assert.True(t, loc.IsCurrent())
	assert.Equal(t, "Miraflores", loc.Name)
	assert.Equal(t, "Lima", loc.Region)
	assert.Equal(t, "Perú", loc.Country)
	lat, lon, ok := loc.Coordinates()
	require.True(t, ok)
	assert.Equal(t, -12.1211, lat)
	assert.Equal(t, -77.0297, lon)
}

func TestResolveCurrentLocation_PermissionDenied(t *testing.T) {
	resolver := newResolver(nil)

	_, err := resolver.ResolveCurrentLocation(context.Background(), geolocation.StaticDevice{Granted: false})

	require.Error(t, err)
	assert.Equal(t, failure.KindPermissionDenied, failure.Classify(err))
	assert.ErrorIs(t, err, failure.ErrPermissionDenied)
}

func TestResolveCurrentLocation_NoPosition(t *testing.T) {
	resolver := newResolver(nil)

	_, err := resolver.ResolveCurrentLocation(context.Background(), geolocation.StaticDevice{Granted: true})

	assert.Equal(t, failure.KindDeviceLocationUnavailable, failure.Classify(err))
	assert.ErrorIs(t, err, geolocation.ErrNoPosition)
}

func TestResolveCurrentLocation_Timeout(t *testing.T) {
	resolver := geolocation.NewResolver(geolocation.ResolverConfig{Timeout: 20 * time.Millisecond, Logger: zerolog.Nop()})

	start := time.Now()
	_, err := resolver.ResolveCurrentLocation(context.Background(), slowDevice{})

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, failure.KindDeviceLocationUnavailable, failure.Classify(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolveCurrentLocation_PermissionError(t *testing.T) {
	_, err := newResolver(nil).ResolveCurrentLocation(context.Background(), brokenPermission{})
	assert.Equal(t, failure.KindDeviceLocationUnavailable, failure.Classify(err))
}

func TestResolveCurrentLocation_InvalidCoordinates(t *testing.T) {
	_, err := newResolver(nil).ResolveCurrentLocation(context.Background(), granted(120, 0))
	assert.ErrorIs(t, err, geolocation.ErrInvalidCoordinates)
}

func TestResolveCurrentLocation_NilDevice(t *testing.T) {
	_, err := newResolver(nil).ResolveCurrentLocation(context.Background(), nil)
	assert.Equal(t, failure.KindDeviceLocationUnavailable, failure.Classify(err))
}

func TestResolveCurrentLocation_ReverseFailureFallsBack(t *testing.T) {
	resolver := newResolver(fakeReverse{err: errors.New("HTTP 503")})

	loc, err := resolver.ResolveCurrentLocation(context.Background(), granted(-0.2299, -78.5249))
	require.NoError(t, err)

	assert.Equal(t, geolocation.UnknownLocationName, loc.Name)
	assert.True(t, loc.HasCoordinates())
}

func TestResolveCurrentLocation_NoPlaces(t *testing.T) {
	loc, err := newResolver(fakeReverse{}).ResolveCurrentLocation(context.Background(), granted(0, 0))
	require.NoError(t, err)
	assert.Equal(t, geolocation.UnknownLocationName, loc.Name)
}

func TestPlaceName(t *testing.T) {
	tests := []struct {
		name  string
		place geolocation.Place
		want  string
	}{
		{"city wins", geolocation.Place{City: "Quito", Region: "Pichincha", Country: "Ecuador"}, "Quito"},
		{"region next", geolocation.Place{Region: "Pichincha", Country: "Ecuador"}, "Pichincha"},
		{"country last", geolocation.Place{Country: "Ecuador"}, "Ecuador"},
		{"blank city skipped", geolocation.Place{City: "  ", Country: "Ecuador"}, "Ecuador"},
		{"nothing", geolocation.Place{}, geolocation.UnknownLocationName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, geolocation.PlaceName(tt.place))
		})
	}
}
