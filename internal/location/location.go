// Package location defines the canonical location record shared by the
// resolvers, the weather fetcher and the aggregator.
package location

import (
	"math"
	"strings"

	"github.com/golang/geo/s2"
)

// CurrentID identifies the device's own position.
const CurrentID = "current"

// DefaultDuplicateThreshold is the per-axis tolerance in degrees (~1.1 km)
// under which two coordinate pairs are considered the same place.
const DefaultDuplicateThreshold = 0.01

const degreeEpsilon = 1e-9

// Location is a named place with optional coordinates.
// A Location without coordinates cannot be used to fetch weather.
type Location struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Region    string   `json:"region,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// New returns a Location with coordinates set.
func New(id, name string, lat, lon float64) Location {
	return Location{
		ID:        id,
		Name:      name,
		Latitude:  &lat,
		Longitude: &lon,
	}
}

// Placeholder returns a Location that carries only identity, used when a
// place could not be resolved.
func Placeholder(id, name string) Location {
	return Location{ID: id, Name: name}
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// IsCurrent reports whether l is the device position.
func (l Location) IsCurrent() bool {
	return l.ID == CurrentID
}

// Coordinates returns the latitude and longitude. ok is false when either
// is missing.
func (l Location) Coordinates() (lat, lon float64, ok bool) {
	if !l.HasCoordinates() {
		return 0, 0, false
	}
	return *l.Latitude, *l.Longitude, true
}

// DuplicateRule decides whether two locations refer to the same place.
type DuplicateRule struct {
	// Threshold is the per-axis tolerance in degrees.
	// Zero means DefaultDuplicateThreshold.
	Threshold float64
}

// IsDuplicate applies the rule with the default threshold.
func IsDuplicate(a, b Location) bool {
	return DuplicateRule{}.IsDuplicate(a, b)
}

// IsDuplicate reports whether a and b share a name (case-insensitive) or
// both have coordinates within the threshold on each axis.
func (r DuplicateRule) IsDuplicate(a, b Location) bool {
	if a.Name != "" && strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(b.Name)) {
		return true
	}
	if !a.HasCoordinates() || !b.HasCoordinates() {
		return false
	}

	threshold := r.Threshold
	if threshold <= 0 {
		threshold = DefaultDuplicateThreshold
	}

	dLat := math.Abs(*a.Latitude - *b.Latitude)
	// Longitude wraps at the antimeridian.
	dLon := math.Abs(math.Remainder(*a.Longitude-*b.Longitude, 360))

	// Decimal degrees are not exact in binary; 20.01-20.00 is slightly over 0.01.
	limit := threshold + degreeEpsilon
	return dLat <= limit && dLon <= limit
}

// IndexByName returns the index of the first location whose name matches
// name case-insensitively, or -1.
func IndexByName(locations []Location, name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return -1
	}
	for i, l := range locations {
		if strings.EqualFold(strings.TrimSpace(l.Name), name) {
			return i
		}
	}
	return -1
}

const earthRadiusKm = 6371.0088

// DistanceKm returns the great-circle distance between a and b. ok is false
// when either location has no coordinates.
func DistanceKm(a, b Location) (km float64, ok bool) {
	if !a.HasCoordinates() || !b.HasCoordinates() {
		return 0, false
	}
	pa := s2.LatLngFromDegrees(*a.Latitude, *a.Longitude)
	pb := s2.LatLngFromDegrees(*b.Latitude, *b.Longitude)
	return pa.Distance(pb).Radians() * earthRadiusKm, true
}
