package models

import (
	"github.com/weatherdeck/weatherdeck/internal/geolocation"
	"github.com/weatherdeck/weatherdeck/internal/location"
)

// DeviceReport is what a client knows about its own position. Permission
// is evaluated before Position, matching how a device prompts the user.
type DeviceReport struct {
	PermissionGranted bool                     `json:"permissionGranted"`
	Position          *geolocation.Coordinates `json:"position,omitempty"`
}

// Device converts the report into a geolocation.Device.
func (d *DeviceReport) Device() geolocation.Device {
	if d == nil {
		return nil
	}
	return geolocation.StaticDevice{Granted: d.PermissionGranted, Position: d.Position}
}

// ResolveLocationRequest is the body of POST /v1/location:resolve.
type ResolveLocationRequest struct {
	Device *DeviceReport `json:"device"`
}

// GeocodeRequest is the body of POST /v1/geocode.
type GeocodeRequest struct {
	Query string `json:"query"`
}

// WeatherRequest is the body of POST /v1/weather.
type WeatherRequest struct {
	Location location.Location `json:"location"`
	Refresh  bool              `json:"refresh"`
}

// LoadLocationsRequest is the body of POST /v1/locations:load.
type LoadLocationsRequest struct {
	Device   *DeviceReport      `json:"device,omitempty"`
	Selected *location.Location `json:"selected,omitempty"`
	Refresh  bool               `json:"refresh"`
}

// AddCityRequest is the body of POST /v1/cities.
type AddCityRequest struct {
	Name string `json:"name"`
}

// SuggestionsResponse wraps type-ahead results.
type SuggestionsResponse struct {
	Query       string              `json:"query"`
	Suggestions []location.Location `json:"suggestions"`
}

// CacheStatsResponse describes the weather cache.
type CacheStatsResponse struct {
	Entries  int    `json:"entries"`
	TTL      string `json:"ttl"`
	Provider string `json:"provider"`
}
