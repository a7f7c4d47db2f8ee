// Package failure classifies every error surfaced by the location and
// weather components into a closed set of kinds. The UI layer branches on
// Kind only; underlying causes are kept for diagnostics.
package failure

import (
	"errors"
	"fmt"
)

// Kind is one of the six error kinds exposed to callers.
type Kind string

const (
	KindPermissionDenied          Kind = "PERMISSION_DENIED"
	KindDeviceLocationUnavailable Kind = "DEVICE_LOCATION_UNAVAILABLE"
	KindLocationNotFound          Kind = "LOCATION_NOT_FOUND"
	KindGeocoding                 Kind = "GEOCODING_ERROR"
	KindWeatherAPI                Kind = "WEATHER_API_ERROR"
	KindUnknown                   Kind = "UNKNOWN"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrPermissionDenied          = errors.New("location permission denied")
	ErrDeviceLocationUnavailable = errors.New("device location unavailable")
	ErrLocationNotFound          = errors.New("location not found")
	ErrGeocoding                 = errors.New("geocoding failed")
	ErrWeatherAPI                = errors.New("weather api failed")
	ErrUnknown                   = errors.New("unknown failure")
)

var sentinels = map[Kind]error{
	KindPermissionDenied:          ErrPermissionDenied,
	KindDeviceLocationUnavailable: ErrDeviceLocationUnavailable,
	KindLocationNotFound:          ErrLocationNotFound,
	KindGeocoding:                 ErrGeocoding,
	KindWeatherAPI:                ErrWeatherAPI,
	KindUnknown:                   ErrUnknown,
}

// Kinds returns the full taxonomy in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindPermissionDenied,
		KindDeviceLocationUnavailable,
		KindLocationNotFound,
		KindGeocoding,
		KindWeatherAPI,
		KindUnknown,
	}
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "geocoding.ResolveCityName".
	Op string
	// Err is the underlying cause, retained for logs only.
	Err error
}

// New returns a classified error. Unrecognised kinds become KindUnknown.
func New(kind Kind, op string, cause error) *Error {
	if _, ok := sentinels[kind]; !ok {
		kind = KindUnknown
	}
	return &Error{Kind: kind, Op: op, Err: cause}
}

func (e *Error) Error() string {
	msg := sentinels[e.Kind].Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the same kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// Message returns a short description safe to show to end users.
func (e *Error) Message() string {
	return Message(e.Kind)
}

// Classify maps any error to a Kind. nil maps to the empty Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	for _, kind := range Kinds() {
		if errors.Is(err, sentinels[kind]) {
			return kind
		}
	}

	return KindUnknown
}

// Wrap classifies err, keeping an existing classification and otherwise
// assigning fallback. It returns nil for a nil err.
func Wrap(fallback Kind, op string, err error) error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return err
	}

	if kind := Classify(err); kind != KindUnknown {
		return New(kind, op, err)
	}

	return New(fallback, op, err)
}

// Persistent reports whether the kind blocks functionality until resolved
// outside the app. Every other kind is transient and retryable.
func Persistent(kind Kind) bool {
	return kind == KindPermissionDenied
}

// Message returns the user-facing text for a kind.
func Message(kind Kind) string {
	switch kind {
	case KindPermissionDenied:
		return "Location permission was denied. Enable it in system settings to see weather for your current position."
	case KindDeviceLocationUnavailable:
		return "Your location could not be determined. Check that location services are enabled."
	case KindLocationNotFound:
		return "No matching place was found."
	case KindGeocoding:
		return "The place search service is unavailable. Try again shortly."
	case KindWeatherAPI:
		return "Weather data could not be loaded. Try again shortly."
	default:
		return "Something went wrong. Try again shortly."
	}
}
