package domain

import (
	"fmt"
	"time"
)

// AccuracyTier names a geolocation precision/timeout trade-off.
type AccuracyTier string

const (
	TierHigh AccuracyTier = "high"
	TierLow  AccuracyTier = "low"
)

// LocationStatus is the discriminator of LocationState.
type LocationStatus string

const (
	LocationUnresolved LocationStatus = "unresolved"
	LocationResolving  LocationStatus = "resolving"
	LocationResolved   LocationStatus = "resolved"
	LocationFailed     LocationStatus = "failed"
)

// GeolocationErrorKind classifies a geolocation failure.
type GeolocationErrorKind string

const (
	PermissionDenied    GeolocationErrorKind = "permission_denied"
	PositionUnavailable GeolocationErrorKind = "position_unavailable"
	Timeout             GeolocationErrorKind = "timeout"
	Unsupported         GeolocationErrorKind = "unsupported"
)

// ParseGeolocationErrorKind maps a reported error code onto a kind.
// Unknown codes are treated as PositionUnavailable.
func ParseGeolocationErrorKind(code string) GeolocationErrorKind {
	switch GeolocationErrorKind(code) {
	case PermissionDenied, PositionUnavailable, Timeout, Unsupported:
		return GeolocationErrorKind(code)
	}
	return PositionUnavailable
}

// Message returns the user-facing text for the failure kind.
func (k GeolocationErrorKind) Message() string {
	switch k {
	case PermissionDenied:
		return "Location access denied. Please enable location services."
	case PositionUnavailable:
		return "Location information unavailable."
	case Timeout:
		return "Location request timed out."
	case Unsupported:
		return "Geolocation is not supported by this device."
	}
	return "An unknown error occurred while getting location."
}

// GeolocationError is returned by geolocators.
type GeolocationError struct {
	Kind GeolocationErrorKind
	Err  error
}

func (e *GeolocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geolocation %s: %v", e.Kind, e.Err)
	}
	return "geolocation " + string(e.Kind)
}

func (e *GeolocationError) Unwrap() error { return e.Err }

// Position is a single fix from a geolocator.
type Position struct {
	Location  GeoPoint  `json:"location"`
	AccuracyM float64   `json:"accuracy_m,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationState is owned by the location acquirer and read by everyone else.
// Tier is set while resolving and once resolved; Location and Timestamp only
// once resolved; Error only when failed.
type LocationState struct {
	Status    LocationStatus       `json:"status"`
	Tier      AccuracyTier         `json:"tier,omitempty"`
	Location  *GeoPoint            `json:"location,omitempty"`
	Timestamp time.Time            `json:"timestamp,omitempty"`
	Error     GeolocationErrorKind `json:"error,omitempty"`
}

// Resolved reports whether the state carries a coordinate.
func (s LocationState) Resolved() bool {
	return s.Status == LocationResolved && s.Location != nil
}

// LocationNotice is a non-fatal, dismissable failure banner.
type LocationNotice struct {
	Kind     GeolocationErrorKind `json:"kind"`
	Message  string               `json:"message"`
	CanRetry bool                 `json:"can_retry"`
}
