package domain

import "time"

// Session event types.
const (
	EventLocationChanged  = "location.changed"
	EventDiscoveryApplied = "discovery.applied"
	EventViewChanged      = "view.changed"
	EventRender           = "render"
	EventSessionClosed    = "session.closed"
)

// SessionEvent is published whenever a session's observable state changes.
type SessionEvent struct {
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"`
	Time      time.Time `json:"time"`
	Payload   any       `json:"payload,omitempty"`
}

// PositionReport is a fix or failure reported by a device for a session.
type PositionReport struct {
	SessionID string               `json:"session_id"`
	Position  *Position            `json:"position,omitempty"`
	Error     GeolocationErrorKind `json:"error,omitempty"`
}
