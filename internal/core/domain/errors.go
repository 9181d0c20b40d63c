package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSuperseded is returned for a discovery whose response arrived after a
	// newer request was issued.
	ErrSuperseded = errors.New("discovery superseded by a newer request")

	// ErrLocationUnavailable means the action needs a resolved location.
	ErrLocationUnavailable = errors.New("location not available")

	// ErrUnknownService means the id is not in the currently displayed set.
	ErrUnknownService = errors.New("service not in current results")

	// ErrRenderingInit means the rendering surface could not be created.
	ErrRenderingInit = errors.New("map failed to load, please reload the page")

	// ErrSessionNotFound is returned for unknown or expired sessions.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when a closed session receives a command.
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidTransition is returned for actions the acquirer state forbids.
	ErrInvalidTransition = errors.New("invalid location state transition")

	// ErrInvalidInput marks caller mistakes such as out-of-range coordinates.
	ErrInvalidInput = errors.New("invalid input")
)

// DiscoveryError wraps a failed geodata query.
type DiscoveryError struct {
	Source string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery via %s: %v", e.Source, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
