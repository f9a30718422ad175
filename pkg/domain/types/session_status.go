package types

import "fmt"

// SessionStatus represents the lifecycle state of a session
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"

	// SessionStatusStopping is the window between the end signal and the
	// final close. The session-closing summary observation is only
	// accepted while a session is in this state.
	SessionStatusStopping SessionStatus = "stopping"

	SessionStatusClosed SessionStatus = "closed"
)

// AllSessionStatuses returns all valid session statuses
func AllSessionStatuses() []SessionStatus {
	return []SessionStatus{
		SessionStatusActive,
		SessionStatusStopping,
		SessionStatusClosed,
	}
}

// IsValid checks if the session status is valid
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusActive, SessionStatusStopping, SessionStatusClosed:
		return true
	default:
		return false
	}
}

// Normalize returns the status, treating empty as active
func (s SessionStatus) Normalize() SessionStatus {
	if s == "" {
		return SessionStatusActive
	}
	return s
}

// String returns the string representation of the session status
func (s SessionStatus) String() string {
	return string(s)
}

// ParseSessionStatus parses a string into a SessionStatus
func ParseSessionStatus(s string) (SessionStatus, error) {
	status := SessionStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid session status: %s", s)
	}
	return status, nil
}
