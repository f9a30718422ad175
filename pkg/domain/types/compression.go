package types

import "fmt"

// CompressionMode selects how a compression job is executed
type CompressionMode string

const (
	// CompressionModeDeferred schedules compression in the background
	// and returns to the caller immediately
	CompressionModeDeferred CompressionMode = "deferred"

	// CompressionModeSynchronous blocks the caller until compression
	// completes or its bounded timeout elapses
	CompressionModeSynchronous CompressionMode = "synchronous"
)

// IsValid checks if the compression mode is valid
func (m CompressionMode) IsValid() bool {
	switch m {
	case CompressionModeDeferred, CompressionModeSynchronous:
		return true
	default:
		return false
	}
}

// Normalize returns the mode, treating empty as deferred
func (m CompressionMode) Normalize() CompressionMode {
	if m == "" {
		return CompressionModeDeferred
	}
	return m
}

// String returns the string representation of the compression mode
func (m CompressionMode) String() string {
	return string(m)
}

// ParseCompressionMode parses a string into a CompressionMode
func ParseCompressionMode(s string) (CompressionMode, error) {
	m := CompressionMode(s).Normalize()
	if !m.IsValid() {
		return "", fmt.Errorf("invalid compression mode: %s", s)
	}
	return m, nil
}

// JobState represents the state of one compression job.
// A job never re-enters running after timed-out; retry is a fresh job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateTimedOut  JobState = "timed-out"
	JobStateFailed    JobState = "failed"
)

// String returns the string representation of the job state
func (s JobState) String() string {
	return string(s)
}

// Terminal reports whether the job state is final
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateTimedOut, JobStateFailed:
		return true
	default:
		return false
	}
}
