package types

import "fmt"

// ObservationType classifies what kind of agent activity an observation records
type ObservationType string

const (
	ObservationTypeFileEdit   ObservationType = "file-edit"
	ObservationTypeCommandRun ObservationType = "command-run"
	ObservationTypeDecision   ObservationType = "decision"
	ObservationTypeDiscovery  ObservationType = "discovery"

	// ObservationTypeSummary marks the session-closing summary observation.
	// It is produced at most once per session.
	ObservationTypeSummary ObservationType = "summary"
)

// AllObservationTypes returns all valid observation types
func AllObservationTypes() []ObservationType {
	return []ObservationType{
		ObservationTypeFileEdit,
		ObservationTypeCommandRun,
		ObservationTypeDecision,
		ObservationTypeDiscovery,
		ObservationTypeSummary,
	}
}

// IsValid checks if the observation type is valid
func (t ObservationType) IsValid() bool {
	switch t {
	case ObservationTypeFileEdit,
		ObservationTypeCommandRun,
		ObservationTypeDecision,
		ObservationTypeDiscovery,
		ObservationTypeSummary:
		return true
	default:
		return false
	}
}

// Normalize returns the type, treating empty or unknown values as discovery.
// Summarizer output is untrusted and may invent categories.
func (t ObservationType) Normalize() ObservationType {
	if t.IsValid() {
		return t
	}
	return ObservationTypeDiscovery
}

// String returns the string representation of the observation type
func (t ObservationType) String() string {
	return string(t)
}

// ParseObservationType parses a string into an ObservationType
func ParseObservationType(s string) (ObservationType, error) {
	t := ObservationType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid observation type: %s", s)
	}
	return t, nil
}
