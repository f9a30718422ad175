package types

import (
	"os"
	"strconv"

	"github.com/google/uuid"
)

// SessionID identifies one continuous unit of agent work.
// Capture sources usually supply their own IDs; NewSessionID exists for
// callers that do not.
type SessionID string

// NewSessionID generates a new UUIDv7 SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.Must(uuid.NewV7()).String())
}

// String returns the string representation of the session ID
func (id SessionID) String() string {
	return string(id)
}

// NewWorkerID identifies the serving process that created a session.
// Hostname plus PID is sufficient under the single-instance deployment
// model; it exists to attribute sessions when logs from several runs
// land in one store.
func NewWorkerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}

// ObservationID is a store-assigned monotonic identifier for an observation.
// Monotonicity keeps recency ordering stable without comparing timestamps
// of equal resolution.
type ObservationID int64
