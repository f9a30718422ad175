package model

import (
	"time"

	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

// Session represents one continuous unit of agent work. Sessions are
// append-only: they are never physically deleted, only marked closed.
type Session struct {
	ID        types.SessionID     `json:"id"`
	Project   string              `json:"project"`
	Status    types.SessionStatus `json:"status"`
	WorkerID  string              `json:"worker_id,omitempty"`
	CreatedAt time.Time           `json:"created_at"`

	// LastActiveAt tracks the most recent append, used by the reaper to
	// detect sessions abandoned without a graceful end signal
	LastActiveAt time.Time `json:"last_active_at"`
}

// Active reports whether the session still accepts regular observations
func (s *Session) Active() bool {
	return s.Status.Normalize() == types.SessionStatusActive
}

// Closed reports whether the session has fully closed
func (s *Session) Closed() bool {
	return s.Status == types.SessionStatusClosed
}
