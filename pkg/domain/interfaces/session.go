package interfaces

import (
	"context"
	"time"

	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

// SessionRepository defines the interface for session persistence
type SessionRepository interface {
	// CreateOrGet creates a session or returns the existing one unchanged.
	// Idempotent.
	CreateOrGet(ctx context.Context, id types.SessionID, project string) (*model.Session, error)

	// Get retrieves a session by ID. Returns ErrUnknownSession if absent.
	Get(ctx context.Context, id types.SessionID) (*model.Session, error)

	// BeginClose transitions a session from active to stopping. Returns
	// false without error when the session already left the active state,
	// so racing end signals settle on a single winner.
	BeginClose(ctx context.Context, id types.SessionID) (bool, error)

	// Close marks the session closed. Idempotent: closing an already
	// closed session is a no-op because cleanup can race with normal
	// end-of-session signaling.
	Close(ctx context.Context, id types.SessionID) error

	// List returns sessions ordered by creation time descending,
	// optionally filtered by project
	List(ctx context.Context, project string, limit int) ([]*model.Session, error)

	// ListIdle returns sessions still active whose last activity is
	// older than the given cutoff. Used by the reaper.
	ListIdle(ctx context.Context, before time.Time) ([]*model.Session, error)
}
