package worker

import (
	"context"
	"time"

	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/utils/logging"
)

// Lifecycle is the narrow slice of the lifecycle use case the reaper needs
type Lifecycle interface {
	Cleanup(ctx context.Context, id types.SessionID) error
}

// SessionReaper closes sessions abandoned without a graceful end signal.
// Hook-driven capture sources die with their editor; a session whose
// last activity is older than the TTL will never receive an end call.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
type SessionReaper struct {
	repo      interfaces.Repository
	lifecycle Lifecycle
	interval  time.Duration
	ttl       time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewSessionReaper creates a reaper that sweeps every interval and
// closes sessions idle longer than ttl
func NewSessionReaper(repo interfaces.Repository, lifecycle Lifecycle, interval, ttl time.Duration) *SessionReaper {
	return &SessionReaper{
		repo:      repo,
		lifecycle: lifecycle,
		interval:  interval,
		ttl:       ttl,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background sweep loop. Does not block server startup.
func (w *SessionReaper) Start(ctx context.Context) error {
	logging.Default().Info("Session reaper starting",
		"interval", w.interval.String(), "ttl", w.ttl.String())

	go w.run(ctx)

	return nil
}

// Stop signals the reaper to stop and waits for completion
func (w *SessionReaper) Stop() {
	logging.Default().Info("Session reaper stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Session reaper stopped")
}

func (w *SessionReaper) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				// Log error and continue; the next tick tries again
				logging.Default().Error("Session sweep failed",
					"error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("Session reaper context cancelled")
			return
		}
	}
}

// sweep performs a single cleanup cycle
func (w *SessionReaper) sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.ttl)
	idle, err := w.repo.Sessions().ListIdle(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(idle) == 0 {
		return nil
	}

	logging.Default().Info("Reaping abandoned sessions", "count", len(idle))
	for _, sess := range idle {
		if err := w.lifecycle.Cleanup(ctx, sess.ID); err != nil {
			// Cleanup is idempotent; failures here are logged and the
			// session stays eligible for the next sweep
			logging.Default().Error("Failed to clean up session",
				"session_id", sess.ID, "error", err.Error())
		}
	}
	return nil
}
