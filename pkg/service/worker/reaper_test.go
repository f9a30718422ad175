package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/repository/memory"
	"github.com/mnemon-lab/mnemon/pkg/service/worker"
)

// mockLifecycle records cleanup calls and closes the session so the
// next sweep no longer sees it
type mockLifecycle struct {
	mu      sync.Mutex
	repo    *memory.Memory
	cleaned []types.SessionID
}

func (m *mockLifecycle) Cleanup(ctx context.Context, id types.SessionID) error {
	m.mu.Lock()
	m.cleaned = append(m.cleaned, id)
	m.mu.Unlock()
	return m.repo.Sessions().Close(ctx, id)
}

func (m *mockLifecycle) cleanedSessions() []types.SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.SessionID{}, m.cleaned...)
}

func TestSessionReaperClosesIdleSessions(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	_, err := repo.Sessions().CreateOrGet(ctx, "abandoned", "proj-a")
	gt.NoError(t, err).Required()

	// Let the session age past the TTL before the reaper starts
	time.Sleep(30 * time.Millisecond)

	lifecycle := &mockLifecycle{repo: repo}
	reaper := worker.NewSessionReaper(repo, lifecycle, 10*time.Millisecond, 5*time.Millisecond)
	gt.NoError(t, reaper.Start(ctx)).Required()
	defer reaper.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(lifecycle.cleanedSessions()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cleaned := lifecycle.cleanedSessions()
	gt.Array(t, cleaned).Length(1)
	gt.Value(t, cleaned[0]).Equal(types.SessionID("abandoned"))

	sess, err := repo.Sessions().Get(ctx, "abandoned")
	gt.NoError(t, err).Required()
	gt.Value(t, sess.Status).Equal(types.SessionStatusClosed)
}

func TestSessionReaperIgnoresRecentSessions(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	_, err := repo.Sessions().CreateOrGet(ctx, "active", "proj-a")
	gt.NoError(t, err).Required()

	lifecycle := &mockLifecycle{repo: repo}
	reaper := worker.NewSessionReaper(repo, lifecycle, 10*time.Millisecond, time.Hour)
	gt.NoError(t, reaper.Start(ctx)).Required()

	time.Sleep(50 * time.Millisecond)
	reaper.Stop()

	gt.Array(t, lifecycle.cleanedSessions()).Length(0)

	sess, err := repo.Sessions().Get(ctx, "active")
	gt.NoError(t, err).Required()
	gt.Value(t, sess.Status).Equal(types.SessionStatusActive)
}
