package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/repository/memory"
	"github.com/mnemon-lab/mnemon/pkg/repository/sqlite"
)

func newMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	return memory.New()
}

func newSQLiteRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	repo, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "mnemon.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func runSessionRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("CreateOrGet creates active session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		sess, err := repo.Sessions().CreateOrGet(ctx, "session-1", "proj-a")
		gt.NoError(t, err).Required()

		gt.Value(t, sess.ID).Equal(types.SessionID("session-1"))
		gt.Value(t, sess.Project).Equal("proj-a")
		gt.Value(t, sess.Status).Equal(types.SessionStatusActive)
		gt.Bool(t, sess.WorkerID == "").False()
		gt.Bool(t, sess.CreatedAt.IsZero()).False()
		gt.Bool(t, sess.LastActiveAt.IsZero()).False()

		// The owning process identity survives a round-trip
		got, err := repo.Sessions().Get(ctx, "session-1")
		gt.NoError(t, err).Required()
		gt.Value(t, got.WorkerID).Equal(sess.WorkerID)
	})

	t.Run("CreateOrGet is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first, err := repo.Sessions().CreateOrGet(ctx, "session-1", "proj-a")
		gt.NoError(t, err).Required()

		// A second call with a different project must not alter the session
		second, err := repo.Sessions().CreateOrGet(ctx, "session-1", "proj-b")
		gt.NoError(t, err).Required()

		gt.Value(t, second.ID).Equal(first.ID)
		gt.Value(t, second.Project).Equal("proj-a")
		gt.Value(t, second.Status).Equal(types.SessionStatusActive)
	})

	t.Run("CreateOrGet rejects empty ID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Sessions().CreateOrGet(ctx, "", "proj-a")
		gt.Error(t, err)
	})

	t.Run("Get returns ErrUnknownSession for missing session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Sessions().Get(ctx, "no-such-session")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrUnknownSession)).True()
	})

	t.Run("BeginClose transitions active to stopping once", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Sessions().CreateOrGet(ctx, "session-1", "proj-a")
		gt.NoError(t, err).Required()

		began, err := repo.Sessions().BeginClose(ctx, "session-1")
		gt.NoError(t, err).Required()
		gt.Bool(t, began).True()

		sess, err := repo.Sessions().Get(ctx, "session-1")
		gt.NoError(t, err).Required()
		gt.Value(t, sess.Status).Equal(types.SessionStatusStopping)

		// The racing loser gets false, not an error
		began, err = repo.Sessions().BeginClose(ctx, "session-1")
		gt.NoError(t, err).Required()
		gt.Bool(t, began).False()
	})

	t.Run("BeginClose returns ErrUnknownSession for missing session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Sessions().BeginClose(ctx, "no-such-session")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrUnknownSession)).True()
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Sessions().CreateOrGet(ctx, "session-1", "proj-a")
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Sessions().Close(ctx, "session-1")).Required()
		gt.NoError(t, repo.Sessions().Close(ctx, "session-1")).Required()

		sess, err := repo.Sessions().Get(ctx, "session-1")
		gt.NoError(t, err).Required()
		gt.Value(t, sess.Status).Equal(types.SessionStatusClosed)
	})

	t.Run("Close returns ErrUnknownSession for missing session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		err := repo.Sessions().Close(ctx, "no-such-session")
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, types.ErrUnknownSession)).True()
	})

	t.Run("List returns newest first and filters by project", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for _, s := range []struct {
			id      types.SessionID
			project string
		}{
			{"session-1", "proj-a"},
			{"session-2", "proj-b"},
			{"session-3", "proj-a"},
		} {
			_, err := repo.Sessions().CreateOrGet(ctx, s.id, s.project)
			gt.NoError(t, err).Required()
		}

		all, err := repo.Sessions().List(ctx, "", 0)
		gt.NoError(t, err).Required()
		gt.Array(t, all).Length(3)
		gt.Value(t, all[0].ID).Equal(types.SessionID("session-3"))
		gt.Value(t, all[2].ID).Equal(types.SessionID("session-1"))

		filtered, err := repo.Sessions().List(ctx, "proj-a", 0)
		gt.NoError(t, err).Required()
		gt.Array(t, filtered).Length(2)
		for _, sess := range filtered {
			gt.Value(t, sess.Project).Equal("proj-a")
		}

		limited, err := repo.Sessions().List(ctx, "", 2)
		gt.NoError(t, err).Required()
		gt.Array(t, limited).Length(2)
	})

	t.Run("ListIdle returns only active sessions past the cutoff", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Sessions().CreateOrGet(ctx, "session-1", "proj-a")
		gt.NoError(t, err).Required()
		_, err = repo.Sessions().CreateOrGet(ctx, "session-2", "proj-a")
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Sessions().Close(ctx, "session-2")).Required()

		// Cutoff in the future: every active session counts as idle
		idle, err := repo.Sessions().ListIdle(ctx, time.Now().Add(time.Hour))
		gt.NoError(t, err).Required()
		gt.Array(t, idle).Length(1)
		gt.Value(t, idle[0].ID).Equal(types.SessionID("session-1"))

		// Cutoff in the past: nothing is idle yet
		idle, err = repo.Sessions().ListIdle(ctx, time.Now().Add(-time.Hour))
		gt.NoError(t, err).Required()
		gt.Array(t, idle).Length(0)
	})
}

func TestMemorySessionRepository(t *testing.T) {
	runSessionRepositoryTest(t, newMemoryRepository)
}

func TestSQLiteSessionRepository(t *testing.T) {
	runSessionRepositoryTest(t, newSQLiteRepository)
}
