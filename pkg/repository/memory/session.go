package memory

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

type sessionRepository struct {
	store    *store
	workerID string
}

func (r *sessionRepository) CreateOrGet(ctx context.Context, id types.SessionID, project string) (*model.Session, error) {
	if id == "" {
		return nil, goerr.New("session ID is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing, ok := r.store.sessions[id]; ok {
		copied := *existing
		return &copied, nil
	}

	now := time.Now()
	sess := &model.Session{
		ID:           id,
		Project:      project,
		Status:       types.SessionStatusActive,
		WorkerID:     r.workerID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	r.store.sessions[id] = sess

	copied := *sess
	return &copied, nil
}

func (r *sessionRepository) Get(ctx context.Context, id types.SessionID) (*model.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	sess, ok := r.store.sessions[id]
	if !ok {
		return nil, goerr.Wrap(types.ErrUnknownSession, "session not found", goerr.V("session_id", id))
	}

	copied := *sess
	return &copied, nil
}

func (r *sessionRepository) BeginClose(ctx context.Context, id types.SessionID) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sess, ok := r.store.sessions[id]
	if !ok {
		return false, goerr.Wrap(types.ErrUnknownSession, "session not found", goerr.V("session_id", id))
	}
	if sess.Status.Normalize() != types.SessionStatusActive {
		return false, nil
	}

	sess.Status = types.SessionStatusStopping
	return true, nil
}

func (r *sessionRepository) Close(ctx context.Context, id types.SessionID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sess, ok := r.store.sessions[id]
	if !ok {
		return goerr.Wrap(types.ErrUnknownSession, "session not found", goerr.V("session_id", id))
	}

	// Idempotent: already closed is a no-op
	sess.Status = types.SessionStatusClosed
	return nil
}

func (r *sessionRepository) List(ctx context.Context, project string, limit int) ([]*model.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var sessions []*model.Session
	for _, sess := range r.store.sessions {
		if project != "" && sess.Project != project {
			continue
		}
		copied := *sess
		sessions = append(sessions, &copied)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})

	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (r *sessionRepository) ListIdle(ctx context.Context, before time.Time) ([]*model.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var sessions []*model.Session
	for _, sess := range r.store.sessions {
		if sess.Status.Normalize() != types.SessionStatusActive {
			continue
		}
		if sess.LastActiveAt.Before(before) {
			copied := *sess
			sessions = append(sessions, &copied)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActiveAt.Before(sessions[j].LastActiveAt)
	})
	return sessions, nil
}
