package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

type sessionRepository struct {
	db       *sql.DB
	workerID string
}

func (r *sessionRepository) CreateOrGet(ctx context.Context, id types.SessionID, project string) (*model.Session, error) {
	if id == "" {
		return nil, goerr.New("session ID is required")
	}

	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project, status, worker_id, created_at, last_active_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		string(id), project, string(types.SessionStatusActive), r.workerID, now.Unix(), now.Unix(),
	)
	if err != nil {
		return nil, wrapStorage(err, "failed to create session", goerr.V("session_id", id))
	}

	return r.Get(ctx, id)
}

func (r *sessionRepository) Get(ctx context.Context, id types.SessionID) (*model.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, project, status, worker_id, created_at, last_active_at FROM sessions WHERE id = ?`,
		string(id),
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(types.ErrUnknownSession, "session not found", goerr.V("session_id", id))
	}
	if err != nil {
		return nil, wrapStorage(err, "failed to get session", goerr.V("session_id", id))
	}
	return sess, nil
}

func (r *sessionRepository) BeginClose(ctx context.Context, id types.SessionID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE id = ? AND status = ?`,
		string(types.SessionStatusStopping), string(id), string(types.SessionStatusActive),
	)
	if err != nil {
		return false, wrapStorage(err, "failed to begin closing session", goerr.V("session_id", id))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapStorage(err, "failed to inspect session update", goerr.V("session_id", id))
	}
	if affected > 0 {
		return true, nil
	}

	// Either the session does not exist or it already left active state
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (r *sessionRepository) Close(ctx context.Context, id types.SessionID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE id = ?`,
		string(types.SessionStatusClosed), string(id),
	)
	if err != nil {
		return wrapStorage(err, "failed to close session", goerr.V("session_id", id))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStorage(err, "failed to inspect session update", goerr.V("session_id", id))
	}
	if affected == 0 {
		return goerr.Wrap(types.ErrUnknownSession, "session not found", goerr.V("session_id", id))
	}
	return nil
}

func (r *sessionRepository) List(ctx context.Context, project string, limit int) ([]*model.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project, status, worker_id, created_at, last_active_at
		 FROM sessions
		 WHERE (? = '' OR project = ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		project, project, limit,
	)
	if err != nil {
		return nil, wrapStorage(err, "failed to list sessions", goerr.V("project", project))
	}
	defer rows.Close()

	return collectSessions(rows)
}

func (r *sessionRepository) ListIdle(ctx context.Context, before time.Time) ([]*model.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project, status, worker_id, created_at, last_active_at
		 FROM sessions
		 WHERE status = ? AND last_active_at < ?
		 ORDER BY last_active_at ASC`,
		string(types.SessionStatusActive), before.Unix(),
	)
	if err != nil {
		return nil, wrapStorage(err, "failed to list idle sessions")
	}
	defer rows.Close()

	return collectSessions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var sess model.Session
	var id, status string
	var createdAt, lastActiveAt int64

	if err := row.Scan(&id, &sess.Project, &status, &sess.WorkerID, &createdAt, &lastActiveAt); err != nil {
		return nil, err
	}

	sess.ID = types.SessionID(id)
	sess.Status = types.SessionStatus(status).Normalize()
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.LastActiveAt = time.Unix(lastActiveAt, 0)
	return &sess, nil
}

func collectSessions(rows *sql.Rows) ([]*model.Session, error) {
	var sessions []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, wrapStorage(err, "failed to scan session")
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(err, "failed to iterate sessions")
	}
	return sessions, nil
}
