// Package sqlite provides the durable Repository backend. Observations
// are indexed into an FTS5 table in the same transaction as the append,
// so lexical search has no write-then-read staleness. The FTS index is
// derived data; the observations table is the source of truth.
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	project        TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'active',
	worker_id      TEXT NOT NULL DEFAULT '',
	created_at     INTEGER NOT NULL,
	last_active_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS observations (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL REFERENCES sessions(id),
	project       TEXT NOT NULL,
	type          TEXT NOT NULL,
	title         TEXT NOT NULL,
	narrative     TEXT NOT NULL,
	facts         TEXT NOT NULL DEFAULT '[]',
	concepts      TEXT NOT NULL DEFAULT '[]',
	files         TEXT NOT NULL DEFAULT '[]',
	has_embedding INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_observations_session ON observations(session_id);
CREATE INDEX IF NOT EXISTS idx_observations_created ON observations(created_at DESC);

CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
	title, narrative, facts, concepts,
	content=''
);
`

// Client implements interfaces.Repository backed by a local SQLite file
type Client struct {
	db           *sql.DB
	sessions     *sessionRepository
	observations *observationRepository
}

var _ interfaces.Repository = &Client{}

// New opens (or creates) the database at path and applies the schema.
// Pass ":memory:" for an ephemeral database in tests.
func New(ctx context.Context, path string) (*Client, error) {
	if path == "" {
		return nil, goerr.New("database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}

	// The storage engine's own transaction guarantees serialize all
	// writers; one connection avoids SQLITE_BUSY juggling entirely.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to apply pragma", goerr.V("pragma", pragma))
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to apply schema", goerr.V("path", path))
	}

	c := &Client{db: db}
	c.sessions = &sessionRepository{db: db, workerID: types.NewWorkerID()}
	c.observations = &observationRepository{db: db}
	return c, nil
}

func (c *Client) Sessions() interfaces.SessionRepository {
	return c.sessions
}

func (c *Client) Observations() interfaces.ObservationRepository {
	return c.observations
}

func (c *Client) Close() error {
	if err := c.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close database")
	}
	return nil
}

// wrapStorage marks a driver-level failure as StorageUnavailable while
// keeping the original error in the chain. Fatal for the request, never
// for the process.
func wrapStorage(err error, msg string, options ...goerr.Option) error {
	return goerr.Wrap(errors.Join(types.ErrStorageUnavailable, err), msg, options...)
}
