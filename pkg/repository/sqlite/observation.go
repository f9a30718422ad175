package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

type observationRepository struct {
	db *sql.DB
}

const observationColumns = `o.id, o.session_id, o.project, o.type, o.title, o.narrative, o.facts, o.concepts, o.files, o.has_embedding, o.created_at`

func (r *observationRepository) Append(ctx context.Context, sessionID types.SessionID, draft *model.ObservationDraft) (*model.Observation, error) {
	if draft == nil {
		return nil, goerr.New("observation draft is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapStorage(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var status, project string
	err = tx.QueryRowContext(ctx,
		`SELECT status, project FROM sessions WHERE id = ?`, string(sessionID),
	).Scan(&status, &project)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(types.ErrUnknownSession, "session not found", goerr.V("session_id", sessionID))
	}
	if err != nil {
		return nil, wrapStorage(err, "failed to check session", goerr.V("session_id", sessionID))
	}

	obsType := draft.Type.Normalize()
	switch types.SessionStatus(status).Normalize() {
	case types.SessionStatusActive:
		// regular append
	case types.SessionStatusStopping:
		// Only the single closing summary is accepted in this window
		if obsType != types.ObservationTypeSummary {
			return nil, goerr.Wrap(types.ErrUnknownSession, "session no longer accepts observations",
				goerr.V("session_id", sessionID), goerr.V("status", status))
		}
		var summaries int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM observations WHERE session_id = ? AND type = ?`,
			string(sessionID), string(types.ObservationTypeSummary),
		).Scan(&summaries)
		if err != nil {
			return nil, wrapStorage(err, "failed to count session summaries", goerr.V("session_id", sessionID))
		}
		if summaries > 0 {
			return nil, goerr.Wrap(types.ErrUnknownSession, "session summary already recorded",
				goerr.V("session_id", sessionID))
		}
	default:
		return nil, goerr.Wrap(types.ErrUnknownSession, "session is closed", goerr.V("session_id", sessionID))
	}

	facts := draft.Facts
	if facts == nil {
		facts = []model.Fact{}
	}
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode facts")
	}
	conceptsJSON, err := json.Marshal(emptyIfNil(draft.Concepts))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode concepts")
	}
	filesJSON, err := json.Marshal(emptyIfNil(draft.Files))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode files")
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO observations (session_id, project, type, title, narrative, facts, concepts, files, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sessionID), project, string(obsType), draft.Title, draft.Narrative,
		string(factsJSON), string(conceptsJSON), string(filesJSON), now.Unix(),
	)
	if err != nil {
		return nil, wrapStorage(err, "failed to insert observation", goerr.V("session_id", sessionID))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, wrapStorage(err, "failed to read observation ID")
	}

	// Index entry lives in the same transaction as the row, so a search
	// immediately after append always finds it
	_, err = tx.ExecContext(ctx,
		`INSERT INTO observations_fts (rowid, title, narrative, facts, concepts)
		 VALUES (?, ?, ?, ?, ?)`,
		id, draft.Title, draft.Narrative, factsIndexText(facts), strings.Join(draft.Concepts, " "),
	)
	if err != nil {
		return nil, wrapStorage(err, "failed to index observation", goerr.V("observation_id", id))
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = ? WHERE id = ?`, now.Unix(), string(sessionID),
	)
	if err != nil {
		return nil, wrapStorage(err, "failed to touch session", goerr.V("session_id", sessionID))
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapStorage(err, "failed to commit observation", goerr.V("session_id", sessionID))
	}

	return &model.Observation{
		ID:        types.ObservationID(id),
		SessionID: sessionID,
		Project:   project,
		Type:      obsType,
		Title:     draft.Title,
		Narrative: draft.Narrative,
		Facts:     facts,
		Concepts:  emptyIfNil(draft.Concepts),
		Files:     emptyIfNil(draft.Files),
		CreatedAt: time.Unix(now.Unix(), 0),
	}, nil
}

func (r *observationRepository) SearchLexical(ctx context.Context, query string, filters interfaces.SearchFilters) ([]*model.SearchResult, error) {
	match := buildMatchQuery(query)
	if match == "" {
		return nil, goerr.Wrap(types.ErrInvalidQuery, "query has no searchable terms", goerr.V("query", query))
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 10
	}

	// bm25 weights follow field importance: title, narrative, facts, concepts
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+observationColumns+`, bm25(observations_fts, 3.0, 1.0, 1.0, 2.0) AS rank
		 FROM observations_fts
		 JOIN observations o ON o.id = observations_fts.rowid
		 WHERE observations_fts MATCH ?
		   AND (? = '' OR o.project = ?)
		   AND (? = '' OR o.type = ?)
		 ORDER BY rank ASC, o.created_at DESC, o.id DESC
		 LIMIT ?`,
		match,
		filters.Project, filters.Project,
		string(filters.Type), string(filters.Type),
		limit,
	)
	if err != nil {
		return nil, wrapStorage(err, "failed to search observations", goerr.V("query", query))
	}
	defer rows.Close()

	var results []*model.SearchResult
	for rows.Next() {
		var rank float64
		obs, err := scanObservation(rows, &rank)
		if err != nil {
			return nil, wrapStorage(err, "failed to scan search result")
		}
		// bm25 is smaller-is-better; negate so callers see higher-is-better
		results = append(results, &model.SearchResult{Observation: obs, Score: -rank})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(err, "failed to iterate search results")
	}
	return results, nil
}

func (r *observationRepository) GetByIDs(ctx context.Context, ids []types.ObservationID, limit int) ([]*model.Observation, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, int64(id))
	}

	query := `SELECT ` + observationColumns + ` FROM observations o WHERE o.id IN (` +
		strings.Join(placeholders, ",") + `) ORDER BY o.created_at DESC, o.id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage(err, "failed to get observations by IDs")
	}
	defer rows.Close()

	return collectObservations(rows)
}

func (r *observationRepository) ListBySession(ctx context.Context, sessionID types.SessionID) ([]*model.Observation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM observations o WHERE o.session_id = ? ORDER BY o.id ASC`,
		string(sessionID),
	)
	if err != nil {
		return nil, wrapStorage(err, "failed to list session observations", goerr.V("session_id", sessionID))
	}
	defer rows.Close()

	return collectObservations(rows)
}

func (r *observationRepository) MarkEmbedded(ctx context.Context, id types.ObservationID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE observations SET has_embedding = 1 WHERE id = ?`, int64(id),
	)
	if err != nil {
		return wrapStorage(err, "failed to mark observation embedded", goerr.V("observation_id", id))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStorage(err, "failed to inspect observation update", goerr.V("observation_id", id))
	}
	if affected == 0 {
		return goerr.New("observation not found", goerr.V("observation_id", id))
	}
	return nil
}

func (r *observationRepository) Stats(ctx context.Context) (*model.Stats, error) {
	stats := &model.Stats{ByProject: make(map[string]int)}

	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&stats.TotalSessions)
	if err != nil {
		return nil, wrapStorage(err, "failed to count sessions")
	}
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations`).Scan(&stats.TotalObservations)
	if err != nil {
		return nil, wrapStorage(err, "failed to count observations")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT project, COUNT(*) FROM observations GROUP BY project`)
	if err != nil {
		return nil, wrapStorage(err, "failed to count observations by project")
	}
	defer rows.Close()

	for rows.Next() {
		var project string
		var count int
		if err := rows.Scan(&project, &count); err != nil {
			return nil, wrapStorage(err, "failed to scan project count")
		}
		stats.ByProject[project] = count
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(err, "failed to iterate project counts")
	}
	return stats, nil
}

func scanObservation(rows *sql.Rows, rank *float64) (*model.Observation, error) {
	var obs model.Observation
	var sessionID, obsType, factsJSON, conceptsJSON, filesJSON string
	var id, createdAt int64
	var hasEmbedding int

	dest := []any{&id, &sessionID, &obs.Project, &obsType, &obs.Title, &obs.Narrative,
		&factsJSON, &conceptsJSON, &filesJSON, &hasEmbedding, &createdAt}
	if rank != nil {
		dest = append(dest, rank)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	obs.ID = types.ObservationID(id)
	obs.SessionID = types.SessionID(sessionID)
	obs.Type = types.ObservationType(obsType)
	obs.HasEmbedding = hasEmbedding != 0
	obs.CreatedAt = time.Unix(createdAt, 0)

	if err := json.Unmarshal([]byte(factsJSON), &obs.Facts); err != nil {
		return nil, goerr.Wrap(err, "failed to decode facts", goerr.V("observation_id", id))
	}
	if err := json.Unmarshal([]byte(conceptsJSON), &obs.Concepts); err != nil {
		return nil, goerr.Wrap(err, "failed to decode concepts", goerr.V("observation_id", id))
	}
	if err := json.Unmarshal([]byte(filesJSON), &obs.Files); err != nil {
		return nil, goerr.Wrap(err, "failed to decode files", goerr.V("observation_id", id))
	}
	return &obs, nil
}

func collectObservations(rows *sql.Rows) ([]*model.Observation, error) {
	var observations []*model.Observation
	for rows.Next() {
		obs, err := scanObservation(rows, nil)
		if err != nil {
			return nil, wrapStorage(err, "failed to scan observation")
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(err, "failed to iterate observations")
	}
	return observations, nil
}

// buildMatchQuery turns free text into a safe FTS5 match expression.
// Each token is double-quoted so user input cannot inject FTS syntax.
func buildMatchQuery(query string) string {
	tokens := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return ""
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"`
	}
	return strings.Join(quoted, " OR ")
}

func factsIndexText(facts []model.Fact) string {
	var b strings.Builder
	for _, f := range facts {
		b.WriteString(f.Name)
		b.WriteByte(' ')
		b.WriteString(f.Value)
		b.WriteByte('\n')
	}
	return b.String()
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
