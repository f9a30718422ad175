package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/utils/logging"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// SearchUseCase is the hybrid search engine: semantic candidates first,
// recency-filtered and hydrated from the record store, with lexical
// fallback. Both the HTTP surface and the one-shot CLI consume this one
// engine, so ranking and parameter handling live only here.
type SearchUseCase struct {
	repo   interfaces.Repository
	vector interfaces.VectorIndex
	config Config

	now func() time.Time
}

func newSearchUseCase(repo interfaces.Repository, vector interfaces.VectorIndex, config Config) *SearchUseCase {
	return &SearchUseCase{
		repo:   repo,
		vector: vector,
		config: config,
		now:    time.Now,
	}
}

// Query is one search request
type Query struct {
	Text    string
	Project string
	Type    types.ObservationType
	Limit   int
	Format  types.SearchFormat
}

func (q Query) normalized() (Query, error) {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return q, goerr.Wrap(types.ErrInvalidQuery, "search text is required")
	}
	if q.Limit <= 0 {
		q.Limit = defaultSearchLimit
	}
	if q.Limit > maxSearchLimit {
		q.Limit = maxSearchLimit
	}
	q.Format = q.Format.Normalize()
	if !q.Format.IsValid() {
		return q, goerr.Wrap(types.ErrInvalidQuery, "invalid search format", goerr.V("format", q.Format))
	}
	return q, nil
}

// Search returns the best available ranked observations for the query.
// Semantic index failures are absorbed here and never surface to the
// caller; the worst case for a healthy record store is lexical results.
func (u *SearchUseCase) Search(ctx context.Context, query Query) (*model.SearchResponse, error) {
	q, err := query.normalized()
	if err != nil {
		return nil, err
	}

	if results, ok := u.searchSemantic(ctx, q); ok {
		return buildResponse(q.Format, types.MatchKindSemantic, results), nil
	}

	results, err := u.repo.Observations().SearchLexical(ctx, q.Text, interfaces.SearchFilters{
		Project: q.Project,
		Type:    q.Type,
		Limit:   q.Limit,
	})
	if err != nil {
		return nil, err
	}
	return buildResponse(q.Format, types.MatchKindLexical, results), nil
}

// searchSemantic runs the semantic path. The second return value is
// false whenever lexical fallback should take over: no vector index,
// backend unavailable, or zero candidates surviving the recency window.
func (u *SearchUseCase) searchSemantic(ctx context.Context, q Query) ([]*model.SearchResult, bool) {
	if u.vector == nil {
		return nil, false
	}

	// A bounded round-trip: a slow semantic backend must never block
	// the lexical fallback path
	vecCtx, cancel := context.WithTimeout(ctx, u.config.VectorQueryTimeout)
	defer cancel()

	hits, err := u.vector.Query(vecCtx, q.Project, q.Text, u.config.CandidatePool)
	if err != nil {
		logging.From(ctx).Warn("semantic search degraded to lexical",
			"error", err.Error(), "query", q.Text)
		return nil, false
	}
	if len(hits) == 0 {
		return nil, false
	}

	// Staleness correlates with irrelevance here: semantic matches
	// older than the window are dropped even when they are the only hits
	cutoff := u.now().Add(-u.config.RecencyWindow)
	scores := make(map[types.ObservationID]float64, len(hits))
	ids := make([]types.ObservationID, 0, len(hits))
	for _, hit := range hits {
		if hit.CreatedAt.Before(cutoff) {
			continue
		}
		if _, ok := scores[hit.ID]; ok {
			continue
		}
		scores[hit.ID] = hit.Score
		ids = append(ids, hit.ID)
	}
	if len(ids) == 0 {
		return nil, false
	}

	observations, err := u.repo.Observations().GetByIDs(ctx, ids, q.Limit)
	if err != nil {
		logging.From(ctx).Warn("semantic hydration failed, degrading to lexical",
			"error", err.Error())
		return nil, false
	}

	var results []*model.SearchResult
	for _, obs := range observations {
		if q.Project != "" && obs.Project != q.Project {
			continue
		}
		if q.Type != "" && obs.Type != q.Type {
			continue
		}
		if obs.CreatedAt.Before(cutoff) {
			continue
		}
		results = append(results, &model.SearchResult{
			Observation: obs,
			Score:       scores[obs.ID],
		})
	}
	if len(results) == 0 {
		return nil, false
	}
	return results, true
}

func buildResponse(format types.SearchFormat, kind types.MatchKind, results []*model.SearchResult) *model.SearchResponse {
	resp := &model.SearchResponse{
		Format:    format,
		MatchKind: kind,
	}

	if format == types.SearchFormatFull {
		resp.Full = results
		return resp
	}

	resp.Index = make([]model.IndexEntry, len(results))
	for i, r := range results {
		resp.Index[i] = r.ToIndexEntry()
	}
	return resp
}
