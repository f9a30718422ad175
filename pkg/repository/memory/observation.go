package memory

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

type observationRepository struct {
	store *store
}

func (r *observationRepository) Append(ctx context.Context, sessionID types.SessionID, draft *model.ObservationDraft) (*model.Observation, error) {
	if draft == nil {
		return nil, goerr.New("observation draft is required")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sess, ok := r.store.sessions[sessionID]
	if !ok {
		return nil, goerr.Wrap(types.ErrUnknownSession, "session not found", goerr.V("session_id", sessionID))
	}

	switch sess.Status.Normalize() {
	case types.SessionStatusActive:
		// regular append
	case types.SessionStatusStopping:
		// Only the single closing summary is accepted in this window
		if draft.Type != types.ObservationTypeSummary || r.store.hasSummary(sessionID) {
			return nil, goerr.Wrap(types.ErrUnknownSession, "session no longer accepts observations",
				goerr.V("session_id", sessionID),
				goerr.V("status", sess.Status),
			)
		}
	default:
		return nil, goerr.Wrap(types.ErrUnknownSession, "session is closed", goerr.V("session_id", sessionID))
	}

	r.store.nextID++
	now := time.Now()
	obs := &model.Observation{
		ID:        r.store.nextID,
		SessionID: sessionID,
		Project:   sess.Project,
		Type:      draft.Type.Normalize(),
		Title:     draft.Title,
		Narrative: draft.Narrative,
		Facts:     append([]model.Fact(nil), draft.Facts...),
		Concepts:  append([]string(nil), draft.Concepts...),
		Files:     append([]string(nil), draft.Files...),
		CreatedAt: now,
	}
	r.store.observations = append(r.store.observations, obs)
	sess.LastActiveAt = now

	copied := *obs
	return &copied, nil
}

func (r *observationRepository) SearchLexical(ctx context.Context, query string, filters interfaces.SearchFilters) ([]*model.SearchResult, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, goerr.Wrap(types.ErrInvalidQuery, "query has no searchable terms", goerr.V("query", query))
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var results []*model.SearchResult
	for _, obs := range r.store.observations {
		if filters.Project != "" && obs.Project != filters.Project {
			continue
		}
		if filters.Type != "" && obs.Type != filters.Type {
			continue
		}
		score := scoreObservation(obs, terms)
		if score <= 0 {
			continue
		}
		copied := *obs
		results = append(results, &model.SearchResult{Observation: &copied, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Observation.CreatedAt.Equal(results[j].Observation.CreatedAt) {
			return results[i].Observation.CreatedAt.After(results[j].Observation.CreatedAt)
		}
		return results[i].Observation.ID > results[j].Observation.ID
	})

	limit := filters.Limit
	if limit <= 0 {
		limit = 10
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r *observationRepository) GetByIDs(ctx context.Context, ids []types.ObservationID, limit int) ([]*model.Observation, error) {
	wanted := make(map[types.ObservationID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var observations []*model.Observation
	for _, obs := range r.store.observations {
		if !wanted[obs.ID] {
			continue
		}
		copied := *obs
		observations = append(observations, &copied)
	}

	sort.Slice(observations, func(i, j int) bool {
		if !observations[i].CreatedAt.Equal(observations[j].CreatedAt) {
			return observations[i].CreatedAt.After(observations[j].CreatedAt)
		}
		return observations[i].ID > observations[j].ID
	})

	if limit > 0 && len(observations) > limit {
		observations = observations[:limit]
	}
	return observations, nil
}

func (r *observationRepository) ListBySession(ctx context.Context, sessionID types.SessionID) ([]*model.Observation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var observations []*model.Observation
	for _, obs := range r.store.observations {
		if obs.SessionID != sessionID {
			continue
		}
		copied := *obs
		observations = append(observations, &copied)
	}
	// observations slice is already in append order
	return observations, nil
}

func (r *observationRepository) MarkEmbedded(ctx context.Context, id types.ObservationID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, obs := range r.store.observations {
		if obs.ID == id {
			obs.HasEmbedding = true
			return nil
		}
	}
	return goerr.New("observation not found", goerr.V("observation_id", id))
}

func (r *observationRepository) Stats(ctx context.Context) (*model.Stats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stats := &model.Stats{
		TotalSessions:     len(r.store.sessions),
		TotalObservations: len(r.store.observations),
		ByProject:         make(map[string]int),
	}
	for _, obs := range r.store.observations {
		stats.ByProject[obs.Project]++
	}
	return stats, nil
}

// scoreObservation computes a naive weighted term-overlap relevance.
// Rough approximation of the FTS ranking in the durable backend; good
// enough to keep ordering semantics identical in tests.
func scoreObservation(obs *model.Observation, terms []string) float64 {
	title := tokenSet(obs.Title)
	narrative := tokenSet(obs.Narrative)
	concepts := tokenSet(strings.Join(obs.Concepts, " "))

	var facts strings.Builder
	for _, f := range obs.Facts {
		facts.WriteString(f.Name)
		facts.WriteByte(' ')
		facts.WriteString(f.Value)
		facts.WriteByte(' ')
	}
	factTokens := tokenSet(facts.String())

	var score float64
	for _, term := range terms {
		if title[term] {
			score += 3
		}
		if concepts[term] {
			score += 2
		}
		if narrative[term] {
			score++
		}
		if factTokens[term] {
			score++
		}
	}
	return score
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(text) {
		set[tok] = true
	}
	return set
}
