package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/repository/memory"
)

// fakeVector serves canned hits or a canned failure
type fakeVector struct {
	hits []interfaces.VectorHit
	err  error
}

var _ interfaces.VectorIndex = &fakeVector{}

func (f *fakeVector) Index(ctx context.Context, obs *model.Observation) error {
	return nil
}

func (f *fakeVector) Query(ctx context.Context, project, text string, topN int) ([]interfaces.VectorHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func seedObservation(t *testing.T, repo interfaces.Repository, sessionID types.SessionID, project, title, narrative string) *model.Observation {
	t.Helper()
	ctx := context.Background()

	_, err := repo.Sessions().CreateOrGet(ctx, sessionID, project)
	gt.NoError(t, err).Required()

	obs, err := repo.Observations().Append(ctx, sessionID, &model.ObservationDraft{
		Type:      types.ObservationTypeDiscovery,
		Title:     title,
		Narrative: narrative,
	})
	gt.NoError(t, err).Required()
	return obs
}

func TestSearchRequiresText(t *testing.T) {
	u := newSearchUseCase(memory.New(), nil, DefaultConfig())

	_, err := u.Search(context.Background(), Query{Text: "   "})
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrInvalidQuery)).True()
}

func TestSearchLexicalWithoutVectorIndex(t *testing.T) {
	repo := memory.New()
	obs := seedObservation(t, repo, "session-1", "proj-a", "Fixed the parser", "Handled trailing commas.")

	u := newSearchUseCase(repo, nil, DefaultConfig())

	resp, err := u.Search(context.Background(), Query{Text: "parser"})
	gt.NoError(t, err).Required()

	gt.Value(t, resp.MatchKind).Equal(types.MatchKindLexical)
	gt.Value(t, resp.Format).Equal(types.SearchFormatIndex)
	gt.Array(t, resp.Index).Length(1)
	gt.Value(t, resp.Index[0].ID).Equal(obs.ID)
}

func TestSearchFallsBackWhenVectorFails(t *testing.T) {
	repo := memory.New()
	seedObservation(t, repo, "session-1", "proj-a", "Fixed the parser", "Handled trailing commas.")

	vec := &fakeVector{err: errors.Join(types.ErrSemanticUnavailable, errors.New("connection refused"))}
	u := newSearchUseCase(repo, vec, DefaultConfig())

	// The semantic failure is absorbed; the caller sees lexical results,
	// never an error
	resp, err := u.Search(context.Background(), Query{Text: "parser"})
	gt.NoError(t, err).Required()
	gt.Value(t, resp.MatchKind).Equal(types.MatchKindLexical)
	gt.Value(t, resp.Len()).Equal(1)
}

func TestSearchSemanticHydratesFromStore(t *testing.T) {
	repo := memory.New()
	first := seedObservation(t, repo, "session-1", "proj-a", "Chose the retry policy", "Exponential backoff with jitter.")
	second := seedObservation(t, repo, "session-1", "proj-a", "Queue saturation", "Producer outpaced the consumer.")

	vec := &fakeVector{hits: []interfaces.VectorHit{
		{ID: second.ID, Score: 0.92, CreatedAt: second.CreatedAt},
		{ID: first.ID, Score: 0.81, CreatedAt: first.CreatedAt},
	}}
	u := newSearchUseCase(repo, vec, DefaultConfig())

	resp, err := u.Search(context.Background(), Query{Text: "backpressure", Format: types.SearchFormatFull})
	gt.NoError(t, err).Required()

	gt.Value(t, resp.MatchKind).Equal(types.MatchKindSemantic)
	gt.Array(t, resp.Full).Length(2)
	gt.Value(t, resp.Full[0].Observation.ID).Equal(second.ID)
	gt.Value(t, resp.Full[0].Score).Equal(0.92)
	gt.Value(t, resp.Full[1].Observation.ID).Equal(first.ID)
	gt.Value(t, resp.Full[1].Score).Equal(0.81)
}

func TestSearchRecencyWindowExcludesStaleHits(t *testing.T) {
	repo := memory.New()
	obs := seedObservation(t, repo, "session-1", "proj-a", "Old decision", "Retired approach for the importer.")

	vec := &fakeVector{hits: []interfaces.VectorHit{
		{ID: obs.ID, Score: 0.99, CreatedAt: obs.CreatedAt},
	}}
	u := newSearchUseCase(repo, vec, DefaultConfig())

	// Move "now" past the recency window: every semantic hit is stale,
	// so the engine falls back to lexical rather than serving nothing
	u.now = func() time.Time {
		return obs.CreatedAt.Add(DefaultConfig().RecencyWindow + 24*time.Hour)
	}

	resp, err := u.Search(context.Background(), Query{Text: "importer"})
	gt.NoError(t, err).Required()
	gt.Value(t, resp.MatchKind).Equal(types.MatchKindLexical)
	gt.Value(t, resp.Len()).Equal(1)
}

func TestSearchSemanticProjectFilter(t *testing.T) {
	repo := memory.New()
	inside := seedObservation(t, repo, "session-a", "proj-a", "Cache warmup", "Preload hot keys at boot.")
	outside := seedObservation(t, repo, "session-b", "proj-b", "Cache eviction", "LRU beats LFU for this workload.")

	vec := &fakeVector{hits: []interfaces.VectorHit{
		{ID: inside.ID, Score: 0.8, CreatedAt: inside.CreatedAt},
		{ID: outside.ID, Score: 0.9, CreatedAt: outside.CreatedAt},
	}}
	u := newSearchUseCase(repo, vec, DefaultConfig())

	resp, err := u.Search(context.Background(), Query{Text: "cache", Project: "proj-a", Format: types.SearchFormatFull})
	gt.NoError(t, err).Required()
	gt.Value(t, resp.MatchKind).Equal(types.MatchKindSemantic)
	gt.Array(t, resp.Full).Length(1)
	gt.Value(t, resp.Full[0].Observation.ID).Equal(inside.ID)
}

func TestSearchIndexProjection(t *testing.T) {
	repo := memory.New()
	obs := seedObservation(t, repo, "session-1", "proj-a", "Trace sampling",
		"Dropped head-based sampling after the collector change.\nMore details follow here.")

	u := newSearchUseCase(repo, nil, DefaultConfig())

	resp, err := u.Search(context.Background(), Query{Text: "sampling"})
	gt.NoError(t, err).Required()
	gt.Array(t, resp.Index).Length(1)
	gt.Array(t, resp.Full).Length(0)

	entry := resp.Index[0]
	gt.Value(t, entry.ID).Equal(obs.ID)
	gt.Value(t, entry.Type).Equal(types.ObservationTypeDiscovery)
	gt.Value(t, entry.Title).Equal("Trace sampling")
	gt.Value(t, entry.Subtitle).Equal("Dropped head-based sampling after the collector change.")
	gt.Value(t, entry.Project).Equal("proj-a")
	gt.Bool(t, entry.CreatedAt.IsZero()).False()
	gt.Bool(t, entry.Score > 0).True()
}

func TestQueryNormalization(t *testing.T) {
	q, err := Query{Text: "  terms  ", Limit: 500}.normalized()
	gt.NoError(t, err).Required()
	gt.Value(t, q.Text).Equal("terms")
	gt.Value(t, q.Limit).Equal(maxSearchLimit)
	gt.Value(t, q.Format).Equal(types.SearchFormatIndex)

	q, err = Query{Text: "terms"}.normalized()
	gt.NoError(t, err).Required()
	gt.Value(t, q.Limit).Equal(defaultSearchLimit)

	_, err = Query{Text: "terms", Format: "csv"}.normalized()
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, types.ErrInvalidQuery)).True()
}

func TestSyncTimeoutClamp(t *testing.T) {
	cfg := Config{SyncTimeout: time.Minute}.normalized()
	gt.Value(t, cfg.SyncTimeout).Equal(MaxSyncTimeout)

	cfg = Config{}.normalized()
	gt.Value(t, cfg.SyncTimeout).Equal(DefaultConfig().SyncTimeout)
	gt.Bool(t, cfg.SyncTimeout <= MaxSyncTimeout).True()
}
