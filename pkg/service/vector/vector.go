// Package vector implements the semantic index adapter on top of
// chromem-go, an embedded pure-Go vector database. Embeddings come from
// the configured LLM client. The adapter is best-effort by contract:
// capture and lexical search must work when it is absent or failing.
package vector

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	chromem "github.com/philippgille/chromem-go"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/utils/logging"
)

// EmbeddingDimension is the vector size requested from the embedding model
const EmbeddingDimension = 768

const (
	metaSessionID = "session_id"
	metaType      = "type"
	metaCreatedAt = "created_at"
)

// Index implements interfaces.VectorIndex with one collection per project
type Index struct {
	db        *chromem.DB
	llmClient gollem.LLMClient
	dimension int

	mu          sync.Mutex
	collections map[string]*chromem.Collection

	// queries for identical text are deduplicated; concurrent searches
	// for the same phrase share one embedding round-trip
	embedGroup singleflight.Group
}

var _ interfaces.VectorIndex = &Index{}

// Option is a functional option for Index configuration
type Option func(*config)

type config struct {
	path      string
	dimension int
}

// WithPersistence stores vectors on disk at path instead of in memory
func WithPersistence(path string) Option {
	return func(c *config) {
		c.path = path
	}
}

// WithDimension overrides the embedding dimension
func WithDimension(dim int) Option {
	return func(c *config) {
		c.dimension = dim
	}
}

// New creates a vector index backed by the given LLM client for embeddings
func New(llmClient gollem.LLMClient, opts ...Option) (*Index, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	cfg := &config{dimension: EmbeddingDimension}
	for _, opt := range opts {
		opt(cfg)
	}

	var db *chromem.DB
	if cfg.path != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.path, false)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open vector database", goerr.V("path", cfg.path))
		}
	} else {
		db = chromem.NewDB()
	}

	return &Index{
		db:          db,
		llmClient:   llmClient,
		dimension:   cfg.dimension,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

// Index embeds and stores the observation. Returns an error tagged
// ErrSemanticUnavailable when the embedding backend is unreachable.
func (x *Index) Index(ctx context.Context, obs *model.Observation) error {
	embedding, err := x.embed(ctx, obs.IndexText())
	if err != nil {
		return err
	}

	col, err := x.collection(obs.Project)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        strconv.FormatInt(int64(obs.ID), 10),
		Content:   obs.IndexText(),
		Embedding: embedding,
		Metadata: map[string]string{
			metaSessionID: obs.SessionID.String(),
			metaType:      obs.Type.String(),
			metaCreatedAt: strconv.FormatInt(obs.CreatedAt.Unix(), 10),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to add document to vector index",
			goerr.V("observation_id", obs.ID))
	}
	return nil
}

// Query returns up to topN semantic candidates. A scoped query consults
// its project's collection; an unscoped one fans out across every
// collection and merges by score, so cross-project search still sees
// project-scoped vectors. Per the adapter contract it degrades to an
// empty result set instead of raising when the embedding backend is
// unavailable.
func (x *Index) Query(ctx context.Context, project, text string, topN int) ([]interfaces.VectorHit, error) {
	if topN <= 0 {
		return nil, nil
	}

	cols := x.queryTargets(project)
	if len(cols) == 0 {
		// nothing indexed yet
		return nil, nil
	}

	embedding, err := x.embed(ctx, text)
	if err != nil {
		logging.From(ctx).Warn("semantic query degraded to empty result",
			"error", err.Error(), "project", project)
		return nil, nil
	}

	var (
		hitsMu sync.Mutex
		hits   []interfaces.VectorHit
	)
	eg, egCtx := errgroup.WithContext(ctx)
	for _, col := range cols {
		eg.Go(func() error {
			n := topN
			if count := col.Count(); count < n {
				n = count
			}
			if n <= 0 {
				return nil
			}
			results, err := col.QueryEmbedding(egCtx, embedding, n, nil, nil)
			if err != nil {
				logging.From(ctx).Warn("vector query failed, skipping collection",
					"error", err.Error(), "collection", col.Name)
				return nil
			}
			converted := toHits(results)
			hitsMu.Lock()
			hits = append(hits, converted...)
			hitsMu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}

// queryTargets resolves which collections a query consults. Unscoped
// queries pick up every collection, including ones restored from a
// persistent DB by a previous run.
func (x *Index) queryTargets(project string) []*chromem.Collection {
	x.mu.Lock()
	defer x.mu.Unlock()

	if project != "" {
		name := collectionName(project)
		col, ok := x.collections[name]
		if !ok {
			if col = x.db.GetCollection(name, nil); col == nil {
				return nil
			}
			x.collections[name] = col
		}
		return []*chromem.Collection{col}
	}

	for name, col := range x.db.ListCollections() {
		if _, ok := x.collections[name]; !ok {
			x.collections[name] = col
		}
	}
	cols := make([]*chromem.Collection, 0, len(x.collections))
	for _, col := range x.collections {
		cols = append(cols, col)
	}
	return cols
}

func toHits(results []chromem.Result) []interfaces.VectorHit {
	hits := make([]interfaces.VectorHit, 0, len(results))
	for _, res := range results {
		id, err := strconv.ParseInt(res.ID, 10, 64)
		if err != nil {
			continue
		}
		createdAt, err := strconv.ParseInt(res.Metadata[metaCreatedAt], 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, interfaces.VectorHit{
			ID:        types.ObservationID(id),
			Score:     float64(res.Similarity),
			CreatedAt: time.Unix(createdAt, 0),
		})
	}
	return hits
}

func (x *Index) embed(ctx context.Context, text string) ([]float32, error) {
	v, err, _ := x.embedGroup.Do(text, func() (any, error) {
		embeddings, err := x.llmClient.GenerateEmbedding(ctx, x.dimension, []string{text})
		if err != nil {
			return nil, err
		}
		if len(embeddings) == 0 || len(embeddings[0]) == 0 {
			return nil, goerr.New("embedding generation returned empty result")
		}

		embedding64 := embeddings[0]
		embedding32 := make([]float32, len(embedding64))
		for i, val := range embedding64 {
			embedding32[i] = float32(val)
		}
		return embedding32, nil
	})
	if err != nil {
		return nil, goerr.Wrap(errors.Join(types.ErrSemanticUnavailable, err), "failed to generate embedding")
	}
	return v.([]float32), nil
}

func (x *Index) collection(project string) (*chromem.Collection, error) {
	name := collectionName(project)

	x.mu.Lock()
	defer x.mu.Unlock()

	if col, ok := x.collections[name]; ok {
		return col, nil
	}

	col, err := x.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create vector collection", goerr.V("name", name))
	}
	x.collections[name] = col
	return col, nil
}

func collectionName(project string) string {
	if project == "" {
		return "global"
	}
	return "project-" + project
}
