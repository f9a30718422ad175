package interfaces

import (
	"context"
	"time"

	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

// VectorHit is one semantic match candidate. CreatedAt travels with the
// hit so the search engine can apply its recency window before paying
// for hydration.
type VectorHit struct {
	ID        types.ObservationID
	Score     float64
	CreatedAt time.Time
}

// VectorIndex is the optional semantic index keyed by observation ID.
// It is never on the critical path for persistence correctness: capture
// must succeed with the record store alone when this is absent.
type VectorIndex interface {
	// Index embeds and stores the observation text. Returns an error
	// tagged ErrSemanticUnavailable when the backend is unreachable.
	Index(ctx context.Context, obs *model.Observation) error

	// Query returns up to topN candidates ranked by similarity. Returns
	// an empty slice, not an error, when the backend is unavailable.
	Query(ctx context.Context, project, text string, topN int) ([]VectorHit, error)
}
