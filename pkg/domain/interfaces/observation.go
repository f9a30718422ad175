package interfaces

import (
	"context"

	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

// SearchFilters narrows lexical search results
type SearchFilters struct {
	Project string
	Type    types.ObservationType
	Limit   int
}

// ObservationRepository defines the interface for observation persistence
// and the lexical index derived from it
type ObservationRepository interface {
	// Append assigns identity and timestamp to the draft and persists it
	// atomically with its lexical index entry, so a search immediately
	// after append finds it. Fails with ErrUnknownSession when the session
	// is absent or closed; while the session is stopping, only a single
	// summary observation is accepted.
	Append(ctx context.Context, sessionID types.SessionID, draft *model.ObservationDraft) (*model.Observation, error)

	// SearchLexical ranks stored observations by text relevance,
	// ties broken by descending creation timestamp
	SearchLexical(ctx context.Context, query string, filters SearchFilters) ([]*model.SearchResult, error)

	// GetByIDs hydrates observations by ID ordered by descending creation
	// timestamp, truncated to limit when limit > 0. Unknown IDs are
	// skipped, not errors.
	GetByIDs(ctx context.Context, ids []types.ObservationID, limit int) ([]*model.Observation, error)

	// ListBySession returns all observations of one session in append order
	ListBySession(ctx context.Context, sessionID types.SessionID) ([]*model.Observation, error)

	// MarkEmbedded records that semantic indexing succeeded for an
	// observation. The only mutation allowed after append.
	MarkEmbedded(ctx context.Context, id types.ObservationID) error

	// Stats returns aggregate counters for the viewer surface
	Stats(ctx context.Context) (*model.Stats, error)
}
