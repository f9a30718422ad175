package interfaces

import (
	"context"

	"github.com/mnemon-lab/mnemon/pkg/domain/model"
)

// Summarizer is the external summarization capability invoked by the
// compression scheduler. It may be slow or unavailable; callers own all
// timeout policy.
type Summarizer interface {
	// Compress turns one batch of raw events into a single observation draft
	Compress(ctx context.Context, session *model.Session, events []*model.RawEvent) (*model.ObservationDraft, error)

	// SummarizeSession produces the session-closing summary draft from the
	// session's persisted observations plus any still-uncompressed events
	SummarizeSession(ctx context.Context, session *model.Session, observations []*model.Observation, pending []*model.RawEvent) (*model.ObservationDraft, error)
}
