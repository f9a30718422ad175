package model

import (
	"time"

	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

// RawEvent is one captured agent action before compression. Raw events
// are never persisted: they live in the session's pending batch until a
// compression job consumes them, and are requeued when a job fails.
type RawEvent struct {
	Kind       types.EventKind `json:"kind"`
	Tool       string          `json:"tool,omitempty"`
	Content    string          `json:"content"`
	Files      []string        `json:"files,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
