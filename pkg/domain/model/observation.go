package model

import (
	"strings"
	"time"

	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

// Fact is one structured statement extracted during compression
type Fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Observation is one compressed, immutable record of agent activity.
// Corrections are new observations, never in-place edits.
type Observation struct {
	ID        types.ObservationID   `json:"id"`
	SessionID types.SessionID       `json:"session_id"`
	Project   string                `json:"project"`
	Type      types.ObservationType `json:"type"`
	Title     string                `json:"title"`
	Narrative string                `json:"narrative"`
	Facts     []Fact                `json:"facts,omitempty"`
	Concepts  []string              `json:"concepts,omitempty"`
	Files     []string              `json:"files,omitempty"`
	CreatedAt time.Time             `json:"created_at"`

	// HasEmbedding records whether semantic indexing succeeded for this
	// observation. Enrichment is best-effort and asynchronous.
	HasEmbedding bool `json:"has_embedding"`
}

// IndexText returns the text that feeds both the lexical index and the
// embedding input. The lexical index is derived and rebuildable from this.
func (o *Observation) IndexText() string {
	parts := make([]string, 0, 3+len(o.Facts))
	parts = append(parts, o.Title, o.Narrative)
	for _, f := range o.Facts {
		parts = append(parts, f.Name+": "+f.Value)
	}
	if len(o.Concepts) > 0 {
		parts = append(parts, strings.Join(o.Concepts, " "))
	}
	return strings.Join(parts, "\n")
}

// Subtitle returns a short single-line preview of the narrative for the
// index projection
func (o *Observation) Subtitle() string {
	line := o.Narrative
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	// Truncate on rune boundaries; narratives carry user text in any script
	const maxLen = 80
	if runes := []rune(line); len(runes) > maxLen {
		line = string(runes[:maxLen-3]) + "..."
	}
	return line
}

// ObservationDraft is the compression output before the store assigns
// identity and timestamp
type ObservationDraft struct {
	Type      types.ObservationType
	Title     string
	Narrative string
	Facts     []Fact
	Concepts  []string
	Files     []string
}
