package model

import (
	"time"

	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

// SearchResult is an ephemeral projection of an observation plus its
// relevance score. Never persisted.
type SearchResult struct {
	Observation *Observation `json:"observation"`
	Score       float64      `json:"score"`
}

// IndexEntry is the compact search projection: enough to decide which
// result to fetch next, nothing more. The shape is fixed; callers that
// need the narrative request the full projection instead.
type IndexEntry struct {
	ID        types.ObservationID   `json:"id"`
	Type      types.ObservationType `json:"type"`
	Title     string                `json:"title"`
	Subtitle  string                `json:"subtitle"`
	CreatedAt time.Time             `json:"created_at"`
	Project   string                `json:"project"`
	Score     float64               `json:"score"`
}

// ToIndexEntry projects a search result into its compact form
func (r *SearchResult) ToIndexEntry() IndexEntry {
	return IndexEntry{
		ID:        r.Observation.ID,
		Type:      r.Observation.Type,
		Title:     r.Observation.Title,
		Subtitle:  r.Observation.Subtitle(),
		CreatedAt: r.Observation.CreatedAt,
		Project:   r.Observation.Project,
		Score:     r.Score,
	}
}

// SearchResponse is the ranked output of the hybrid search engine.
// MatchKind applies to the whole response: semantic and lexical results
// are never mixed into one ranking because their scores do not compare.
type SearchResponse struct {
	Format    types.SearchFormat `json:"format"`
	MatchKind types.MatchKind    `json:"match_kind"`
	Index     []IndexEntry       `json:"index,omitempty"`
	Full      []*SearchResult    `json:"full,omitempty"`
}

// Len returns the number of results regardless of projection
func (r *SearchResponse) Len() int {
	if r.Format == types.SearchFormatFull {
		return len(r.Full)
	}
	return len(r.Index)
}

// Stats holds aggregate store statistics for the viewer surface
type Stats struct {
	TotalSessions     int            `json:"total_sessions"`
	TotalObservations int            `json:"total_observations"`
	ByProject         map[string]int `json:"by_project"`
}
