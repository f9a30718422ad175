package model_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/m-mizutani/gt"

	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

func TestObservation_IndexText(t *testing.T) {
	obs := &model.Observation{
		Title:     "Switched retry to exponential backoff",
		Narrative: "The flat retry hammered the gateway.",
		Facts: []model.Fact{
			{Name: "cap", Value: "30s"},
		},
		Concepts: []string{"retry", "backoff"},
	}

	text := obs.IndexText()
	gt.B(t, strings.Contains(text, obs.Title)).True()
	gt.B(t, strings.Contains(text, obs.Narrative)).True()
	gt.B(t, strings.Contains(text, "cap: 30s")).True()
	gt.B(t, strings.Contains(text, "retry backoff")).True()
}

func TestObservation_Subtitle(t *testing.T) {
	t.Run("first line only", func(t *testing.T) {
		obs := &model.Observation{Narrative: "first line\nsecond line"}
		gt.Value(t, obs.Subtitle()).Equal("first line")
	})

	t.Run("long lines are truncated", func(t *testing.T) {
		obs := &model.Observation{Narrative: strings.Repeat("a", 200)}
		sub := obs.Subtitle()
		gt.Value(t, len(sub)).Equal(80)
		gt.B(t, strings.HasSuffix(sub, "...")).True()
	})

	t.Run("short narrative is untouched", func(t *testing.T) {
		obs := &model.Observation{Narrative: "short"}
		gt.Value(t, obs.Subtitle()).Equal("short")
	})

	t.Run("multi-byte narrative truncates on rune boundary", func(t *testing.T) {
		obs := &model.Observation{Narrative: strings.Repeat("設", 100)}
		sub := obs.Subtitle()
		gt.B(t, utf8.ValidString(sub)).True()
		gt.Value(t, utf8.RuneCountInString(sub)).Equal(80)
		gt.B(t, strings.HasSuffix(sub, "...")).True()
	})
}

func TestSearchResult_ToIndexEntry(t *testing.T) {
	result := &model.SearchResult{
		Observation: &model.Observation{
			ID:        42,
			Project:   "proj-a",
			Type:      types.ObservationTypeDecision,
			Title:     "Chose zstd",
			Narrative: "Benchmarks favored zstd.",
		},
		Score: 0.87,
	}

	entry := result.ToIndexEntry()
	gt.Value(t, entry.ID).Equal(types.ObservationID(42))
	gt.Value(t, entry.Type).Equal(types.ObservationTypeDecision)
	gt.Value(t, entry.Title).Equal("Chose zstd")
	gt.Value(t, entry.Subtitle).Equal("Benchmarks favored zstd.")
	gt.Value(t, entry.Project).Equal("proj-a")
	gt.Value(t, entry.Score).Equal(0.87)
}

func TestSession_StatusHelpers(t *testing.T) {
	sess := &model.Session{Status: types.SessionStatusActive}
	gt.B(t, sess.Active()).True()
	gt.B(t, sess.Closed()).False()

	sess.Status = types.SessionStatusStopping
	gt.B(t, sess.Active()).False()
	gt.B(t, sess.Closed()).False()

	sess.Status = types.SessionStatusClosed
	gt.B(t, sess.Closed()).True()
}
