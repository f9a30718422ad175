package vector_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gt"

	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/service/vector"
)

func TestNewRequiresClient(t *testing.T) {
	_, err := vector.New(nil)
	gt.Error(t, err)
}

func TestIndexAndQuery_WithRealGemini(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT not set")
	}

	location := os.Getenv("TEST_GEMINI_LOCATION")
	if location == "" {
		t.Skip("TEST_GEMINI_LOCATION not set")
	}

	ctx := context.Background()

	llmClient, err := gemini.New(ctx, projectID, location)
	gt.NoError(t, err).Required()

	idx, err := vector.New(llmClient)
	gt.NoError(t, err).Required()

	observations := []*model.Observation{
		{
			ID:        1,
			SessionID: "session-1",
			Project:   "proj-a",
			Type:      types.ObservationTypeDecision,
			Title:     "Switched the job queue to Redis streams",
			Narrative: "Postgres LISTEN/NOTIFY dropped messages under load.",
			CreatedAt: time.Now(),
		},
		{
			ID:        2,
			SessionID: "session-1",
			Project:   "proj-a",
			Type:      types.ObservationTypeDiscovery,
			Title:     "Found the N+1 query in the billing report",
			Narrative: "Each invoice row triggered a separate customer lookup.",
			CreatedAt: time.Now(),
		},
	}
	for _, obs := range observations {
		gt.NoError(t, idx.Index(ctx, obs)).Required()
	}

	otherProject := &model.Observation{
		ID:        3,
		SessionID: "session-2",
		Project:   "proj-b",
		Type:      types.ObservationTypeFileEdit,
		Title:     "Pinned the container base image digest",
		Narrative: "Nightly deploys broke when the upstream tag moved.",
		CreatedAt: time.Now(),
	}
	gt.NoError(t, idx.Index(ctx, otherProject)).Required()

	t.Run("Query returns ranked hits with timestamps", func(t *testing.T) {
		hits, err := idx.Query(ctx, "proj-a", "message queue reliability", 10)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(2)

		// The queue-related observation should rank first
		gt.Value(t, hits[0].ID).Equal(types.ObservationID(1))
		gt.Bool(t, hits[0].Score >= hits[1].Score).True()
		for _, hit := range hits {
			gt.Bool(t, hit.CreatedAt.IsZero()).False()
		}
	})

	t.Run("Unscoped query spans project collections", func(t *testing.T) {
		hits, err := idx.Query(ctx, "", "message queue reliability", 10)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(3)

		seen := map[types.ObservationID]bool{}
		for _, hit := range hits {
			seen[hit.ID] = true
		}
		gt.Bool(t, seen[1] && seen[3]).True()

		// Merged results stay score-ordered across collections
		for i := 1; i < len(hits); i++ {
			gt.Bool(t, hits[i-1].Score >= hits[i].Score).True()
		}
	})

	t.Run("Query on unindexed project returns nothing", func(t *testing.T) {
		hits, err := idx.Query(ctx, "proj-unknown", "anything", 10)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(0)
	})

	t.Run("topN is clamped to collection size", func(t *testing.T) {
		hits, err := idx.Query(ctx, "proj-a", "billing", 100)
		gt.NoError(t, err).Required()
		gt.Array(t, hits).Length(2)
	})
}
