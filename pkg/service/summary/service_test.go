package summary_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gt"

	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/service/summary"
)

func TestNewRequiresClient(t *testing.T) {
	_, err := summary.New(nil)
	gt.Error(t, err)
}

func TestCompress_WithRealGemini(t *testing.T) {
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

	svc, err := summary.New(llmClient)
	gt.NoError(t, err).Required()

	sess := &model.Session{
		ID:      "test-session",
		Project: "payments-api",
		Status:  types.SessionStatusActive,
	}

	t.Run("Compress folds a batch into one draft", func(t *testing.T) {
		events := []*model.RawEvent{
			{
				Kind:       types.EventKindToolUse,
				Tool:       "Edit",
				Content:    "Replaced the retry loop in charge.go with exponential backoff capped at 30s, because the flat 1s retry hammered the payment gateway during outages.",
				Files:      []string{"internal/gateway/charge.go"},
				OccurredAt: time.Now(),
			},
			{
				Kind:       types.EventKindToolUse,
				Tool:       "Bash",
				Content:    "go test ./internal/gateway/... => ok, 14 tests passed",
				OccurredAt: time.Now(),
			},
		}

		draft, err := svc.Compress(ctx, sess, events)
		gt.NoError(t, err).Required()

		gt.Bool(t, draft.Type.IsValid()).True()
		gt.String(t, draft.Title).NotEqual("")
		gt.String(t, draft.Narrative).NotEqual("")
		gt.Array(t, draft.Files).Length(1)
		gt.Value(t, draft.Files[0]).Equal("internal/gateway/charge.go")
	})

	t.Run("Compress rejects empty batches", func(t *testing.T) {
		_, err := svc.Compress(ctx, sess, nil)
		gt.Error(t, err)
	})

	t.Run("SummarizeSession always yields a summary draft", func(t *testing.T) {
		observations := []*model.Observation{
			{
				ID:        1,
				SessionID: sess.ID,
				Project:   sess.Project,
				Type:      types.ObservationTypeFileEdit,
				Title:     "Switched retry to exponential backoff",
				Narrative: "Replaced flat 1s retry with capped exponential backoff in the gateway client.",
				Files:     []string{"internal/gateway/charge.go"},
				CreatedAt: time.Now(),
			},
		}

		draft, err := svc.SummarizeSession(ctx, sess, observations, nil)
		gt.NoError(t, err).Required()

		// The closing pass is forced to the summary type regardless of
		// what the model chose
		gt.Value(t, draft.Type).Equal(types.ObservationTypeSummary)
		gt.String(t, draft.Title).NotEqual("")
	})
}
