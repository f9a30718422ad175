// Package summary invokes the external summarization capability that
// turns raw captured events into compressed observation drafts. The LLM
// is treated as untrusted with respect to latency and output quality;
// all timeout policy lives with the caller.
package summary

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

//go:embed prompt/compress_system.md
var compressSystemPrompt string

//go:embed prompt/summarize_system.md
var summarizeSystemPrompt string

// Service implements interfaces.Summarizer on top of a gollem LLM client
type Service struct {
	llmClient gollem.LLMClient
}

var _ interfaces.Summarizer = &Service{}

// New creates a summarization service with the provided LLM client
func New(llmClient gollem.LLMClient) (*Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &Service{llmClient: llmClient}, nil
}

// draftResponse is the JSON structure the LLM fills in
type draftResponse struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Narrative string `json:"narrative"`
	Facts     []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"facts"`
	Concepts []string `json:"concepts"`
}

// Compress converts one batch of raw events into a single observation draft
func (s *Service) Compress(ctx context.Context, session *model.Session, events []*model.RawEvent) (*model.ObservationDraft, error) {
	if len(events) == 0 {
		return nil, goerr.New("event batch is empty", goerr.V("session_id", session.ID))
	}

	prompt := buildCompressPrompt(session, events)
	draft, err := s.generate(ctx, compressSystemPrompt, prompt, false)
	if err != nil {
		return nil, err
	}

	draft.Files = collectFiles(events)
	return draft, nil
}

// SummarizeSession produces the session-closing summary draft
func (s *Service) SummarizeSession(ctx context.Context, session *model.Session, observations []*model.Observation, pending []*model.RawEvent) (*model.ObservationDraft, error) {
	if len(observations) == 0 && len(pending) == 0 {
		return nil, goerr.New("nothing to summarize", goerr.V("session_id", session.ID))
	}

	prompt := buildSummarizePrompt(session, observations, pending)
	draft, err := s.generate(ctx, summarizeSystemPrompt, prompt, true)
	if err != nil {
		return nil, err
	}

	files := collectFiles(pending)
	for _, obs := range observations {
		files = append(files, obs.Files...)
	}
	draft.Files = dedupe(files)
	return draft, nil
}

func (s *Service) generate(ctx context.Context, systemPrompt, userPrompt string, forceSummary bool) (*model.ObservationDraft, error) {
	session, err := s.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(buildResponseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate observation draft")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("summarization returned empty result")
	}

	var parsed draftResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse observation draft JSON",
			goerr.V("response", resp.Texts[0]))
	}

	draft := &model.ObservationDraft{
		Type:      types.ObservationType(parsed.Type).Normalize(),
		Title:     strings.TrimSpace(parsed.Title),
		Narrative: strings.TrimSpace(parsed.Narrative),
		Concepts:  parsed.Concepts,
	}
	if forceSummary {
		draft.Type = types.ObservationTypeSummary
	}
	for _, f := range parsed.Facts {
		draft.Facts = append(draft.Facts, model.Fact{Name: f.Name, Value: f.Value})
	}

	if draft.Title == "" {
		return nil, goerr.New("summarization produced no title",
			goerr.V("response", resp.Texts[0]))
	}
	return draft, nil
}

// buildResponseSchema creates the JSON schema for structured output
func buildResponseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "ObservationDraft",
		Description: "One compressed observation of agent activity",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"type": {
				Type:        gollem.TypeString,
				Description: "One of: file-edit, command-run, decision, discovery",
				Required:    true,
			},
			"title": {
				Type:        gollem.TypeString,
				Description: "One short, specific line describing the activity",
				Required:    true,
			},
			"narrative": {
				Type:        gollem.TypeString,
				Description: "Plain prose account of what was done and why it matters",
				Required:    true,
			},
			"facts": {
				Type:        gollem.TypeArray,
				Description: "Discrete, independently useful statements",
				Required:    true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"name": {
							Type:        gollem.TypeString,
							Description: "Short label for the fact",
							Required:    true,
						},
						"value": {
							Type:        gollem.TypeString,
							Description: "The fact itself",
							Required:    true,
						},
					},
				},
			},
			"concepts": {
				Type:        gollem.TypeArray,
				Description: "Lowercase topical tags for retrieval",
				Required:    true,
				Items: &gollem.Parameter{
					Type: gollem.TypeString,
				},
			},
		},
	}
}

func buildCompressPrompt(session *model.Session, events []*model.RawEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nSession: %s\nEvents (%d):\n\n", session.Project, session.ID, len(events))
	for i, ev := range events {
		fmt.Fprintf(&b, "--- event %d (%s", i+1, ev.Kind)
		if ev.Tool != "" {
			fmt.Fprintf(&b, ", tool=%s", ev.Tool)
		}
		b.WriteString(") ---\n")
		b.WriteString(ev.Content)
		if len(ev.Files) > 0 {
			fmt.Fprintf(&b, "\nfiles: %s", strings.Join(ev.Files, ", "))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func buildSummarizePrompt(session *model.Session, observations []*model.Observation, pending []*model.RawEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nSession: %s\n\n", session.Project, session.ID)

	if len(observations) > 0 {
		fmt.Fprintf(&b, "Observations recorded during this session (%d):\n\n", len(observations))
		for _, obs := range observations {
			fmt.Fprintf(&b, "[%s] %s\n%s\n\n", obs.Type, obs.Title, obs.Narrative)
		}
	}
	if len(pending) > 0 {
		fmt.Fprintf(&b, "Raw events never compressed (%d):\n\n", len(pending))
		for _, ev := range pending {
			fmt.Fprintf(&b, "(%s) %s\n", ev.Kind, ev.Content)
		}
	}
	return b.String()
}

func collectFiles(events []*model.RawEvent) []string {
	var files []string
	for _, ev := range events {
		files = append(files, ev.Files...)
	}
	return dedupe(files)
}

// dedupe drops duplicates while preserving first-seen order
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
