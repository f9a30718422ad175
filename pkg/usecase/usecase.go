package usecase

import (
	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
)

// UseCases bundles the capture and retrieval pipelines. It is an
// explicit per-process object injected into the controllers, so tests
// run multiple isolated instances in-process.
type UseCases struct {
	repo       interfaces.Repository
	vector     interfaces.VectorIndex
	summarizer interfaces.Summarizer
	config     Config

	Lifecycle *LifecycleUseCase
	Search    *SearchUseCase
}

type Option func(*UseCases)

// WithVectorIndex enables semantic indexing and retrieval. Without it
// the pipeline serves lexical-only search.
func WithVectorIndex(vector interfaces.VectorIndex) Option {
	return func(uc *UseCases) {
		uc.vector = vector
	}
}

// WithConfig overrides the default pipeline tuning
func WithConfig(cfg Config) Option {
	return func(uc *UseCases) {
		uc.config = cfg
	}
}

func New(repo interfaces.Repository, summarizer interfaces.Summarizer, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:       repo,
		summarizer: summarizer,
		config:     DefaultConfig(),
	}

	for _, opt := range opts {
		opt(uc)
	}
	uc.config = uc.config.normalized()

	uc.Lifecycle = newLifecycleUseCase(repo, summarizer, uc.vector, uc.config)
	uc.Search = newSearchUseCase(repo, uc.vector, uc.config)

	return uc
}
