package usecase

import "time"

// MaxSyncTimeout is the hard upper bound on synchronous compression,
// enforced independently of configuration. Synchronous jobs hold the
// per-session lock while they run; an oversized timeout here once made
// every request for the same session queue behind one slow job and
// looked like a full-system hang from the outside. The bound must stay
// visibly smaller than any outer request timeout.
const MaxSyncTimeout = 10 * time.Second

// Config tunes the capture and retrieval pipelines. Zero values fall
// back to defaults; SyncTimeout is clamped to MaxSyncTimeout no matter
// what the configuration says.
type Config struct {
	// DeferredTimeout is the budget for background compression jobs
	DeferredTimeout time.Duration

	// SyncTimeout is the budget for blocking compression jobs
	SyncTimeout time.Duration

	// RecencyWindow bounds how old a semantic match may be. Fixed per
	// deployment, not overridable per query.
	RecencyWindow time.Duration

	// CandidatePool is how many semantic candidates to fetch before
	// recency filtering
	CandidatePool int

	// VectorQueryTimeout bounds the semantic index round-trip during
	// search so it can never block the lexical fallback path
	VectorQueryTimeout time.Duration
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{
		DeferredTimeout:    5 * time.Second,
		SyncTimeout:        8 * time.Second,
		RecencyWindow:      90 * 24 * time.Hour,
		CandidatePool:      100,
		VectorQueryTimeout: 3 * time.Second,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.DeferredTimeout <= 0 {
		c.DeferredTimeout = def.DeferredTimeout
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = def.SyncTimeout
	}
	if c.SyncTimeout > MaxSyncTimeout {
		c.SyncTimeout = MaxSyncTimeout
	}
	if c.RecencyWindow <= 0 {
		c.RecencyWindow = def.RecencyWindow
	}
	if c.CandidatePool <= 0 {
		c.CandidatePool = def.CandidatePool
	}
	if c.VectorQueryTimeout <= 0 {
		c.VectorQueryTimeout = def.VectorQueryTimeout
	}
	return c
}
