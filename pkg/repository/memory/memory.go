// Package memory provides an in-memory Repository implementation for
// development and tests. It enforces the same session gating rules as
// the durable backend so repository tests run against both.
package memory

import (
	"sync"

	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	sessions     *sessionRepository
	observations *observationRepository
}

var _ interfaces.Repository = &Memory{}

// store holds all shared state. Both sub-repositories serialize through
// one mutex because the append gate reads session status.
type store struct {
	mu           sync.RWMutex
	sessions     map[types.SessionID]*model.Session
	observations []*model.Observation
	nextID       types.ObservationID
}

func New() *Memory {
	s := &store{
		sessions: make(map[types.SessionID]*model.Session),
	}
	return &Memory{
		sessions:     &sessionRepository{store: s, workerID: types.NewWorkerID()},
		observations: &observationRepository{store: s},
	}
}

func (m *Memory) Sessions() interfaces.SessionRepository {
	return m.sessions
}

func (m *Memory) Observations() interfaces.ObservationRepository {
	return m.observations
}

func (m *Memory) Close() error {
	return nil
}

// hasSummary reports whether the session already has its closing summary.
// Caller must hold at least a read lock.
func (s *store) hasSummary(sessionID types.SessionID) bool {
	for _, obs := range s.observations {
		if obs.SessionID == sessionID && obs.Type == types.ObservationTypeSummary {
			return true
		}
	}
	return false
}
