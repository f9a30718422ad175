package usecase

import (
	"context"

	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
)

// ListSessions returns recent sessions for the viewer surface
func (uc *UseCases) ListSessions(ctx context.Context, project string, limit int) ([]*model.Session, error) {
	return uc.repo.Sessions().List(ctx, project, limit)
}

// SessionObservations returns one session's observations in append order
func (uc *UseCases) SessionObservations(ctx context.Context, id types.SessionID) ([]*model.Observation, error) {
	if _, err := uc.repo.Sessions().Get(ctx, id); err != nil {
		return nil, err
	}
	return uc.repo.Observations().ListBySession(ctx, id)
}

// Stats returns aggregate store counters
func (uc *UseCases) Stats(ctx context.Context) (*model.Stats, error) {
	return uc.repo.Observations().Stats(ctx)
}
