package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/mnemon-lab/mnemon/pkg/domain/interfaces"
	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/utils/async"
	"github.com/mnemon-lab/mnemon/pkg/utils/logging"
)

// LifecycleUseCase is the single authority for whether a compression
// job is running for a session. Per-session state here is transient:
// after a restart everything is rebuilt from the record store.
type LifecycleUseCase struct {
	repo       interfaces.Repository
	summarizer interfaces.Summarizer
	vector     interfaces.VectorIndex
	config     Config

	mu       sync.Mutex
	sessions map[types.SessionID]*sessionState
}

// sessionState serializes compression per session. Invariant: at most
// one job runs for a session at any instant; events arriving while a
// job runs join the next batch instead of starting a second job.
type sessionState struct {
	pending []*model.RawEvent
	running bool
	idle    chan struct{} // closed when no job is running
}

func newLifecycleUseCase(repo interfaces.Repository, summarizer interfaces.Summarizer, vector interfaces.VectorIndex, config Config) *LifecycleUseCase {
	return &LifecycleUseCase{
		repo:       repo,
		summarizer: summarizer,
		vector:     vector,
		config:     config,
		sessions:   make(map[types.SessionID]*sessionState),
	}
}

// Init creates or fetches the session and registers it as tracked.
// A capture source that has no ID of its own passes an empty one and
// gets a generated UUIDv7 back in the returned session.
func (u *LifecycleUseCase) Init(ctx context.Context, id types.SessionID, project string) (*model.Session, error) {
	if id == "" {
		id = types.NewSessionID()
	}

	sess, err := u.repo.Sessions().CreateOrGet(ctx, id, project)
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	u.state(id)
	u.mu.Unlock()
	return sess, nil
}

// SubmitEvent enqueues raw events for the session and starts a
// compression job unless one is already running. In deferred mode the
// call returns once the job is scheduled; in synchronous mode it blocks
// until the job completes or its bounded timeout elapses.
func (u *LifecycleUseCase) SubmitEvent(ctx context.Context, id types.SessionID, project string, events []*model.RawEvent, mode types.CompressionMode) error {
	if len(events) == 0 {
		return goerr.New("no events submitted", goerr.V("session_id", id))
	}

	sess, err := u.repo.Sessions().CreateOrGet(ctx, id, project)
	if err != nil {
		return err
	}
	if !sess.Active() {
		return goerr.Wrap(types.ErrUnknownSession, "session no longer accepts events",
			goerr.V("session_id", id), goerr.V("status", sess.Status))
	}

	u.mu.Lock()
	st := u.state(id)
	st.pending = append(st.pending, events...)
	if st.running {
		// a job is in flight; these events ride the next batch
		u.mu.Unlock()
		return nil
	}
	batch := st.pending
	st.pending = nil
	u.claimLocked(st)
	u.mu.Unlock()

	switch mode.Normalize() {
	case types.CompressionModeSynchronous:
		return u.runJob(ctx, sess, batch, u.config.SyncTimeout)
	default:
		async.Dispatch(ctx, func(bg context.Context) error {
			return u.runJob(bg, sess, batch, u.config.DeferredTimeout)
		})
		return nil
	}
}

// End triggers the final summary pass and closes the session.
// Calling End on an already closed session is a no-op.
func (u *LifecycleUseCase) End(ctx context.Context, id types.SessionID) error {
	sess, err := u.repo.Sessions().Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Closed() {
		return nil
	}

	// Let any in-flight job settle; its budget is bounded by
	// MaxSyncTimeout so this wait is too
	u.awaitIdle(ctx, id, MaxSyncTimeout)

	u.mu.Lock()
	st := u.state(id)
	batch := st.pending
	st.pending = nil
	u.claimLocked(st)
	u.mu.Unlock()
	defer u.forget(id)

	began, err := u.repo.Sessions().BeginClose(ctx, id)
	if err != nil {
		return err
	}

	if began {
		u.writeSummary(ctx, sess, batch)
	}

	if err := u.repo.Sessions().Close(ctx, id); err != nil {
		return err
	}
	return nil
}

// Cleanup is the idempotent forced close used when a session was
// abandoned without a graceful end signal. No summary is produced.
func (u *LifecycleUseCase) Cleanup(ctx context.Context, id types.SessionID) error {
	if err := u.repo.Sessions().Close(ctx, id); err != nil {
		return err
	}
	u.forget(id)
	return nil
}

// writeSummary performs the closing compression pass. Failure to
// summarize never blocks the close itself; the events are simply lost
// to the summary, not to the log.
func (u *LifecycleUseCase) writeSummary(ctx context.Context, sess *model.Session, pending []*model.RawEvent) {
	logger := logging.From(ctx)

	observations, err := u.repo.Observations().ListBySession(ctx, sess.ID)
	if err != nil {
		logger.Error("failed to load session observations for summary",
			"session_id", sess.ID, "error", err.Error())
		observations = nil
	}
	if len(observations) == 0 && len(pending) == 0 {
		return
	}

	sumCtx, cancel := context.WithTimeout(ctx, u.config.SyncTimeout)
	defer cancel()

	draft, err := u.summarizer.SummarizeSession(sumCtx, sess, observations, pending)
	if err != nil {
		logger.Error("closing session without summary",
			"session_id", sess.ID, "error", err.Error())
		return
	}
	draft.Type = types.ObservationTypeSummary

	obs, err := u.repo.Observations().Append(ctx, sess.ID, draft)
	if err != nil {
		logger.Error("failed to persist session summary",
			"session_id", sess.ID, "error", err.Error())
		return
	}
	u.enrich(ctx, obs)
}

// runJob executes one compression job under its timeout budget. On any
// failure the batch is requeued so partial work never silently vanishes;
// retry happens only when a later event starts a fresh job.
func (u *LifecycleUseCase) runJob(ctx context.Context, sess *model.Session, batch []*model.RawEvent, budget time.Duration) error {
	jobCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	draft, err := u.summarizer.Compress(jobCtx, sess, batch)
	if err != nil {
		u.requeue(sess.ID, batch)
		u.release(sess.ID)
		if errors.Is(err, context.DeadlineExceeded) || jobCtx.Err() == context.DeadlineExceeded {
			return goerr.Wrap(errors.Join(types.ErrCompressionTimeout, err), "compression job timed out",
				goerr.V("session_id", sess.ID),
				goerr.V("budget", budget.String()),
				goerr.V("events", len(batch)),
			)
		}
		return goerr.Wrap(errors.Join(types.ErrCompressionFailed, err), "compression job failed",
			goerr.V("session_id", sess.ID),
			goerr.V("events", len(batch)),
		)
	}

	// Persistence runs on the caller's context, not the job budget:
	// a compressed draft that arrived in time should not be dropped
	// because the budget expired during the write
	obs, err := u.repo.Observations().Append(ctx, sess.ID, draft)
	if err != nil {
		u.requeue(sess.ID, batch)
		u.release(sess.ID)
		return err
	}

	u.release(sess.ID)
	u.enrich(ctx, obs)
	u.drain(ctx, sess)
	return nil
}

// enrich schedules best-effort semantic indexing. Never on the critical
// path: a missing or failing vector backend degrades to lexical search.
func (u *LifecycleUseCase) enrich(ctx context.Context, obs *model.Observation) {
	if u.vector == nil {
		return
	}

	async.Dispatch(ctx, func(bg context.Context) error {
		if err := u.vector.Index(bg, obs); err != nil {
			if errors.Is(err, types.ErrSemanticUnavailable) {
				logging.From(bg).Debug("semantic indexing skipped, backend unavailable",
					"observation_id", obs.ID)
				return nil
			}
			return err
		}
		return u.repo.Observations().MarkEmbedded(bg, obs.ID)
	})
}

// drain starts a deferred job for events that accumulated while the
// previous job ran. Runs only after a successful job, so a failing
// backend cannot produce a retry loop.
func (u *LifecycleUseCase) drain(ctx context.Context, sess *model.Session) {
	u.mu.Lock()
	st := u.state(sess.ID)
	if st.running || len(st.pending) == 0 {
		u.mu.Unlock()
		return
	}
	batch := st.pending
	st.pending = nil
	u.claimLocked(st)
	u.mu.Unlock()

	async.Dispatch(ctx, func(bg context.Context) error {
		return u.runJob(bg, sess, batch, u.config.DeferredTimeout)
	})
}

// state returns the tracked state for a session. Caller must hold u.mu.
func (u *LifecycleUseCase) state(id types.SessionID) *sessionState {
	st, ok := u.sessions[id]
	if !ok {
		st = &sessionState{idle: closedChan()}
		u.sessions[id] = st
	}
	return st
}

// claimLocked marks a job as running. Caller must hold u.mu.
func (u *LifecycleUseCase) claimLocked(st *sessionState) {
	st.running = true
	st.idle = make(chan struct{})
}

func (u *LifecycleUseCase) release(id types.SessionID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if st, ok := u.sessions[id]; ok && st.running {
		st.running = false
		close(st.idle)
	}
}

func (u *LifecycleUseCase) requeue(id types.SessionID, batch []*model.RawEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()
	st := u.state(id)
	st.pending = append(batch, st.pending...)
}

func (u *LifecycleUseCase) forget(id types.SessionID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if st, ok := u.sessions[id]; ok {
		if st.running {
			st.running = false
			close(st.idle)
		}
		delete(u.sessions, id)
	}
}

// awaitIdle waits until no job is running for the session, bounded by
// bound and the caller's context. Event-driven, no polling.
func (u *LifecycleUseCase) awaitIdle(ctx context.Context, id types.SessionID, bound time.Duration) {
	u.mu.Lock()
	st, ok := u.sessions[id]
	if !ok || !st.running {
		u.mu.Unlock()
		return
	}
	idle := st.idle
	u.mu.Unlock()

	timer := time.NewTimer(bound)
	defer timer.Stop()
	select {
	case <-idle:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// RunningJobs reports how many sessions currently have a compression
// job in flight. Exposed for the serve loop's shutdown log.
func (u *LifecycleUseCase) RunningJobs() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	count := 0
	for _, st := range u.sessions {
		if st.running {
			count++
		}
	}
	return count
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
