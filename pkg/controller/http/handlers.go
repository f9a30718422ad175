package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"

	"github.com/mnemon-lab/mnemon/pkg/domain/model"
	"github.com/mnemon-lab/mnemon/pkg/domain/types"
	"github.com/mnemon-lab/mnemon/pkg/usecase"
	"github.com/mnemon-lab/mnemon/pkg/utils/errutil"
	"github.com/mnemon-lab/mnemon/pkg/utils/safe"
)

// submitEventsRequest is the capture-source payload: raw events only,
// never pre-compressed text
type submitEventsRequest struct {
	Project string            `json:"project"`
	Mode    string            `json:"mode"`
	Events  []*model.RawEvent `json:"events"`
}

type initSessionRequest struct {
	Project string `json:"project"`
}

func (s *Server) initSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := types.SessionID(chi.URLParam(r, "sessionID"))

	var req initSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest)
		return
	}

	sess, err := s.uc.Lifecycle.Init(ctx, sessionID, req.Project)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusOf(err))
		return
	}
	respondJSON(w, r, http.StatusOK, sess)
}

// createSession registers a session for a capture source that has no
// ID of its own; the server generates one and returns it in the body
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest)
		return
	}

	sess, err := s.uc.Lifecycle.Init(ctx, "", req.Project)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusOf(err))
		return
	}
	respondJSON(w, r, http.StatusCreated, sess)
}

func (s *Server) submitEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := types.SessionID(chi.URLParam(r, "sessionID"))

	var req submitEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid request body"), http.StatusBadRequest)
		return
	}
	if len(req.Events) == 0 {
		errutil.HandleHTTP(ctx, w, goerr.New("at least one event is required"), http.StatusBadRequest)
		return
	}

	mode, err := types.ParseCompressionMode(req.Mode)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "invalid compression mode"), http.StatusBadRequest)
		return
	}

	if err := s.uc.Lifecycle.SubmitEvent(ctx, sessionID, req.Project, req.Events, mode); err != nil {
		errutil.HandleHTTP(ctx, w, err, statusOf(err))
		return
	}

	status := http.StatusOK
	result := "compressed"
	if mode == types.CompressionModeDeferred {
		status = http.StatusAccepted
		result = "queued"
	}
	respondJSON(w, r, status, map[string]string{"status": result})
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := types.SessionID(chi.URLParam(r, "sessionID"))

	if err := s.uc.Lifecycle.End(ctx, sessionID); err != nil {
		errutil.HandleHTTP(ctx, w, err, statusOf(err))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "closed"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	query := usecase.Query{
		Text:    params.Get("q"),
		Project: params.Get("project"),
	}

	if t := params.Get("type"); t != "" {
		parsed, err := types.ParseObservationType(t)
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(types.ErrInvalidQuery, err.Error()), http.StatusBadRequest)
			return
		}
		query.Type = parsed
	}
	if limitStr := params.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(types.ErrInvalidQuery, "limit must be an integer"), http.StatusBadRequest)
			return
		}
		query.Limit = limit
	}
	format, err := types.ParseSearchFormat(params.Get("format"))
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(types.ErrInvalidQuery, err.Error()), http.StatusBadRequest)
		return
	}
	query.Format = format

	resp, err := s.uc.Search.Search(ctx, query)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusOf(err))
		return
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	limit := 0
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(types.ErrInvalidQuery, "limit must be an integer"), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	sessions, err := s.uc.ListSessions(ctx, params.Get("project"), limit)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusOf(err))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) sessionObservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := types.SessionID(chi.URLParam(r, "sessionID"))

	observations, err := s.uc.SessionObservations(ctx, sessionID)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusOf(err))
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{"observations": observations})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := s.uc.Stats(ctx)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, statusOf(err))
		return
	}
	respondJSON(w, r, http.StatusOK, stats)
}

// statusOf maps the pipeline error taxonomy to HTTP status codes. The
// messages distinguish "session not found" from "compression degraded"
// from "storage unreachable" so callers can act on them.
func statusOf(err error) int {
	switch {
	case errors.Is(err, types.ErrUnknownSession):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrCompressionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrCompressionFailed):
		return http.StatusBadGateway
	case errors.Is(err, types.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(r.Context(), w, data)
}
