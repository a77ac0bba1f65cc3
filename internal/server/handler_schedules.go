package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/me/goshop/internal/engine"
	"github.com/me/goshop/internal/report"
	"github.com/me/goshop/pkg/model"
)

// scheduleResponse is a schedule plus whether it came from the cache.
type scheduleResponse struct {
	*model.Schedule
	Cached bool `json:"cached"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	ctx := r.Context()

	var body model.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, reqID, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	req := &model.Request{Name: body.Name, Jobs: body.Jobs}
	if apiErr := req.Validate(); apiErr != nil {
		respondError(w, reqID, apiErr)
		return
	}

	opts := s.config.Solver.Options()
	if body.TimeLimit != "" {
		d, err := time.ParseDuration(body.TimeLimit)
		if err != nil {
			respondError(w, reqID, model.NewValidationError("invalid time limit",
				model.FieldError{Field: "time_limit", Message: err.Error()}))
			return
		}
		// A request may shorten the configured budget, never extend it.
		if d < opts.TimeLimit {
			opts.TimeLimit = d
		}
	}
	if body.NodeLimit < 0 {
		respondError(w, reqID, model.NewValidationError("invalid node limit",
			model.FieldError{Field: "node_limit", Message: "must not be negative"}))
		return
	}
	if body.NodeLimit > 0 {
		opts.NodeLimit = body.NodeLimit
	}

	req.ContentHash = model.ComputeContentHash(req.Jobs)
	existing, err := s.store.GetRequestByHash(ctx, req.ContentHash)
	if err != nil {
		s.internalError(w, reqID, "lookup request", err)
		return
	}
	if existing != nil {
		sched, err := s.store.GetScheduleByRequest(ctx, existing.ID)
		if err != nil {
			s.internalError(w, reqID, "lookup schedule", err)
			return
		}
		if sched != nil {
			s.logger.Info("schedule cache hit", "hash", req.ContentHash, "schedule_id", sched.ID)
			respondOK(w, reqID, scheduleResponse{Schedule: s.anchored(sched, body.Anchor), Cached: true})
			return
		}
	}

	select {
	case s.solves <- struct{}{}:
		defer func() { <-s.solves }()
	case <-ctx.Done():
		return
	}

	eng := engine.New(req.Jobs,
		engine.WithName(req.Name),
		engine.WithLogger(s.logger),
		engine.WithSolverOptions(opts),
		engine.WithTimeUnit(s.config.Solver.TimeUnit),
	)
	if _, err := eng.Solve(ctx); err != nil {
		var solveErr *engine.SolveError
		if errors.As(err, &solveErr) {
			respondError(w, reqID, &model.APIError{
				Code:    model.ErrSolverFailed,
				Message: solveErr.Error(),
			})
			return
		}
		s.internalError(w, reqID, "solve", err)
		return
	}
	sched, err := eng.Results(nil)
	if err != nil {
		s.internalError(w, reqID, "results", err)
		return
	}

	if existing == nil {
		existing, err = s.saveRequest(r, req)
		if err != nil {
			s.internalError(w, reqID, "store request", err)
			return
		}
	}
	sched.ID = "sch_" + uuid.New().String()
	sched.RequestID = existing.ID
	sched.CreatedAt = time.Now().UTC()
	if err := s.store.CreateSchedule(ctx, sched); err != nil {
		s.internalError(w, reqID, "store schedule", err)
		return
	}

	s.logger.Info("schedule created", "schedule_id", sched.ID, "status", sched.Status, "makespan", sched.Makespan)
	respondCreated(w, reqID, scheduleResponse{Schedule: s.anchored(sched, body.Anchor)})
}

// saveRequest stores req. A concurrent POST of the same jobs may have
// stored it first, in which case that row is returned.
func (s *Server) saveRequest(r *http.Request, req *model.Request) (*model.Request, error) {
	req.ID = "req_" + uuid.New().String()
	req.CreatedAt = time.Now().UTC()
	err := s.store.CreateRequest(r.Context(), req)
	if err == nil {
		return req, nil
	}
	if winner, lookupErr := s.store.GetRequestByHash(r.Context(), req.ContentHash); lookupErr == nil && winner != nil {
		return winner, nil
	}
	return nil, err
}

// anchored applies a non-nil anchor with the server's time unit.
func (s *Server) anchored(sched *model.Schedule, anchor *time.Time) *model.Schedule {
	if anchor == nil {
		return sched
	}
	return sched.WithAnchor(*anchor, s.config.Solver.TimeUnit)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	opts.Status = q.Get("status")
	opts.Clamp()

	schedules, total, err := s.store.ListSchedules(r.Context(), opts)
	if err != nil {
		s.internalError(w, reqID, "list schedules", err)
		return
	}

	data := make([]model.ScheduleSummary, len(schedules))
	for i, sched := range schedules {
		data[i] = sched.Summary()
	}
	respondList(w, reqID, data, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(data) < total,
	})
}

// loadSchedule fetches the {id} schedule, writing a 404 when it is missing.
func (s *Server) loadSchedule(w http.ResponseWriter, r *http.Request) (*model.Schedule, bool) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sched, err := s.store.GetSchedule(r.Context(), id)
	if err != nil {
		s.internalError(w, reqID, "get schedule", err)
		return nil, false
	}
	if sched == nil {
		respondError(w, reqID, model.NewNotFoundError("schedule", id))
		return nil, false
	}

	if v := r.URL.Query().Get("anchor"); v != "" {
		anchor, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, reqID, model.NewValidationError("invalid anchor",
				model.FieldError{Field: "anchor", Message: err.Error()}))
			return nil, false
		}
		sched = s.anchored(sched, &anchor)
	}
	return sched, true
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	sched, ok := s.loadSchedule(w, r)
	if !ok {
		return
	}
	respondOK(w, RequestIDFromContext(r.Context()), sched)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sched, err := s.store.GetSchedule(r.Context(), id)
	if err != nil {
		s.internalError(w, reqID, "get schedule", err)
		return
	}
	if sched == nil {
		respondError(w, reqID, model.NewNotFoundError("schedule", id))
		return
	}
	if err := s.store.DeleteSchedule(r.Context(), id); err != nil {
		s.internalError(w, reqID, "delete schedule", err)
		return
	}
	respondOK(w, reqID, map[string]any{"deleted": true})
}

func (s *Server) handleExportRows(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sched, ok := s.loadSchedule(w, r)
	if !ok {
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		respondOK(w, reqID, sched.Rows)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sched.ID+".csv"))
		if err := report.WriteCSV(w, sched.Rows); err != nil {
			s.logger.Error("write csv", "schedule_id", sched.ID, "error", err)
		}
	default:
		respondError(w, reqID, model.NewValidationError("invalid format",
			model.FieldError{Field: "format", Message: "must be csv or json"}))
	}
}

func (s *Server) internalError(w http.ResponseWriter, reqID, op string, err error) {
	s.logger.Error(op, "error", err, "request_id", reqID)
	respondError(w, reqID, &model.APIError{
		Code:    model.ErrInternal,
		Message: op + ": " + err.Error(),
	})
}
