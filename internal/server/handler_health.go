package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/me/goshop/pkg/model"
)

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
	Solver    struct {
		TimeLimit string `json:"time_limit"`
		Workers   int    `json:"workers"`
		Running   int    `json:"running"`
		Slots     int    `json:"slots"`
	} `json:"solver"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	resp := healthResponse{
		Status:    "healthy",
		Version:   "0.1.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     "ok",
	}
	if _, _, err := s.store.ListSchedules(r.Context(), model.ListOptions{Limit: 1}); err != nil {
		resp.Status = "degraded"
		resp.Store = err.Error()
	}
	resp.Solver.TimeLimit = s.config.Solver.TimeLimit.String()
	resp.Solver.Workers = s.config.Solver.Options().Workers
	resp.Solver.Running = len(s.solves)
	resp.Solver.Slots = cap(s.solves)

	respondOK(w, reqID, resp)
}
