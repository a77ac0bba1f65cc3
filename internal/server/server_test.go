package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/goshop/internal/config"
	"github.com/me/goshop/internal/store"
	"github.com/me/goshop/pkg/model"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultServerConfig()
	cfg.Solver.TimeLimit = 10 * time.Second
	return New(cfg, st, logger)
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

// scheduleData mirrors the POST/GET schedule payload.
type scheduleData struct {
	model.Schedule
	Cached bool `json:"cached"`
}

const exampleBody = `{"name":"example","jobs":[
	{"id":0,"tasks":[{"id":0,"machine":1,"duration":2},{"id":1,"machine":2,"duration":2},{"id":2,"machine":3,"duration":2}]},
	{"id":1,"tasks":[{"id":0,"machine":3,"duration":2},{"id":1,"machine":2,"duration":2},{"id":2,"machine":1,"duration":2}]}
]}`

func do(t *testing.T, srv *Server, method, path, body string, wantStatus int) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	return env
}

func decodeSchedule(t *testing.T, env envelope) scheduleData {
	t.Helper()
	var data scheduleData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	return data
}

func TestDiscovery(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/", "", http.StatusOK)
	if env.Status != "ok" {
		t.Errorf("status = %q, want ok", env.Status)
	}

	var data struct {
		Name      string `json:"name"`
		Endpoints []struct {
			Path string `json:"path"`
		} `json:"endpoints"`
	}
	json.Unmarshal(env.Data, &data)
	if data.Name != "goshop API" {
		t.Errorf("name = %q, want goshop API", data.Name)
	}
	if len(data.Endpoints) != 4 {
		t.Errorf("endpoints count = %d, want 4", len(data.Endpoints))
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/health", "", http.StatusOK)

	var data struct {
		Status string `json:"status"`
		Store  string `json:"store"`
		Solver struct {
			Slots int `json:"slots"`
		} `json:"solver"`
	}
	json.Unmarshal(env.Data, &data)
	if data.Status != "healthy" || data.Store != "ok" {
		t.Errorf("health = %+v, want healthy/ok", data)
	}
	if data.Solver.Slots != 2 {
		t.Errorf("slots = %d, want 2", data.Solver.Slots)
	}
}

func TestCreateSchedule_SolvesThenCaches(t *testing.T) {
	srv := testServer(t)

	first := decodeSchedule(t, do(t, srv, "POST", "/api/v1/schedules/", exampleBody, http.StatusCreated))
	if first.Cached {
		t.Error("first POST should not be cached")
	}
	if first.Status != model.SolveStatusOptimal || first.Makespan != 8 {
		t.Errorf("status/makespan = %s/%d, want OPTIMAL/8", first.Status, first.Makespan)
	}
	if !strings.HasPrefix(first.ID, "sch_") || !strings.HasPrefix(first.RequestID, "req_") {
		t.Errorf("ids = %q, %q", first.ID, first.RequestID)
	}
	if len(first.Rows) != 6 {
		t.Fatalf("rows = %d, want 6", len(first.Rows))
	}
	if first.Rows[0].ID != "job(0, 0)" || first.Rows[0].Machine != "1" {
		t.Errorf("first row = %+v", first.Rows[0])
	}

	second := decodeSchedule(t, do(t, srv, "POST", "/api/v1/schedules/", exampleBody, http.StatusOK))
	if !second.Cached {
		t.Error("second POST should be cached")
	}
	if second.ID != first.ID {
		t.Errorf("cached id = %q, want %q", second.ID, first.ID)
	}
}

func TestCreateSchedule_Anchor(t *testing.T) {
	srv := testServer(t)
	body := strings.Replace(exampleBody, `"name":"example",`, `"name":"example","anchor":"2024-05-01T06:00:00Z",`, 1)

	data := decodeSchedule(t, do(t, srv, "POST", "/api/v1/schedules/", body, http.StatusCreated))
	if data.Anchor == nil || data.TimeUnit != "1h0m0s" {
		t.Fatalf("anchor = %v, unit = %q", data.Anchor, data.TimeUnit)
	}
	last := data.Rows[1] // job(1, 2) on machine 1, [6, 8]
	want := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	if last.PlannedEnd == nil || !last.PlannedEnd.Equal(want) {
		t.Errorf("planned end = %v, want %v", last.PlannedEnd, want)
	}

	// The stored schedule stays unanchored.
	stored := decodeSchedule(t, do(t, srv, "GET", "/api/v1/schedules/"+data.ID, "", http.StatusOK))
	if stored.Anchor != nil {
		t.Errorf("stored anchor = %v, want nil", stored.Anchor)
	}
}

func TestCreateSchedule_ValidationErrors(t *testing.T) {
	srv := testServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "not json"},
		{"zero duration", `{"jobs":[{"id":0,"tasks":[{"id":0,"machine":"a","duration":0}]}]}`},
		{"duplicate job id", `{"jobs":[{"id":1,"tasks":[]},{"id":1,"tasks":[]}]}`},
		{"bad time limit", `{"jobs":[],"time_limit":"soon"}`},
		{"negative node limit", `{"jobs":[],"node_limit":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := do(t, srv, "POST", "/api/v1/schedules/", tt.body, http.StatusBadRequest)
			if env.Status != "error" {
				t.Errorf("status = %q, want error", env.Status)
			}
			if env.Error == nil || env.Error.Code != model.ErrValidation {
				t.Errorf("error = %v, want VALIDATION_ERROR", env.Error)
			}
		})
	}
}

func TestCreateSchedule_SolverUnsuccessful(t *testing.T) {
	srv := testServer(t)
	body := strings.Replace(exampleBody, `"name":"example",`, `"name":"example","time_limit":"0s",`, 1)

	env := do(t, srv, "POST", "/api/v1/schedules/", body, http.StatusUnprocessableEntity)
	if env.Error == nil || env.Error.Code != model.ErrSolverFailed {
		t.Fatalf("error = %v, want SOLVER_UNSUCCESSFUL", env.Error)
	}
	if !strings.Contains(env.Error.Message, "UNKNOWN") {
		t.Errorf("message = %q, want status UNKNOWN", env.Error.Message)
	}

	// Nothing was cached: a normal POST solves.
	do(t, srv, "POST", "/api/v1/schedules/", exampleBody, http.StatusCreated)
}

func TestCreateSchedule_EmptyRequest(t *testing.T) {
	srv := testServer(t)
	data := decodeSchedule(t, do(t, srv, "POST", "/api/v1/schedules/", `{"jobs":[]}`, http.StatusCreated))
	if data.Makespan != 0 || len(data.Rows) != 0 {
		t.Errorf("makespan/rows = %d/%d, want 0/0", data.Makespan, len(data.Rows))
	}
}

func TestListSchedules(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/v1/schedules/", exampleBody, http.StatusCreated)
	do(t, srv, "POST", "/api/v1/schedules/", `{"name":"single","jobs":[{"id":0,"tasks":[{"id":0,"machine":"x","duration":5}]}]}`, http.StatusCreated)

	env := do(t, srv, "GET", "/api/v1/schedules/?limit=1", "", http.StatusOK)
	if env.Pagination == nil {
		t.Fatal("expected pagination")
	}
	if env.Pagination.Total != 2 || !env.Pagination.HasMore {
		t.Errorf("pagination = %+v, want total 2 with more", env.Pagination)
	}
	var data []model.ScheduleSummary
	json.Unmarshal(env.Data, &data)
	if len(data) != 1 {
		t.Fatalf("len = %d, want 1", len(data))
	}

	env = do(t, srv, "GET", "/api/v1/schedules/?status=FEASIBLE", "", http.StatusOK)
	if env.Pagination.Total != 0 {
		t.Errorf("FEASIBLE total = %d, want 0", env.Pagination.Total)
	}
}

func TestGetSchedule(t *testing.T) {
	srv := testServer(t)
	created := decodeSchedule(t, do(t, srv, "POST", "/api/v1/schedules/", exampleBody, http.StatusCreated))

	got := decodeSchedule(t, do(t, srv, "GET", "/api/v1/schedules/"+created.ID, "", http.StatusOK))
	if got.ID != created.ID || got.Makespan != 8 || len(got.Rows) != 6 {
		t.Errorf("got %+v", got.Schedule)
	}

	anchored := decodeSchedule(t, do(t, srv, "GET", "/api/v1/schedules/"+created.ID+"?anchor=2024-05-01T06:00:00Z", "", http.StatusOK))
	if anchored.Rows[0].PlannedStart == nil {
		t.Error("expected planned times with ?anchor")
	}

	do(t, srv, "GET", "/api/v1/schedules/"+created.ID+"?anchor=tomorrow", "", http.StatusBadRequest)
}

func TestGetSchedule_NotFound(t *testing.T) {
	srv := testServer(t)
	env := do(t, srv, "GET", "/api/v1/schedules/sch_missing", "", http.StatusNotFound)
	if env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("error = %v, want NOT_FOUND", env.Error)
	}
}

func TestDeleteSchedule(t *testing.T) {
	srv := testServer(t)
	created := decodeSchedule(t, do(t, srv, "POST", "/api/v1/schedules/", exampleBody, http.StatusCreated))

	do(t, srv, "DELETE", "/api/v1/schedules/"+created.ID, "", http.StatusOK)
	do(t, srv, "GET", "/api/v1/schedules/"+created.ID, "", http.StatusNotFound)
	do(t, srv, "DELETE", "/api/v1/schedules/"+created.ID, "", http.StatusNotFound)

	// The request is still known, so the next POST solves again.
	again := decodeSchedule(t, do(t, srv, "POST", "/api/v1/schedules/", exampleBody, http.StatusCreated))
	if again.RequestID != created.RequestID {
		t.Errorf("request id = %q, want %q", again.RequestID, created.RequestID)
	}
}

func TestExportRows(t *testing.T) {
	srv := testServer(t)
	created := decodeSchedule(t, do(t, srv, "POST", "/api/v1/schedules/", exampleBody, http.StatusCreated))

	req := httptest.NewRequest("GET", "/api/v1/schedules/"+created.ID+"/rows?format=csv", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("csv status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("csv lines = %d, want 7", len(lines))
	}
	if lines[0] != "job_id,job_name,id,task_name,machine,start,end" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `0,,"job(0, 0)",,1,0,2` {
		t.Errorf("first row = %q", lines[1])
	}

	env := do(t, srv, "GET", "/api/v1/schedules/"+created.ID+"/rows?format=json", "", http.StatusOK)
	var rows []model.Row
	json.Unmarshal(env.Data, &rows)
	if len(rows) != 6 {
		t.Errorf("json rows = %d, want 6", len(rows))
	}

	do(t, srv, "GET", "/api/v1/schedules/"+created.ID+"/rows?format=xml", "", http.StatusBadRequest)
}

func TestResponseEnvelope_RequestID(t *testing.T) {
	srv := testServer(t)
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var env envelope
	json.Unmarshal(w.Body.Bytes(), &env)
	if !strings.HasPrefix(env.RequestID, "http_") {
		t.Errorf("request_id = %q, want http_ prefix", env.RequestID)
	}
	if w.Header().Get("X-Request-ID") != env.RequestID {
		t.Errorf("X-Request-ID = %q, want %q", w.Header().Get("X-Request-ID"), env.RequestID)
	}
	if env.Timestamp == "" {
		t.Error("timestamp is empty")
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[model.ErrorCode]int{
		model.ErrValidation:   http.StatusBadRequest,
		model.ErrNotFound:     http.StatusNotFound,
		model.ErrSolverFailed: http.StatusUnprocessableEntity,
		model.ErrNotFitted:    http.StatusConflict,
		model.ErrInternal:     http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := statusFor(code); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", code, got, want)
		}
	}
}
