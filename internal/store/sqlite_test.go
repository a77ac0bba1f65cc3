package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/me/goshop/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleRequest() *model.Request {
	jobs := []model.Job{
		{ID: 0, Name: "A", Tasks: []model.Task{
			{ID: 0, Machine: "1", Duration: 2},
			{ID: 1, Machine: "2", Duration: 2},
		}},
		{ID: 1, Name: "B", Tasks: []model.Task{
			{ID: 0, Name: "heat", Machine: "2", Duration: 3},
		}},
	}
	return &model.Request{
		ID:          "req_test-1",
		Name:        "sample",
		Jobs:        jobs,
		ContentHash: model.ComputeContentHash(jobs),
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func sampleSchedule(requestID string) *model.Schedule {
	return &model.Schedule{
		ID:        "sch_test-1",
		RequestID: requestID,
		Name:      "sample",
		Status:    model.SolveStatusOptimal,
		Makespan:  7,
		Stats:     model.SolverStats{Branches: 12, Pruned: 3, Workers: 1, WallTime: time.Millisecond},
		Rows: []model.Row{
			{JobID: 0, JobName: "A", ID: "job(0, 0)", Machine: "1", Start: 0, End: 2},
			{JobID: 0, JobName: "A", ID: "job(0, 1)", Machine: "2", Start: 2, End: 4},
			{JobID: 1, JobName: "B", ID: "job(1, 0)", TaskName: "heat", Machine: "2", Start: 4, End: 7},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

// --- Migration tests ---

func TestMigrate_Idempotent(t *testing.T) {
	st := testStore(t)
	// Migrate a second time; should not error.
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestMigrate_AddsColumns(t *testing.T) {
	st := testStore(t)
	for _, col := range []string{"anchor", "time_unit"} {
		ok, err := columnExists(context.Background(), st.db, "schedules", col)
		if err != nil {
			t.Fatalf("columnExists(%s): %v", col, err)
		}
		if !ok {
			t.Errorf("column %s missing after migrate", col)
		}
	}
}

// --- Request tests ---

func TestCreateAndGetRequest(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	req := sampleRequest()

	if err := st.CreateRequest(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("got nil request")
	}
	if got.Name != "sample" {
		t.Errorf("name = %q, want sample", got.Name)
	}
	if len(got.Jobs) != 2 || len(got.Jobs[0].Tasks) != 2 {
		t.Fatalf("jobs not preserved: %+v", got.Jobs)
	}
	if got.Jobs[1].Tasks[0].Name != "heat" || got.Jobs[1].Tasks[0].Machine != "2" {
		t.Errorf("task = %+v", got.Jobs[1].Tasks[0])
	}
	if !got.CreatedAt.Equal(req.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, req.CreatedAt)
	}
	if model.ComputeContentHash(got.Jobs) != req.ContentHash {
		t.Error("content hash changed across a round trip")
	}
}

func TestGetRequestByHash(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	req := sampleRequest()
	st.CreateRequest(ctx, req)

	got, err := st.GetRequestByHash(ctx, req.ContentHash)
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if got == nil || got.ID != req.ID {
		t.Errorf("got %+v, want %s", got, req.ID)
	}

	got, err = st.GetRequestByHash(ctx, "nohash")
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestCreateRequest_DuplicateHash(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	st.CreateRequest(ctx, sampleRequest())

	dup := sampleRequest()
	dup.ID = "req_test-2"
	if err := st.CreateRequest(ctx, dup); err == nil {
		t.Error("expected unique constraint error for duplicate content hash")
	}
}

func TestGetRequest_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetRequest(context.Background(), "req_nonexistent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

// --- Schedule tests ---

func TestCreateAndGetSchedule(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	req := sampleRequest()
	st.CreateRequest(ctx, req)

	sched := sampleSchedule(req.ID)
	if err := st.CreateSchedule(ctx, sched); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.GetSchedule(ctx, sched.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("got nil schedule")
	}
	if got.Status != model.SolveStatusOptimal {
		t.Errorf("status = %q, want OPTIMAL", got.Status)
	}
	if got.Makespan != 7 {
		t.Errorf("makespan = %d, want 7", got.Makespan)
	}
	if got.Stats.Branches != 12 || got.Stats.WallTime != time.Millisecond {
		t.Errorf("stats = %+v", got.Stats)
	}
	if len(got.Rows) != 3 || got.Rows[2].ID != "job(1, 0)" || got.Rows[2].TaskName != "heat" {
		t.Errorf("rows = %+v", got.Rows)
	}
	if got.Anchor != nil {
		t.Errorf("anchor = %v, want nil", got.Anchor)
	}
}

func TestCreateSchedule_Anchored(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	req := sampleRequest()
	st.CreateRequest(ctx, req)

	anchor := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	sched := sampleSchedule(req.ID).WithAnchor(anchor, 30*time.Minute)
	if err := st.CreateSchedule(ctx, sched); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := st.GetSchedule(ctx, sched.ID)
	if got.Anchor == nil || !got.Anchor.Equal(anchor) {
		t.Errorf("anchor = %v, want %v", got.Anchor, anchor)
	}
	if got.TimeUnit != "30m0s" {
		t.Errorf("time_unit = %q, want 30m0s", got.TimeUnit)
	}
	want := anchor.Add(7 * 30 * time.Minute)
	if end := got.Rows[2].PlannedEnd; end == nil || !end.Equal(want) {
		t.Errorf("planned end = %v, want %v", end, want)
	}
}

func TestCreateSchedule_RequiresRequest(t *testing.T) {
	st := testStore(t)
	if err := st.CreateSchedule(context.Background(), sampleSchedule("req_missing")); err == nil {
		t.Error("expected foreign key error")
	}
}

func TestCreateSchedule_NilRows(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	req := sampleRequest()
	st.CreateRequest(ctx, req)

	sched := sampleSchedule(req.ID)
	sched.Rows = nil
	if err := st.CreateSchedule(ctx, sched); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, _ := st.GetSchedule(ctx, sched.ID)
	if got.Rows == nil || len(got.Rows) != 0 {
		t.Errorf("rows = %#v, want empty slice", got.Rows)
	}
}

func TestGetScheduleByRequest(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	req := sampleRequest()
	st.CreateRequest(ctx, req)

	older := sampleSchedule(req.ID)
	older.ID = "sch_old"
	older.CreatedAt = time.Now().UTC().Add(-time.Minute)
	newer := sampleSchedule(req.ID)
	newer.ID = "sch_new"
	st.CreateSchedule(ctx, older)
	st.CreateSchedule(ctx, newer)

	got, err := st.GetScheduleByRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get by request: %v", err)
	}
	if got == nil || got.ID != "sch_new" {
		t.Errorf("got %v, want sch_new", got)
	}

	got, err = st.GetScheduleByRequest(ctx, "req_other")
	if err != nil || got != nil {
		t.Errorf("got %v, %v, want nil, nil", got, err)
	}
}

func TestGetSchedule_NotFound(t *testing.T) {
	st := testStore(t)
	got, err := st.GetSchedule(context.Background(), "sch_nonexistent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListSchedules_Empty(t *testing.T) {
	st := testStore(t)
	schedules, total, err := st.ListSchedules(context.Background(), model.DefaultListOptions())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 {
		t.Errorf("total = %d, want 0", total)
	}
	if len(schedules) != 0 {
		t.Errorf("len = %d, want 0", len(schedules))
	}
}

func TestListSchedules_PaginationAndStatus(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	req := sampleRequest()
	st.CreateRequest(ctx, req)

	// Create 3 schedules with staggered timestamps.
	for i := 0; i < 3; i++ {
		sched := sampleSchedule(req.ID)
		sched.ID = fmt.Sprintf("sch_test-%d", i)
		sched.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if i == 1 {
			sched.Status = model.SolveStatusFeasible
		}
		if err := st.CreateSchedule(ctx, sched); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	schedules, total, err := st.ListSchedules(ctx, model.ListOptions{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(schedules) != 2 {
		t.Errorf("page 1 len = %d, want 2", len(schedules))
	}
	// Newest first.
	if schedules[0].ID != "sch_test-2" {
		t.Errorf("first = %q, want sch_test-2 (newest first)", schedules[0].ID)
	}

	schedules, _, err = st.ListSchedules(ctx, model.ListOptions{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(schedules) != 1 {
		t.Errorf("page 2 len = %d, want 1", len(schedules))
	}

	schedules, total, err = st.ListSchedules(ctx, model.ListOptions{Limit: 10, Status: string(model.SolveStatusFeasible)})
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if total != 1 || len(schedules) != 1 || schedules[0].ID != "sch_test-1" {
		t.Errorf("status filter = %d %v, want only sch_test-1", total, schedules)
	}
}

func TestDeleteSchedule(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	req := sampleRequest()
	st.CreateRequest(ctx, req)
	sched := sampleSchedule(req.ID)
	st.CreateSchedule(ctx, sched)

	if err := st.DeleteSchedule(ctx, sched.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := st.GetSchedule(ctx, sched.ID)
	if got != nil {
		t.Error("expected nil after delete")
	}
	if err := st.DeleteSchedule(ctx, sched.ID); err == nil {
		t.Error("expected error deleting twice")
	}
}
