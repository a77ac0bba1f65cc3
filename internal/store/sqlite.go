package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/goshop/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// --- Requests ---

func (s *SQLiteStore) CreateRequest(ctx context.Context, req *model.Request) error {
	s.logger.Debug("sql", "op", "insert", "table", "requests", "id", req.ID)

	jobs := req.Jobs
	if jobs == nil {
		jobs = []model.Job{}
	}
	jobsJSON, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("marshal jobs: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO requests (id, name, content_hash, jobs, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.Name, req.ContentHash, string(jobsJSON),
		req.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	s.logger.Debug("sql", "op", "select", "table", "requests", "id", id)
	return s.getRequest(ctx, `WHERE id = ?`, id)
}

func (s *SQLiteStore) GetRequestByHash(ctx context.Context, hash string) (*model.Request, error) {
	s.logger.Debug("sql", "op", "select_by_hash", "table", "requests", "hash", hash)
	return s.getRequest(ctx, `WHERE content_hash = ?`, hash)
}

func (s *SQLiteStore) getRequest(ctx context.Context, where string, arg any) (*model.Request, error) {
	var req model.Request
	var jobsJSON, createdAt string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, content_hash, jobs, created_at FROM requests `+where, arg,
	).Scan(&req.ID, &req.Name, &req.ContentHash, &jobsJSON, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(jobsJSON), &req.Jobs); err != nil {
		return nil, fmt.Errorf("unmarshal jobs: %w", err)
	}
	req.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &req, nil
}

// --- Schedules ---

const scheduleColumns = `id, request_id, name, status, makespan, anchor, time_unit, stats, result_rows, created_at`

func (s *SQLiteStore) CreateSchedule(ctx context.Context, sched *model.Schedule) error {
	s.logger.Debug("sql", "op", "insert", "table", "schedules", "id", sched.ID)

	statsJSON, err := json.Marshal(sched.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	rows := sched.Rows
	if rows == nil {
		rows = []model.Row{}
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}

	var anchor *string
	if sched.Anchor != nil {
		a := sched.Anchor.Format(time.RFC3339Nano)
		anchor = &a
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schedules (`+scheduleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.RequestID, sched.Name, string(sched.Status), sched.Makespan,
		anchor, sched.TimeUnit, string(statsJSON), string(rowsJSON),
		sched.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	s.logger.Debug("sql", "op", "select", "table", "schedules", "id", id)

	sched, err := scanSchedule(s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sched, err
}

// GetScheduleByRequest returns the most recent schedule stored for a request.
func (s *SQLiteStore) GetScheduleByRequest(ctx context.Context, requestID string) (*model.Schedule, error) {
	s.logger.Debug("sql", "op", "select_by_request", "table", "schedules", "request_id", requestID)

	sched, err := scanSchedule(s.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE request_id = ?
		 ORDER BY created_at DESC LIMIT 1`, requestID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sched, err
}

func (s *SQLiteStore) ListSchedules(ctx context.Context, opts model.ListOptions) ([]*model.Schedule, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "schedules", "limit", opts.Limit, "offset", opts.Offset, "status", opts.Status)
	opts.Clamp()

	where := ""
	var args []any
	if opts.Status != "" {
		where = " WHERE status = ?"
		args = append(args, opts.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var schedules []*model.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		schedules = append(schedules, sched)
	}
	return schedules, total, rows.Err()
}

func (s *SQLiteStore) DeleteSchedule(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "schedules", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("schedule %s not found", id)
	}
	return nil
}

func scanSchedule(row scanner) (*model.Schedule, error) {
	var sched model.Schedule
	var status, statsJSON, rowsJSON, createdAt string
	var anchor *string

	if err := row.Scan(&sched.ID, &sched.RequestID, &sched.Name, &status, &sched.Makespan,
		&anchor, &sched.TimeUnit, &statsJSON, &rowsJSON, &createdAt); err != nil {
		return nil, err
	}

	sched.Status = model.SolveStatus(status)
	if err := json.Unmarshal([]byte(statsJSON), &sched.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &sched.Rows); err != nil {
		return nil, fmt.Errorf("unmarshal rows: %w", err)
	}
	if anchor != nil {
		t, _ := time.Parse(time.RFC3339Nano, *anchor)
		sched.Anchor = &t
	}
	sched.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &sched, nil
}
