package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS requests (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		jobs         TEXT NOT NULL,
		created_at   TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS schedules (
		id          TEXT PRIMARY KEY,
		request_id  TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
		name        TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		makespan    INTEGER NOT NULL,
		stats       TEXT NOT NULL DEFAULT '{}',
		result_rows TEXT NOT NULL DEFAULT '[]',
		created_at  TEXT NOT NULL
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_content_hash ON requests(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_request_id ON schedules(request_id)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_status ON schedules(status)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "schedules",
		column:   "anchor",
		alterSQL: "ALTER TABLE schedules ADD COLUMN anchor TEXT",
	},
	{
		table:    "schedules",
		column:   "time_unit",
		alterSQL: "ALTER TABLE schedules ADD COLUMN time_unit TEXT NOT NULL DEFAULT ''",
	},
	{
		table:    "schedules",
		column:   "created_at",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_schedules_created_at ON schedules(created_at)",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if alter.alterSQL != "" {
			if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
				return err
			}
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
