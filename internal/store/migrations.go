package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// schema holds DDL understood by both SQLite and PostgreSQL. Timestamps are RFC3339 text
var schema = []string{
	`CREATE TABLE IF NOT EXISTS timetable_runs (
		id           TEXT PRIMARY KEY,
		strategy     TEXT NOT NULL,
		status       TEXT NOT NULL,
		input_digest TEXT NOT NULL,
		divisions    INTEGER NOT NULL,
		failures     INTEGER NOT NULL,
		result       TEXT NOT NULL,
		duration_ms  BIGINT NOT NULL,
		created_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_runs_created_at ON timetable_runs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_runs_input_digest ON timetable_runs(input_digest)`,
}

// Migrate executes the schema statements; every statement is idempotent
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
