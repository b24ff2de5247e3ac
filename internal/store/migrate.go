package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema statements applied idempotently at startup, one per Exec (pgx's
// extended protocol takes a single statement at a time). The unique index on
// (student_id, activity_id) is the durable guarantee behind the
// at-most-one-record-per-pair invariant; the application-level check in the
// attendance service is advisory only.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS staff_accounts (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT UNIQUE NOT NULL,
		email         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id            BIGSERIAL PRIMARY KEY,
		student_id    TEXT UNIQUE NOT NULL,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		email         TEXT UNIQUE NOT NULL,
		phone         TEXT NOT NULL DEFAULT '',
		date_of_birth DATE,
		qr_data       TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS activities (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location    TEXT NOT NULL DEFAULT '',
		start_time  TIMESTAMPTZ NOT NULL,
		end_time    TIMESTAMPTZ NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_by  BIGINT NOT NULL REFERENCES staff_accounts(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id          BIGSERIAL PRIMARY KEY,
		student_id  BIGINT NOT NULL REFERENCES students(id),
		activity_id BIGINT NOT NULL REFERENCES activities(id),
		scanned_by  BIGINT NOT NULL REFERENCES staff_accounts(id),
		timestamp   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_student_activity
		ON attendance_records(student_id, activity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_timestamp
		ON attendance_records(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_activities_window
		ON activities(start_time, end_time)`,
}

// Migrate creates the schema when missing. Safe to run on every startup.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
