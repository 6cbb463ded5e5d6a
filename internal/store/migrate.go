package store

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		security_hash TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token      TEXT PRIMARY KEY,
		teacher_id UUID NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id                    UUID PRIMARY KEY,
		owner_id              UUID NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		name                  TEXT NOT NULL,
		index_number          TEXT NOT NULL,
		grade                 SMALLINT NOT NULL CHECK (grade BETWEEN 1 AND 13),
		section               TEXT,
		specialty             TEXT,
		status                TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'at_risk', 'inactive')),
		photo_url             TEXT,
		attendance_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (owner_id, index_number)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id             UUID PRIMARY KEY,
		student_id     UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		date           DATE NOT NULL,
		status         SMALLINT NOT NULL CHECK (status IN (0, 1)),
		absence_reason TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (student_id, date),
		CHECK (status = 0 OR absence_reason IS NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date)`,
	`CREATE TABLE IF NOT EXISTS photo_jobs (
		id         UUID PRIMARY KEY,
		owner_id   UUID NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		date       DATE NOT NULL,
		image_url  TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		result     TEXT,
		error      TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         UUID PRIMARY KEY,
		teacher_id UUID NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		kind       TEXT NOT NULL,
		day        DATE NOT NULL,
		message    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (teacher_id, kind, day)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		security_hash TEXT,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token      TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		expires_at DATETIME NOT NULL,
		revoked    BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id                    TEXT PRIMARY KEY,
		owner_id              TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		name                  TEXT NOT NULL,
		index_number          TEXT NOT NULL,
		grade                 INTEGER NOT NULL CHECK (grade BETWEEN 1 AND 13),
		section               TEXT,
		specialty             TEXT,
		status                TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'at_risk', 'inactive')),
		photo_url             TEXT,
		attendance_percentage REAL NOT NULL DEFAULT 0,
		created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (owner_id, index_number)
	)`,
	`CREATE TABLE IF NOT EXISTS attendance (
		id             TEXT PRIMARY KEY,
		student_id     TEXT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		date           DATE NOT NULL,
		status         INTEGER NOT NULL CHECK (status IN (0, 1)),
		absence_reason TEXT,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (student_id, date),
		CHECK (status = 0 OR absence_reason IS NULL)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance(date)`,
	`CREATE TABLE IF NOT EXISTS photo_jobs (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		date       DATE NOT NULL,
		image_url  TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'pending',
		result     TEXT,
		error      TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		kind       TEXT NOT NULL,
		day        DATE NOT NULL,
		message    TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (teacher_id, kind, day)
	)`,
}

// Migrate creates the schema if it does not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	schema := postgresSchema
	if d.Driver == DriverSQLite {
		schema = sqliteSchema
	}
	for i, stmt := range schema {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
