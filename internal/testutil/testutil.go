// Package testutil opens throwaway databases and seeds rows for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"edupulse/internal/model"
	"edupulse/internal/store"
)

// NewDB opens a migrated in-memory SQLite database that is closed when t ends.
func NewDB(t *testing.T) *store.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.NewDB(ctx, store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// CreateTeacher inserts an account with an unusable password hash.
func CreateTeacher(t *testing.T, db *store.DB, email string) model.Teacher {
	t.Helper()
	teacher := model.Teacher{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         email,
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	_, err := db.Client.Exec(db.Client.Rebind(`
		INSERT INTO teachers (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)
	`), teacher.ID, teacher.Email, teacher.Name, teacher.PasswordHash, teacher.CreatedAt)
	require.NoError(t, err)
	return teacher
}

// CreateStudent inserts an active student. An empty section is stored as NULL.
func CreateStudent(t *testing.T, db *store.DB, ownerID, name, index string, grade int, section string) model.Student {
	t.Helper()
	now := time.Now().UTC()
	st := model.Student{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		IndexNumber: index,
		Grade:       grade,
		Status:      model.StudentActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if section != "" {
		st.Section = &section
	}
	_, err := db.Client.Exec(db.Client.Rebind(`
		INSERT INTO students (id, owner_id, name, index_number, grade, section, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), st.ID, st.OwnerID, st.Name, st.IndexNumber, st.Grade, st.Section, st.Status, st.CreatedAt, st.UpdatedAt)
	require.NoError(t, err)
	return st
}

// SetPercentage overwrites a student's cached attendance percentage.
func SetPercentage(t *testing.T, db *store.DB, studentID string, pct float64) {
	t.Helper()
	_, err := db.Client.Exec(db.Client.Rebind(`UPDATE students SET attendance_percentage = ? WHERE id = ?`), pct, studentID)
	require.NoError(t, err)
}

// Mark writes one attendance record directly.
func Mark(t *testing.T, db *store.DB, studentID string, date model.Date, status int) {
	t.Helper()
	now := time.Now().UTC()
	var reason *string
	if status == model.Absent {
		r := "sick"
		reason = &r
	}
	_, err := db.Client.Exec(db.Client.Rebind(`
		INSERT INTO attendance (id, student_id, date, status, absence_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), uuid.NewString(), studentID, date, status, reason, now, now)
	require.NoError(t, err)
}
