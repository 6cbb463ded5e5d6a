package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"edupulse/internal/model"
	"edupulse/internal/store"
)

const recordColumns = `a.id, a.student_id, a.date, a.status, a.absence_reason, a.created_at, a.updated_at`

// StudentTotal is the present/total count of one student over all stored records.
type StudentTotal struct {
	StudentID string `db:"student_id"`
	Present   int    `db:"present"`
	Total     int    `db:"total"`
}

// Repository persists attendance records and photo jobs.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes the record keyed on (student_id, date). The last write wins.
// rec.ID is set to the id of the stored row, which is the existing one on conflict.
func (r *Repository) Upsert(ctx context.Context, rec *model.AttendanceRecord) error {
	if rec.Status == model.Present {
		rec.AbsenceReason = nil
	}
	now := time.Now().UTC()
	var id string
	err := r.db.GetContext(ctx, &id, r.db.Rebind(`
		INSERT INTO attendance (id, student_id, date, status, absence_reason, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, date) DO UPDATE SET
			status = excluded.status,
			absence_reason = excluded.absence_reason,
			updated_at = excluded.updated_at
		RETURNING id
	`), uuid.NewString(), rec.StudentID, rec.Date, rec.Status, rec.AbsenceReason, now, now)
	if err != nil {
		return err
	}
	rec.ID = id
	rec.UpdatedAt = now
	return nil
}

// Get returns the stored record of one student on one date.
func (r *Repository) Get(ctx context.Context, studentID string, date model.Date) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(`SELECT `+recordColumns+` FROM attendance a WHERE a.student_id = ? AND a.date = ?`), studentID, date)
	if err != nil {
		return nil, store.NoRows(err)
	}
	return &rec, nil
}

// ListByDateRange returns the owner's records with start <= date <= end, ordered by date then student.
// A non-empty studentID narrows the result to one student.
func (r *Repository) ListByDateRange(ctx context.Context, ownerID string, start, end model.Date, studentID string) ([]model.AttendanceRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM attendance a JOIN students s ON s.id = a.student_id
		WHERE s.owner_id = ? AND a.date >= ? AND a.date <= ?`
	args := []any{ownerID, start, end}
	if studentID != "" {
		query += ` AND a.student_id = ?`
		args = append(args, studentID)
	}
	query += ` ORDER BY a.date, a.student_id`

	records := []model.AttendanceRecord{}
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return records, nil
}

// ListRecent returns up to limit of the owner's records, newest date first.
func (r *Repository) ListRecent(ctx context.Context, ownerID string, limit int) ([]model.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	records := []model.AttendanceRecord{}
	err := r.db.SelectContext(ctx, &records, r.db.Rebind(`
		SELECT `+recordColumns+`
		FROM attendance a JOIN students s ON s.id = a.student_id
		WHERE s.owner_id = ?
		ORDER BY a.date DESC, a.updated_at DESC
		LIMIT ?
	`), ownerID, limit)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CountOnDate returns how many of the owner's students have a record on date.
func (r *Repository) CountOnDate(ctx context.Context, ownerID string, date model.Date) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`
		SELECT COUNT(*) FROM attendance a JOIN students s ON s.id = a.student_id
		WHERE s.owner_id = ? AND a.date = ?
	`), ownerID, date)
	return n, err
}

// Totals returns per-student present and total counts across every stored record.
func (r *Repository) Totals(ctx context.Context) ([]StudentTotal, error) {
	totals := []StudentTotal{}
	err := r.db.SelectContext(ctx, &totals, `
		SELECT student_id,
			SUM(CASE WHEN status = 1 THEN 1 ELSE 0 END) AS present,
			COUNT(*) AS total
		FROM attendance
		GROUP BY student_id
	`)
	return totals, err
}

const jobColumns = `id, owner_id, date, image_url, status, result, error, created_at, updated_at`

// InsertJob writes a new photo job in the pending state.
func (r *Repository) InsertJob(ctx context.Context, job model.PhotoJob) (model.PhotoJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobPending
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO photo_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), job.ID, job.OwnerID, job.Date, job.ImageURL, job.Status, job.Result, job.Error, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return model.PhotoJob{}, err
	}
	return job, nil
}

// GetJob returns a job by id. An empty ownerID skips tenant scoping (worker use).
func (r *Repository) GetJob(ctx context.Context, ownerID, id string) (*model.PhotoJob, error) {
	query := `SELECT ` + jobColumns + ` FROM photo_jobs WHERE id = ?`
	args := []any{id}
	if ownerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	var job model.PhotoJob
	if err := r.db.GetContext(ctx, &job, r.db.Rebind(query), args...); err != nil {
		return nil, store.NoRows(err)
	}
	return &job, nil
}

// ClaimJob moves a pending job to processing. It reports false when another worker got there first.
func (r *Repository) ClaimJob(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE photo_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`), model.JobProcessing, time.Now().UTC(), id, model.JobPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FinishJob records the outcome of a processed job.
func (r *Repository) FinishJob(ctx context.Context, id, status string, result, errMsg *string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE photo_jobs SET status = ?, result = ?, error = ?, updated_at = ? WHERE id = ?
	`), status, result, errMsg, time.Now().UTC(), id)
	return err
}
