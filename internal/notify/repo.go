package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"edupulse/internal/model"
)

// Repository persists notifications.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// InsertOnce stores n unless the teacher already has a notification of that kind for that day.
// It reports whether a row was written.
func (r *Repository) InsertOnce(ctx context.Context, n *model.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO notifications (id, teacher_id, kind, day, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (teacher_id, kind, day) DO NOTHING
	`), n.ID, n.TeacherID, n.Kind, n.Day, n.Message, n.CreatedAt)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows == 1, err
}

// ListSince returns the teacher's notifications from day onwards, newest first.
func (r *Repository) ListSince(ctx context.Context, teacherID string, day model.Date) ([]model.Notification, error) {
	out := []model.Notification{}
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT id, teacher_id, kind, day, message, created_at
		FROM notifications WHERE teacher_id = ? AND day >= ?
		ORDER BY day DESC, created_at DESC
	`), teacherID, day)
	return out, err
}

// StudentIDs returns the id of every student of every teacher.
func (r *Repository) StudentIDs(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `SELECT id FROM students`)
	return ids, err
}
