package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"edupulse/internal/model"
	"edupulse/internal/store"
)

// Repository persists teacher accounts and refresh tokens.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// CreateTeacher inserts an account. A taken email returns ErrEmailTaken.
func (r *Repository) CreateTeacher(ctx context.Context, t *model.Teacher) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO teachers (id, email, name, password_hash, security_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), t.ID, t.Email, t.Name, t.PasswordHash, t.SecurityHash, t.CreatedAt)
	if store.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

// TeacherByEmail looks an account up by its (lower-cased) email.
func (r *Repository) TeacherByEmail(ctx context.Context, email string) (*model.Teacher, error) {
	var t model.Teacher
	err := r.db.GetContext(ctx, &t, r.db.Rebind(`
		SELECT id, email, name, password_hash, security_hash, created_at FROM teachers WHERE email = ?
	`), email)
	if err != nil {
		return nil, store.NoRows(err)
	}
	return &t, nil
}

// TeacherByID looks an account up by id.
func (r *Repository) TeacherByID(ctx context.Context, id string) (*model.Teacher, error) {
	var t model.Teacher
	err := r.db.GetContext(ctx, &t, r.db.Rebind(`
		SELECT id, email, name, password_hash, security_hash, created_at FROM teachers WHERE id = ?
	`), id)
	if err != nil {
		return nil, store.NoRows(err)
	}
	return &t, nil
}

// ListTeachers returns every account, oldest first.
func (r *Repository) ListTeachers(ctx context.Context) ([]model.Teacher, error) {
	teachers := []model.Teacher{}
	err := r.db.SelectContext(ctx, &teachers, `
		SELECT id, email, name, password_hash, security_hash, created_at FROM teachers ORDER BY created_at
	`)
	return teachers, err
}

// SetSecurityHash stores the bcrypt hash of the security password.
func (r *Repository) SetSecurityHash(ctx context.Context, teacherID, hash string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE teachers SET security_hash = ? WHERE id = ?`), hash, teacherID)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, teacherID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO refresh_tokens (token, teacher_id, expires_at, revoked)
		VALUES (?, ?, ?, ?)
	`), token, teacherID, expiresAt.UTC(), false)
	return err
}

// RevokeRefreshToken marks a live token revoked. It reports false when the token was unknown,
// already revoked or expired, so a token can be rotated only once.
func (r *Repository) RevokeRefreshToken(ctx context.Context, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE refresh_tokens SET revoked = ? WHERE token = ? AND revoked = ? AND expires_at > ?
	`), true, token, false, time.Now().UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
