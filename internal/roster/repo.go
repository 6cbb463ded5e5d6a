package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"edupulse/internal/model"
	"edupulse/internal/store"
)

const studentColumns = `id, owner_id, name, index_number, grade, section, specialty, status, photo_url,
	attendance_percentage, created_at, updated_at`

// Filter narrows a roster listing. Zero values mean "any".
type Filter struct {
	Grade   int
	Section string
	Status  string
	Search  string
}

// Patch is a partial student update; nil fields are left untouched.
type Patch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	IndexNumber *string `json:"index_number" validate:"omitempty,min=1,max=32"`
	Grade       *int    `json:"grade" validate:"omitempty,min=1,max=13"`
	Section     *string `json:"section" validate:"omitempty,max=8"`
	Specialty   *string `json:"specialty" validate:"omitempty,max=100"`
	Status      *string `json:"status" validate:"omitempty,oneof=active at_risk inactive"`
}

// Repository persists students in the relational store, always scoped by owner.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a repo.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// List returns the owner's students ordered by name.
func (r *Repository) List(ctx context.Context, ownerID string, f Filter) ([]model.Student, error) {
	clauses := []string{"owner_id = ?"}
	args := []any{ownerID}
	if f.Grade > 0 {
		clauses = append(clauses, "grade = ?")
		args = append(args, f.Grade)
	}
	if f.Section != "" {
		clauses = append(clauses, "section = ?")
		args = append(args, f.Section)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		clauses = append(clauses, "(LOWER(name) LIKE ? OR LOWER(index_number) LIKE ?)")
		args = append(args, like, like)
	}
	query := `SELECT ` + studentColumns + ` FROM students WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY name, index_number`

	students := []model.Student{}
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return students, nil
}

// Get returns one of the owner's students.
func (r *Repository) Get(ctx context.Context, ownerID, id string) (*model.Student, error) {
	var st model.Student
	err := r.db.GetContext(ctx, &st, r.db.Rebind(`SELECT `+studentColumns+` FROM students WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return nil, store.NoRows(err)
	}
	return &st, nil
}

// Count returns the size of the owner's roster.
func (r *Repository) Count(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM students WHERE owner_id = ?`), ownerID)
	return n, err
}

// Insert writes a new student, filling id and timestamps.
func (r *Repository) Insert(ctx context.Context, st *model.Student) error {
	prepareInsert(st, time.Now().UTC())
	return insertStudent(ctx, r.db, st)
}

// BulkInsert writes all students in one transaction; any failure rolls the whole batch back.
func (r *Repository) BulkInsert(ctx context.Context, students []model.Student) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for i := range students {
		prepareInsert(&students[i], now)
		if err := insertStudent(ctx, tx, &students[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Update applies a partial update and returns the stored row.
func (r *Repository) Update(ctx context.Context, ownerID, id string, p Patch) (*model.Student, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", strings.TrimSpace(*p.Name))
	}
	if p.IndexNumber != nil {
		add("index_number", strings.TrimSpace(*p.IndexNumber))
	}
	if p.Grade != nil {
		add("grade", *p.Grade)
	}
	if p.Section != nil {
		add("section", nullIfEmpty(*p.Section))
	}
	if p.Specialty != nil {
		add("specialty", nullIfEmpty(*p.Specialty))
	}
	if p.Status != nil {
		add("status", *p.Status)
	}
	if len(sets) == 0 {
		return r.Get(ctx, ownerID, id)
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id, ownerID)

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE students SET `+strings.Join(sets, ", ")+` WHERE id = ? AND owner_id = ?`), args...)
	if store.IsUniqueViolation(err) {
		return nil, ErrDuplicateIndex
	}
	if err != nil {
		return nil, err
	}
	if err := expectRow(res); err != nil {
		return nil, err
	}
	return r.Get(ctx, ownerID, id)
}

// SetPhoto stores the public photo URL of a student.
func (r *Repository) SetPhoto(ctx context.Context, ownerID, id, url string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE students SET photo_url = ?, updated_at = ? WHERE id = ? AND owner_id = ?`),
		url, time.Now().UTC(), id, ownerID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// Delete hard-deletes a student; attendance rows go with it.
func (r *Repository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM students WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// SetPercentages overwrites the cached attendance_percentage of the given students.
func (r *Repository) SetPercentages(ctx context.Context, pct map[string]float64) error {
	if len(pct) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt := tx.Rebind(`UPDATE students SET attendance_percentage = ? WHERE id = ?`)
	for id, v := range pct {
		if _, err := tx.ExecContext(ctx, stmt, v, id); err != nil {
			return fmt.Errorf("set percentage %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func prepareInsert(st *model.Student, now time.Time) {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.Status == "" {
		st.Status = model.StudentActive
	}
	st.CreatedAt = now
	st.UpdatedAt = now
}

func insertStudent(ctx context.Context, db sqlx.ExtContext, st *model.Student) error {
	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO students (`+studentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), st.ID, st.OwnerID, st.Name, st.IndexNumber, st.Grade, st.Section, st.Specialty, st.Status, st.PhotoURL,
		st.AttendancePercentage, st.CreatedAt, st.UpdatedAt)
	if store.IsUniqueViolation(err) {
		return fmt.Errorf("%w: index number %s", ErrDuplicateIndex, st.IndexNumber)
	}
	return err
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectRow(res rowsAffected) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
