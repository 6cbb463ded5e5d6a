package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
var ErrInvalidDate = errors.New("invalid date format (use YYYY-MM-DD)")

// Date is a calendar date without time of day or zone.
type Date string

// ParseDate validates s as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return "", ErrInvalidDate
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", ErrInvalidDate
	}
	return Date(s), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// Time returns midnight UTC of the date. Invalid dates yield the zero time.
func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

// Weekday returns the weekday of the calendar date.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays shifts the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) String() string { return string(d) }

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return string(d), nil
}

// Scan implements sql.Scanner. Drivers hand dates back either as time.Time or as text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	case nil:
		*d = ""
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

func (d *Date) scanText(s string) error {
	if len(s) < len(DateLayout) {
		return fmt.Errorf("cannot scan %q into Date", s)
	}
	parsed, err := ParseDate(s[:len(DateLayout)])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Student lifecycle states.
const (
	StudentActive   = "active"
	StudentAtRisk   = "at_risk"
	StudentInactive = "inactive"
)

// Teacher is an account owning a roster.
type Teacher struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	SecurityHash *string   `db:"security_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Student is a roster entry owned by one teacher.
type Student struct {
	ID                   string    `db:"id" json:"id"`
	OwnerID              string    `db:"owner_id" json:"-"`
	Name                 string    `db:"name" json:"name"`
	IndexNumber          string    `db:"index_number" json:"index_number"`
	Grade                int       `db:"grade" json:"grade"`
	Section              *string   `db:"section" json:"section"`
	Specialty            *string   `db:"specialty" json:"specialty"`
	Status               string    `db:"status" json:"status"`
	PhotoURL             *string   `db:"photo_url" json:"photo_url"`
	AttendancePercentage float64   `db:"attendance_percentage" json:"attendance_percentage"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// GroupLabel is the roster grouping used by the marking sheet, e.g. "Grade 10 - Section A".
func (s Student) GroupLabel() string {
	if s.Section != nil && *s.Section != "" {
		return fmt.Sprintf("Grade %d - Section %s", s.Grade, *s.Section)
	}
	return fmt.Sprintf("Grade %d", s.Grade)
}

// Attendance status values.
const (
	Absent  = 0
	Present = 1
)

// AttendanceRecord is the single mark of one student on one date.
type AttendanceRecord struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	Date          Date      `db:"date" json:"date"`
	Status        int       `db:"status" json:"status"`
	AbsenceReason *string   `db:"absence_reason" json:"absence_reason"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Photo job states.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobProcessed  = "processed"
	JobFailed     = "failed"
)

// PhotoJob is an asynchronous register-photo marking request.
type PhotoJob struct {
	ID        string    `db:"id" json:"id"`
	OwnerID   string    `db:"owner_id" json:"-"`
	Date      Date      `db:"date" json:"date"`
	ImageURL  string    `db:"image_url" json:"image_url"`
	Status    string    `db:"status" json:"status"`
	Result    *string   `db:"result" json:"-"`
	Error     *string   `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Notification is a stored message for a teacher.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"-"`
	Kind      string    `db:"kind" json:"kind"`
	Day       Date      `db:"day" json:"day"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
