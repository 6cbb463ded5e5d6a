package insights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edupulse/internal/model"
	"edupulse/internal/roster"
)

// ErrInvalidRange is returned for an unknown window name.
var ErrInvalidRange = errors.New("range must be week, month or year")

// ErrInvalidMonth is returned for months not in YYYY-MM form.
var ErrInvalidMonth = errors.New("invalid month format (use YYYY-MM)")

var windowDays = map[string]int{"week": 7, "month": 30, "year": 365}

// Window returns the inclusive date range ending today for a named range.
// An empty name means "week".
func Window(name string, today model.Date) (model.Date, model.Date, error) {
	if name == "" {
		name = "week"
	}
	days, ok := windowDays[name]
	if !ok {
		return "", "", ErrInvalidRange
	}
	return today.AddDays(-days), today, nil
}

// MonthWindow returns the first and last day of a YYYY-MM month.
func MonthWindow(month string) (model.Date, model.Date, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return "", "", ErrInvalidMonth
	}
	first := model.DateOf(t)
	last := model.DateOf(t.AddDate(0, 1, -1))
	return first, last, nil
}

// Records is the read side of the attendance store used here.
type Records interface {
	ListByDateRange(ctx context.Context, ownerID string, start, end model.Date, studentID string) ([]model.AttendanceRecord, error)
}

// Students is the read side of the roster store used here.
type Students interface {
	List(ctx context.Context, ownerID string, f roster.Filter) ([]model.Student, error)
	Get(ctx context.Context, ownerID, id string) (*model.Student, error)
}

// Query selects the records a summary is computed over.
type Query struct {
	Range     string
	Grade     int
	StudentID string
}

// Summary is the insights panel for one window.
type Summary struct {
	Start             model.Date   `json:"start"`
	End               model.Date   `json:"end"`
	TotalRecords      int          `json:"total_records"`
	PresentRatio      int          `json:"present_ratio"`
	MostAbsentWeekday string       `json:"most_absent_weekday"`
	LongestStreak     int          `json:"longest_streak"`
	TopPerformer      string       `json:"top_performer"`
	Daily             []DayCount   `json:"daily"`
	ByGrade           []GradeCount `json:"by_grade"`
}

// StudentMonth is the per-student monthly view.
type StudentMonth struct {
	Student model.Student            `json:"student"`
	Month   string                   `json:"month"`
	Stats   StudentStats             `json:"stats"`
	Records []model.AttendanceRecord `json:"records"`
}

// Service loads records and students and runs the pure aggregations over them.
type Service struct {
	records  Records
	students Students
	now      func() time.Time
}

// NewService creates an insights service.
func NewService(records Records, students Students) *Service {
	return &Service{records: records, students: students, now: time.Now}
}

// Summary computes the insights panel for q.
func (s *Service) Summary(ctx context.Context, ownerID string, q Query) (Summary, error) {
	start, end, err := Window(q.Range, model.DateOf(s.now()))
	if err != nil {
		return Summary{}, err
	}
	students, err := s.students.List(ctx, ownerID, roster.Filter{Grade: q.Grade})
	if err != nil {
		return Summary{}, err
	}
	records, err := s.records.ListByDateRange(ctx, ownerID, start, end, q.StudentID)
	if err != nil {
		return Summary{}, err
	}
	if q.Grade > 0 {
		records = onlyStudents(records, students)
	}
	return Summary{
		Start:             start,
		End:               end,
		TotalRecords:      len(records),
		PresentRatio:      PresentRatio(records),
		MostAbsentWeekday: MostAbsentWeekday(records),
		LongestStreak:     LongestStreak(records),
		TopPerformer:      TopPerformer(students),
		Daily:             DailyCounts(records),
		ByGrade:           ByGrade(records, students),
	}, nil
}

// StudentMonth loads one student's records for a YYYY-MM month; an empty month is the current one.
func (s *Service) StudentMonth(ctx context.Context, ownerID, studentID, month string) (StudentMonth, error) {
	if month == "" {
		month = s.now().Format("2006-01")
	}
	start, end, err := MonthWindow(month)
	if err != nil {
		return StudentMonth{}, err
	}
	st, err := s.students.Get(ctx, ownerID, studentID)
	if err != nil {
		return StudentMonth{}, err
	}
	records, err := s.records.ListByDateRange(ctx, ownerID, start, end, studentID)
	if err != nil {
		return StudentMonth{}, fmt.Errorf("load student records: %w", err)
	}
	return StudentMonth{Student: *st, Month: month, Stats: ForStudent(records), Records: records}, nil
}

// Dashboard computes the headline numbers of the owner's roster.
func (s *Service) Dashboard(ctx context.Context, ownerID string) (Dashboard, error) {
	students, err := s.students.List(ctx, ownerID, roster.Filter{})
	if err != nil {
		return Dashboard{}, err
	}
	return DashboardStats(students), nil
}

func onlyStudents(records []model.AttendanceRecord, students []model.Student) []model.AttendanceRecord {
	keep := make(map[string]struct{}, len(students))
	for _, s := range students {
		keep[s.ID] = struct{}{}
	}
	out := make([]model.AttendanceRecord, 0, len(records))
	for _, r := range records {
		if _, ok := keep[r.StudentID]; ok {
			out = append(out, r)
		}
	}
	return out
}
