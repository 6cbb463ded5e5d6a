package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"edupulse/internal/metrics"
	"edupulse/internal/model"
	"edupulse/internal/roster"
	"edupulse/internal/validation"
)

// ErrUnknownStudent is returned when a mark names a student outside the teacher's roster.
var ErrUnknownStudent = errors.New("student is not in your roster")

// DefaultAbsenceReason is stored for absences saved without a reason.
const DefaultAbsenceReason = "unknown"

// Marking sources, used as metric labels.
const (
	SourceManual = "manual"
	SourcePhoto  = "photo"
)

// RosterReader is the part of the roster store the marking flows need.
type RosterReader interface {
	List(ctx context.Context, ownerID string, f roster.Filter) ([]model.Student, error)
}

// Mark is the status chosen for one student.
type Mark struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    *int    `json:"status" validate:"required,oneof=0 1"`
	Reason    *string `json:"reason" validate:"omitempty,max=200"`
}

// MarksInput is a manual save for one date.
type MarksInput struct {
	Date  string `json:"date" validate:"required"`
	Marks []Mark `json:"marks" validate:"required,min=1,dive"`
}

// SheetEntry is one student on the marking sheet. A nil Status means unmarked.
type SheetEntry struct {
	Student model.Student `json:"student"`
	Status  *int          `json:"status"`
	Reason  *string       `json:"reason"`
}

// SheetGroup holds the students of one grade and section.
type SheetGroup struct {
	Label    string       `json:"label"`
	Grade    int          `json:"grade"`
	Students []SheetEntry `json:"students"`
}

// Sheet is the roster for a date with any existing marks.
type Sheet struct {
	Date   model.Date   `json:"date"`
	Groups []SheetGroup `json:"groups"`
}

// SaveError reports a manual save that stopped part way.
type SaveError struct {
	Saved     int
	StudentID string
	Err       error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save attendance for student %s: %v", e.StudentID, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Service runs the manual marking flow.
type Service struct {
	repo   *Repository
	roster RosterReader
	log    *zap.Logger
	now    func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, rr RosterReader, log *zap.Logger) *Service {
	return &Service{repo: repo, roster: rr, log: log, now: time.Now}
}

// Sheet loads the roster and the marks already stored for date, grouped by grade and section.
func (s *Service) Sheet(ctx context.Context, ownerID string, date model.Date) (Sheet, error) {
	students, err := s.roster.List(ctx, ownerID, roster.Filter{})
	if err != nil {
		return Sheet{}, err
	}
	records, err := s.repo.ListByDateRange(ctx, ownerID, date, date, "")
	if err != nil {
		return Sheet{}, err
	}
	byStudent := make(map[string]model.AttendanceRecord, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}

	index := map[string]int{}
	groups := []SheetGroup{}
	for _, st := range students {
		label := st.GroupLabel()
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, SheetGroup{Label: label, Grade: st.Grade, Students: []SheetEntry{}})
		}
		entry := SheetEntry{Student: st}
		if rec, ok := byStudent[st.ID]; ok {
			status := rec.Status
			entry.Status = &status
			entry.Reason = rec.AbsenceReason
		}
		groups[i].Students = append(groups[i].Students, entry)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].Grade != groups[b].Grade {
			return groups[a].Grade < groups[b].Grade
		}
		return groups[a].Label < groups[b].Label
	})
	return Sheet{Date: date, Groups: groups}, nil
}

// SaveMarks upserts the given marks one by one and returns how many were written.
// The first failure stops the save; rows already written stay written.
func (s *Service) SaveMarks(ctx context.Context, ownerID string, in MarksInput) (int, error) {
	if err := validation.Struct(in); err != nil {
		return 0, err
	}
	date, err := model.ParseDate(in.Date)
	if err != nil {
		return 0, err
	}
	known, err := s.rosterIDs(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	for _, m := range in.Marks {
		if _, ok := known[m.StudentID]; !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownStudent, m.StudentID)
		}
	}

	saved := 0
	for _, m := range in.Marks {
		rec := model.AttendanceRecord{StudentID: m.StudentID, Date: date, Status: *m.Status}
		if rec.Status == model.Absent {
			reason := DefaultAbsenceReason
			if m.Reason != nil && *m.Reason != "" {
				reason = *m.Reason
			}
			rec.AbsenceReason = &reason
		}
		err := s.repo.Upsert(ctx, &rec)
		metrics.AttendanceUpserts.WithLabelValues(SourceManual, metrics.Result(err)).Inc()
		if err != nil {
			s.log.Error("attendance save stopped", zap.String("owner", ownerID), zap.String("date", date.String()),
				zap.Int("saved", saved), zap.Error(err))
			return saved, &SaveError{Saved: saved, StudentID: m.StudentID, Err: err}
		}
		saved++
	}
	s.log.Info("attendance saved", zap.String("owner", ownerID), zap.String("date", date.String()), zap.Int("saved", saved))
	return saved, nil
}

// MarkAllPresent marks every roster student present on date, dropping any reasons.
func (s *Service) MarkAllPresent(ctx context.Context, ownerID string, date string) (int, error) {
	students, err := s.roster.List(ctx, ownerID, roster.Filter{})
	if err != nil {
		return 0, err
	}
	if len(students) == 0 {
		return 0, nil
	}
	present := model.Present
	in := MarksInput{Date: date, Marks: make([]Mark, len(students))}
	for i, st := range students {
		in.Marks[i] = Mark{StudentID: st.ID, Status: &present}
	}
	return s.SaveMarks(ctx, ownerID, in)
}

// UpdatedToday reports whether attendance exists for today. Weekends and empty rosters count as updated.
func (s *Service) UpdatedToday(ctx context.Context, ownerID string) (bool, error) {
	now := s.now()
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return true, nil
	}
	students, err := s.roster.List(ctx, ownerID, roster.Filter{})
	if err != nil {
		return false, err
	}
	if len(students) == 0 {
		return true, nil
	}
	n, err := s.repo.CountOnDate(ctx, ownerID, model.DateOf(now))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) rosterIDs(ctx context.Context, ownerID string) (map[string]model.Student, error) {
	students, err := s.roster.List(ctx, ownerID, roster.Filter{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Student, len(students))
	for _, st := range students {
		out[st.ID] = st
	}
	return out, nil
}
