// Package notify produces teacher notifications and runs the periodic attendance jobs.
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"edupulse/internal/attendance"
	"edupulse/internal/insights"
	"edupulse/internal/model"
	"edupulse/internal/roster"
)

// KindAttendanceReminder is the notification kind for a missing daily register.
const KindAttendanceReminder = "attendance_reminder"

// Computed notification kinds, never stored.
const (
	KindStudentsSummary = "students_summary"
	KindWeekSummary     = "week_summary"
)

// LookbackDays is how far back the notification feed reaches.
const LookbackDays = 7

// Teachers lists accounts.
type Teachers interface {
	ListTeachers(ctx context.Context) ([]model.Teacher, error)
}

// Students is the roster view the jobs need.
type Students interface {
	Count(ctx context.Context, ownerID string) (int, error)
	SetPercentages(ctx context.Context, pct map[string]float64) error
}

// Records is the attendance view the jobs need.
type Records interface {
	CountOnDate(ctx context.Context, ownerID string, date model.Date) (int, error)
	ListByDateRange(ctx context.Context, ownerID string, start, end model.Date, studentID string) ([]model.AttendanceRecord, error)
	Totals(ctx context.Context) ([]attendance.StudentTotal, error)
}

// Service builds notification feeds and runs the reminder and percentage jobs.
type Service struct {
	repo     *Repository
	teachers Teachers
	students Students
	records  Records
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates the notification service.
func NewService(repo *Repository, teachers Teachers, students Students, records Records, log *zap.Logger) *Service {
	return &Service{repo: repo, teachers: teachers, students: students, records: records, log: log, now: time.Now}
}

// Feed returns the teacher's stored notifications of the last week plus two computed summaries.
func (s *Service) Feed(ctx context.Context, teacherID string) ([]model.Notification, error) {
	today := model.DateOf(s.now())
	since := today.AddDays(-LookbackDays)

	stored, err := s.repo.ListSince(ctx, teacherID, since)
	if err != nil {
		return nil, err
	}
	count, err := s.students.Count(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByDateRange(ctx, teacherID, since, today, "")
	if err != nil {
		return nil, err
	}
	days := map[model.Date]struct{}{}
	for _, r := range records {
		days[r.Date] = struct{}{}
	}

	now := s.now().UTC()
	feed := []model.Notification{
		{ID: "students-summary", TeacherID: teacherID, Kind: KindStudentsSummary, Day: today, CreatedAt: now,
			Message: fmt.Sprintf("You have %d students registered.", count)},
		{ID: "week-summary", TeacherID: teacherID, Kind: KindWeekSummary, Day: today, CreatedAt: now,
			Message: fmt.Sprintf("Attendance was recorded on %d of the last %d days.", len(days), LookbackDays)},
	}
	return append(feed, stored...), nil
}

// RemindMissing notifies, once per day, every teacher with students and no attendance today.
// It does nothing at weekends.
func (s *Service) RemindMissing(ctx context.Context) (int, error) {
	now := s.now()
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return 0, nil
	}
	today := model.DateOf(now)
	teachers, err := s.teachers.ListTeachers(ctx)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, t := range teachers {
		n, err := s.students.Count(ctx, t.ID)
		if err != nil {
			return sent, err
		}
		if n == 0 {
			continue
		}
		marked, err := s.records.CountOnDate(ctx, t.ID, today)
		if err != nil {
			return sent, err
		}
		if marked > 0 {
			continue
		}
		inserted, err := s.repo.InsertOnce(ctx, &model.Notification{
			TeacherID: t.ID,
			Kind:      KindAttendanceReminder,
			Day:       today,
			Message:   fmt.Sprintf("Attendance for %s has not been recorded yet.", today),
		})
		if err != nil {
			return sent, err
		}
		if inserted {
			sent++
		}
	}
	s.log.Info("attendance reminders sent", zap.Int("sent", sent), zap.String("day", today.String()))
	return sent, nil
}

// RefreshPercentages recomputes the cached attendance percentage of every student.
// Students without any record get 0.
func (s *Service) RefreshPercentages(ctx context.Context) (int, error) {
	ids, err := s.repo.StudentIDs(ctx)
	if err != nil {
		return 0, err
	}
	totals, err := s.records.Totals(ctx)
	if err != nil {
		return 0, err
	}
	pct := make(map[string]float64, len(ids))
	for _, id := range ids {
		pct[id] = 0
	}
	for _, t := range totals {
		if _, ok := pct[t.StudentID]; ok {
			pct[t.StudentID] = insights.Percentage(t.Present, t.Total)
		}
	}
	if err := s.students.SetPercentages(ctx, pct); err != nil {
		return 0, err
	}
	s.log.Info("attendance percentages refreshed", zap.Int("students", len(pct)))
	return len(pct), nil
}

var _ Students = (*roster.Repository)(nil)
