package insights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/internal/model"
	"edupulse/internal/roster"
	"edupulse/internal/store"
)

type fakeRecords struct {
	records []model.AttendanceRecord
	start   model.Date
	end     model.Date
}

func (f *fakeRecords) ListByDateRange(_ context.Context, _ string, start, end model.Date, studentID string) ([]model.AttendanceRecord, error) {
	f.start, f.end = start, end
	var out []model.AttendanceRecord
	for _, r := range f.records {
		if r.Date < start || r.Date > end {
			continue
		}
		if studentID != "" && r.StudentID != studentID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type fakeStudents struct {
	students []model.Student
}

func (f *fakeStudents) List(_ context.Context, _ string, flt roster.Filter) ([]model.Student, error) {
	var out []model.Student
	for _, s := range f.students {
		if flt.Grade > 0 && s.Grade != flt.Grade {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStudents) Get(_ context.Context, _, id string) (*model.Student, error) {
	for _, s := range f.students {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func newTestService(records []model.AttendanceRecord, students []model.Student) (*Service, *fakeRecords) {
	fr := &fakeRecords{records: records}
	svc := NewService(fr, &fakeStudents{students: students})
	svc.now = func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) }
	return svc, fr
}

func TestService_Summary(t *testing.T) {
	students := []model.Student{
		{ID: "a", Name: "Ama", Grade: 10, AttendancePercentage: 90},
		{ID: "b", Name: "Kofi", Grade: 11, AttendancePercentage: 95},
	}
	records := []model.AttendanceRecord{
		rec("a", "2024-01-08", 1), rec("b", "2024-01-08", 0),
		rec("a", "2024-01-09", 1), rec("b", "2024-01-09", 1),
		rec("a", "2023-12-01", 0),
	}
	svc, fr := newTestService(records, students)

	t.Run("default week", func(t *testing.T) {
		sum, err := svc.Summary(context.Background(), "owner", Query{})
		require.NoError(t, err)
		assert.Equal(t, model.Date("2024-01-03"), fr.start)
		assert.Equal(t, model.Date("2024-01-10"), fr.end)
		assert.Equal(t, 4, sum.TotalRecords)
		assert.Equal(t, 75, sum.PresentRatio)
		assert.Equal(t, "Monday", sum.MostAbsentWeekday)
		assert.Equal(t, 2, sum.LongestStreak)
		assert.Equal(t, "Kofi", sum.TopPerformer)
		assert.Len(t, sum.Daily, 2)
		assert.Len(t, sum.ByGrade, 2)
	})

	t.Run("grade filter drops other students", func(t *testing.T) {
		sum, err := svc.Summary(context.Background(), "owner", Query{Grade: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, sum.TotalRecords)
		assert.Equal(t, 100, sum.PresentRatio)
		assert.Equal(t, "Ama", sum.TopPerformer)
	})

	t.Run("bad range", func(t *testing.T) {
		_, err := svc.Summary(context.Background(), "owner", Query{Range: "fortnight"})
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestService_StudentMonth(t *testing.T) {
	students := []model.Student{{ID: "a", Name: "Ama", Grade: 10}}
	records := []model.AttendanceRecord{
		rec("a", "2024-01-02", 1), rec("a", "2024-01-03", 0), rec("a", "2023-12-29", 1),
	}
	svc, _ := newTestService(records, students)

	view, err := svc.StudentMonth(context.Background(), "owner", "a", "")
	require.NoError(t, err)
	assert.Equal(t, "2024-01", view.Month)
	assert.Equal(t, StudentStats{Present: 1, Absent: 1, Total: 2, Percentage: 50}, view.Stats)

	view, err = svc.StudentMonth(context.Background(), "owner", "a", "2023-12")
	require.NoError(t, err)
	assert.Equal(t, 1, view.Stats.Total)

	_, err = svc.StudentMonth(context.Background(), "owner", "missing", "2024-01")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.StudentMonth(context.Background(), "owner", "a", "January")
	assert.ErrorIs(t, err, ErrInvalidMonth)
}
