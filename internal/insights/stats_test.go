package insights

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/internal/model"
)

func rec(student string, date model.Date, status int) model.AttendanceRecord {
	return model.AttendanceRecord{StudentID: student, Date: date, Status: status}
}

func TestPresentRatio(t *testing.T) {
	tests := []struct {
		name    string
		records []model.AttendanceRecord
		want    int
	}{
		{name: "empty window", want: 0},
		{name: "all present", records: []model.AttendanceRecord{rec("a", "2024-01-01", 1), rec("b", "2024-01-01", 1)}, want: 100},
		{name: "two of three", records: []model.AttendanceRecord{
			rec("a", "2024-01-01", 1), rec("b", "2024-01-01", 1), rec("c", "2024-01-01", 0),
		}, want: 67},
		{name: "three of four", records: []model.AttendanceRecord{
			rec("a", "2024-01-01", 1), rec("b", "2024-01-01", 1), rec("c", "2024-01-01", 1), rec("d", "2024-01-01", 0),
		}, want: 75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PresentRatio(tt.records))
		})
	}
}

func TestMostAbsentWeekday(t *testing.T) {
	tests := []struct {
		name    string
		records []model.AttendanceRecord
		want    string
	}{
		{name: "empty window", want: NotAvailable},
		{name: "monday absences", records: []model.AttendanceRecord{
			rec("a", "2024-01-01", 0), // Monday
			rec("b", "2024-01-01", 0),
			rec("a", "2024-01-02", 0), // Tuesday
			rec("b", "2024-01-02", 1),
		}, want: "Monday"},
		{name: "tie keeps first seen", records: []model.AttendanceRecord{
			rec("a", "2024-01-03", 0), // Wednesday
			rec("a", "2024-01-01", 0), // Monday
		}, want: "Wednesday"},
		{name: "no absences at all", records: []model.AttendanceRecord{
			rec("a", "2024-01-05", 1), // Friday
			rec("a", "2024-01-01", 1),
		}, want: "Friday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MostAbsentWeekday(tt.records))
		})
	}
}

func TestLongestStreak(t *testing.T) {
	dates := func(ds ...model.Date) []model.AttendanceRecord {
		out := make([]model.AttendanceRecord, 0, len(ds))
		for _, d := range ds {
			out = append(out, rec("a", d, 1), rec("b", d, 0))
		}
		return out
	}
	tests := []struct {
		name    string
		records []model.AttendanceRecord
		want    int
	}{
		{name: "empty", want: 0},
		{name: "single day", records: dates("2024-01-01"), want: 0},
		{name: "gap only", records: dates("2024-01-01", "2024-01-03"), want: 0},
		{name: "three then gap", records: dates("2024-01-01", "2024-01-02", "2024-01-03", "2024-01-05"), want: 3},
		{name: "unordered input", records: dates("2024-01-05", "2024-01-02", "2024-01-04", "2024-01-03"), want: 4},
		{name: "across month end", records: dates("2024-01-31", "2024-02-01"), want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LongestStreak(tt.records))
		})
	}
}

func TestTopPerformer(t *testing.T) {
	tests := []struct {
		name     string
		students []model.Student
		want     string
	}{
		{name: "empty roster", want: NotAvailable},
		{name: "highest wins", students: []model.Student{
			{Name: "Ama", AttendancePercentage: 80},
			{Name: "Kofi", AttendancePercentage: 95.5},
			{Name: "Esi", AttendancePercentage: 60},
		}, want: "Kofi"},
		{name: "tie keeps roster order", students: []model.Student{
			{Name: "Ama", AttendancePercentage: 90},
			{Name: "Kofi", AttendancePercentage: 90},
		}, want: "Ama"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopPerformer(tt.students))
		})
	}
}

func TestDailyCounts(t *testing.T) {
	var records []model.AttendanceRecord
	start := model.Date("2024-03-01")
	for i := 0; i < 20; i++ {
		d := start.AddDays(i)
		records = append(records, rec("a", d, 1), rec("b", d, 0), rec("c", d, 1))
	}

	got := DailyCounts(records)

	require.Len(t, got, ChartDays)
	assert.Equal(t, start.AddDays(6), got[0].Date)
	assert.Equal(t, start.AddDays(19), got[len(got)-1].Date)
	for _, dc := range got {
		assert.Equal(t, 2, dc.Present)
		assert.Equal(t, 1, dc.Absent)
	}
}

func TestByGrade(t *testing.T) {
	students := []model.Student{{ID: "a", Grade: 11}, {ID: "b", Grade: 10}, {ID: "c", Grade: 10}}
	records := []model.AttendanceRecord{
		rec("a", "2024-01-01", 1),
		rec("b", "2024-01-01", 0),
		rec("c", "2024-01-01", 1),
		rec("gone", "2024-01-01", 1),
	}

	got := ByGrade(records, students)

	assert.Equal(t, []GradeCount{
		{Grade: 10, Present: 1, Absent: 1},
		{Grade: 11, Present: 1, Absent: 0},
	}, got)
}

func TestForStudent(t *testing.T) {
	got := ForStudent([]model.AttendanceRecord{
		rec("a", "2024-01-01", 1), rec("a", "2024-01-02", 1), rec("a", "2024-01-03", 0),
	})
	assert.Equal(t, StudentStats{Present: 2, Absent: 1, Total: 3, Percentage: 67}, got)
}

func TestExportCSV(t *testing.T) {
	reason := "sick, with fever"
	records := []model.AttendanceRecord{
		{Date: "2024-01-01", Status: model.Present},
		{Date: "2024-01-02", Status: model.Absent, AbsenceReason: &reason},
	}

	out, err := ExportCSV(records)

	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Equal(t, []string{
		"Date,Status,Reason",
		"2024-01-01,Present,",
		`2024-01-02,Absent,"sick, with fever"`,
	}, lines)
}

func TestDashboardStats(t *testing.T) {
	students := []model.Student{
		{Name: "Ama", Status: model.StudentActive, AttendancePercentage: 90},
		{Name: "Kofi", Status: model.StudentAtRisk, AttendancePercentage: 50},
		{Name: "Esi", Status: model.StudentActive, AttendancePercentage: 71},
	}

	assert.Equal(t, Dashboard{TotalStudents: 3, AverageAttendance: 70, AtRisk: 1}, DashboardStats(students))
	assert.Equal(t, []string{"Kofi", "Esi"}, AtRiskNames(students))
	assert.Equal(t, Dashboard{}, DashboardStats(nil))
	assert.Empty(t, AtRiskNames(nil))
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		present, total int
		want           float64
	}{
		{0, 0, 0},
		{2, 3, 66.67},
		{1, 8, 12.5},
		{5, 5, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d of %d", tt.present, tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.present, tt.total))
		})
	}
}

func TestWindow(t *testing.T) {
	today := model.Date("2024-03-10")
	tests := []struct {
		name      string
		wantStart model.Date
		wantErr   error
	}{
		{name: "", wantStart: "2024-03-03"},
		{name: "week", wantStart: "2024-03-03"},
		{name: "month", wantStart: "2024-02-09"},
		{name: "year", wantStart: "2023-03-11"},
		{name: "decade", wantErr: ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := Window(tt.name, today)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, today, end)
		})
	}
}

func TestMonthWindow(t *testing.T) {
	start, end, err := MonthWindow("2024-02")
	require.NoError(t, err)
	assert.Equal(t, model.Date("2024-02-01"), start)
	assert.Equal(t, model.Date("2024-02-29"), end)

	_, _, err = MonthWindow("2024/02")
	assert.ErrorIs(t, err, ErrInvalidMonth)
}
