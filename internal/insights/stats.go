// Package insights computes attendance statistics from records loaded for a window.
// Every function here is pure: nothing is cached and nothing touches the store.
package insights

import (
	"bytes"
	"encoding/csv"
	"math"
	"sort"

	"edupulse/internal/model"
)

// NotAvailable is reported when there is nothing to rank.
const NotAvailable = "N/A"

// AtRiskThreshold is the attendance percentage below which a student counts as at risk.
const AtRiskThreshold = 75.0

// ChartDays is how many dates the daily chart keeps.
const ChartDays = 14

// PresentRatio is the rounded percentage of present records, 0 for an empty window.
func PresentRatio(records []model.AttendanceRecord) int {
	if len(records) == 0 {
		return 0
	}
	present := 0
	for _, r := range records {
		if r.Status == model.Present {
			present++
		}
	}
	return int(math.Round(100 * float64(present) / float64(len(records))))
}

// MostAbsentWeekday names the weekday with the most absences. Ties keep the weekday seen first.
func MostAbsentWeekday(records []model.AttendanceRecord) string {
	if len(records) == 0 {
		return NotAvailable
	}
	counts := map[string]int{}
	order := []string{}
	for _, r := range records {
		day := r.Date.Weekday().String()
		if _, ok := counts[day]; !ok {
			order = append(order, day)
			counts[day] = 0
		}
		if r.Status == model.Absent {
			counts[day]++
		}
	}
	best := order[0]
	for _, day := range order[1:] {
		if counts[day] > counts[best] {
			best = day
		}
	}
	return best
}

// LongestStreak is the longest run of consecutive calendar days on which any attendance was recorded.
// A single isolated day is not a streak, so the result is 0 unless two recorded days are adjacent.
func LongestStreak(records []model.AttendanceRecord) int {
	seen := map[model.Date]struct{}{}
	for _, r := range records {
		seen[r.Date] = struct{}{}
	}
	if len(seen) < 2 {
		return 0
	}
	dates := make([]model.Date, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	longest, run := 0, 1
	for i := 1; i < len(dates); i++ {
		if dates[i-1].AddDays(1) == dates[i] {
			run++
		} else {
			run = 1
		}
		if run > 1 && run > longest {
			longest = run
		}
	}
	return longest
}

// TopPerformer names the student with the highest attendance percentage; ties keep roster order.
func TopPerformer(students []model.Student) string {
	if len(students) == 0 {
		return NotAvailable
	}
	best := students[0]
	for _, s := range students[1:] {
		if s.AttendancePercentage > best.AttendancePercentage {
			best = s
		}
	}
	return best.Name
}

// DayCount is the present/absent split of one date.
type DayCount struct {
	Date    model.Date `json:"date"`
	Present int        `json:"present"`
	Absent  int        `json:"absent"`
}

// DailyCounts groups records per date, ascending, keeping only the last ChartDays dates.
func DailyCounts(records []model.AttendanceRecord) []DayCount {
	byDate := map[model.Date]*DayCount{}
	for _, r := range records {
		dc, ok := byDate[r.Date]
		if !ok {
			dc = &DayCount{Date: r.Date}
			byDate[r.Date] = dc
		}
		if r.Status == model.Present {
			dc.Present++
		} else {
			dc.Absent++
		}
	}
	out := make([]DayCount, 0, len(byDate))
	for _, dc := range byDate {
		out = append(out, *dc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if len(out) > ChartDays {
		out = out[len(out)-ChartDays:]
	}
	return out
}

// GradeCount is the present/absent split of one grade.
type GradeCount struct {
	Grade   int `json:"grade"`
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

// ByGrade splits records by the grade of their student. Records of unknown students are skipped.
func ByGrade(records []model.AttendanceRecord, students []model.Student) []GradeCount {
	gradeOf := make(map[string]int, len(students))
	for _, s := range students {
		gradeOf[s.ID] = s.Grade
	}
	byGrade := map[int]*GradeCount{}
	for _, r := range records {
		g, ok := gradeOf[r.StudentID]
		if !ok {
			continue
		}
		gc, ok := byGrade[g]
		if !ok {
			gc = &GradeCount{Grade: g}
			byGrade[g] = gc
		}
		if r.Status == model.Present {
			gc.Present++
		} else {
			gc.Absent++
		}
	}
	out := make([]GradeCount, 0, len(byGrade))
	for _, gc := range byGrade {
		out = append(out, *gc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Grade < out[j].Grade })
	return out
}

// StudentStats summarises one student's records.
type StudentStats struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// ForStudent computes present, absent and the rounded present percentage.
func ForStudent(records []model.AttendanceRecord) StudentStats {
	st := StudentStats{Total: len(records), Percentage: PresentRatio(records)}
	for _, r := range records {
		if r.Status == model.Present {
			st.Present++
		} else {
			st.Absent++
		}
	}
	return st
}

// ExportCSV renders records as Date,Status,Reason rows.
func ExportCSV(records []model.AttendanceRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Date", "Status", "Reason"}); err != nil {
		return nil, err
	}
	for _, r := range records {
		status, reason := "Present", ""
		if r.Status == model.Absent {
			status = "Absent"
			if r.AbsenceReason != nil {
				reason = *r.AbsenceReason
			}
		}
		if err := w.Write([]string{r.Date.String(), status, reason}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Dashboard is the headline numbers of a roster.
type Dashboard struct {
	TotalStudents     int `json:"total_students"`
	AverageAttendance int `json:"average_attendance"`
	AtRisk            int `json:"at_risk"`
}

// DashboardStats averages the cached percentages and counts students flagged at risk.
func DashboardStats(students []model.Student) Dashboard {
	d := Dashboard{TotalStudents: len(students), AverageAttendance: AverageAttendance(students)}
	for _, s := range students {
		if s.Status == model.StudentAtRisk {
			d.AtRisk++
		}
	}
	return d
}

// AverageAttendance is the rounded mean of the cached attendance percentages.
func AverageAttendance(students []model.Student) int {
	if len(students) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range students {
		sum += s.AttendancePercentage
	}
	return int(math.Round(sum / float64(len(students))))
}

// AtRiskNames lists students whose cached percentage is under AtRiskThreshold, in roster order.
func AtRiskNames(students []model.Student) []string {
	names := []string{}
	for _, s := range students {
		if s.AttendancePercentage < AtRiskThreshold {
			names = append(names, s.Name)
		}
	}
	return names
}

// Percentage is 100 * present / total rounded to two decimals, 0 when total is 0.
func Percentage(present, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(10000*float64(present)/float64(total)) / 100
}
