package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"edupulse/internal/aiclient"
	"edupulse/internal/insights"
	"edupulse/internal/model"
	"edupulse/internal/roster"
)

// ErrNoStudents is returned when there is no roster to analyse.
var ErrNoStudents = errors.New("add students first to get AI insights")

// FallbackRecommendations are used whenever the model gives no usable recommendations.
var FallbackRecommendations = []string{
	"Review at-risk students regularly",
	"Contact parents of absent students",
}

// Completer is the LLM gateway.
type Completer interface {
	ChatComplete(ctx context.Context, purpose string, messages []aiclient.Message, image string) (string, error)
}

// Students lists a teacher's roster.
type Students interface {
	List(ctx context.Context, ownerID string, f roster.Filter) ([]model.Student, error)
}

// RecentRecords loads the newest attendance rows of a teacher.
type RecentRecords interface {
	ListRecent(ctx context.Context, ownerID string, limit int) ([]model.AttendanceRecord, error)
}

// Narrative is the AI insights answer. Every field is always present.
type Narrative struct {
	AtRiskStudents  []string `json:"atRiskStudents"`
	Trends          string   `json:"trends"`
	Recommendations []string `json:"recommendations"`
	Fallback        bool     `json:"fallback"`
}

// Service produces narratives and chat answers from roster data.
type Service struct {
	students Students
	records  RecentRecords
	llm      Completer
	limit    int
	log      *zap.Logger
}

// NewService creates the assistant. limit bounds the attendance rows sent to the model.
func NewService(students Students, records RecentRecords, llm Completer, limit int, log *zap.Logger) *Service {
	if limit <= 0 {
		limit = 100
	}
	return &Service{students: students, records: records, llm: llm, limit: limit, log: log}
}

type studentSnapshot struct {
	Name                 string  `json:"name"`
	IndexNumber          string  `json:"index_number"`
	Grade                int     `json:"grade"`
	Section              *string `json:"section,omitempty"`
	Status               string  `json:"status"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

type recordSnapshot struct {
	Student string     `json:"student"`
	Date    model.Date `json:"date"`
	Status  int        `json:"status"`
	Reason  *string    `json:"absence_reason,omitempty"`
}

// Narrative asks the model for at-risk students, trends and recommendations.
func (s *Service) Narrative(ctx context.Context, ownerID string) (Narrative, error) {
	students, err := s.students.List(ctx, ownerID, roster.Filter{})
	if err != nil {
		return Narrative{}, err
	}
	if len(students) == 0 {
		return Narrative{}, ErrNoStudents
	}
	records, err := s.records.ListRecent(ctx, ownerID, s.limit)
	if err != nil {
		return Narrative{}, err
	}

	prompt, err := narrativePrompt(students, records)
	if err != nil {
		return Narrative{}, err
	}
	reply, err := s.llm.ChatComplete(ctx, aiclient.PurposeInsights, []aiclient.Message{{Role: "user", Content: prompt}}, "")
	if err != nil {
		return Narrative{}, err
	}
	n := ParseNarrative(reply, students)
	if n.Fallback {
		s.log.Info("narrative reply was not JSON, using fallback", zap.String("owner", ownerID))
	}
	return n, nil
}

type rawNarrative struct {
	AtRiskStudents  *[]string `json:"atRiskStudents"`
	Trends          *string   `json:"trends"`
	Recommendations *[]string `json:"recommendations"`
}

// ParseNarrative reads a model reply. When the reply holds no decodable object the result is the
// deterministic fallback; when only some fields are missing, those fields alone are filled in.
func ParseNarrative(reply string, students []model.Student) Narrative {
	fallback := Narrative{
		AtRiskStudents:  insights.AtRiskNames(students),
		Trends:          reply,
		Recommendations: append([]string(nil), FallbackRecommendations...),
		Fallback:        true,
	}
	obj, ok := aiclient.ExtractObject(reply)
	if !ok {
		return fallback
	}
	var raw rawNarrative
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return fallback
	}

	n := Narrative{}
	if raw.AtRiskStudents != nil {
		n.AtRiskStudents = nonNil(*raw.AtRiskStudents)
	} else {
		n.AtRiskStudents = fallback.AtRiskStudents
	}
	if raw.Trends != nil {
		n.Trends = *raw.Trends
	} else {
		n.Trends = reply
	}
	if raw.Recommendations != nil && len(*raw.Recommendations) > 0 {
		n.Recommendations = *raw.Recommendations
	} else {
		n.Recommendations = fallback.Recommendations
	}
	return n
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func narrativePrompt(students []model.Student, records []model.AttendanceRecord) (string, error) {
	names := make(map[string]string, len(students))
	snap := make([]studentSnapshot, len(students))
	for i, st := range students {
		names[st.ID] = st.Name
		snap[i] = studentSnapshot{
			Name:                 st.Name,
			IndexNumber:          st.IndexNumber,
			Grade:                st.Grade,
			Section:              st.Section,
			Status:               st.Status,
			AttendancePercentage: st.AttendancePercentage,
		}
	}
	recs := make([]recordSnapshot, len(records))
	for i, r := range records {
		recs[i] = recordSnapshot{Student: names[r.StudentID], Date: r.Date, Status: r.Status, Reason: r.AbsenceReason}
	}
	studentsJSON, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	recordsJSON, err := json.Marshal(recs)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`Analyze this school attendance data and provide insights:
Students: %s
Recent Attendance (status 1 = present, 0 = absent): %s

Return ONLY a JSON object with:
- atRiskStudents: array of student names with attendance < 75%%
- trends: string describing patterns
- recommendations: array of actionable suggestions`, studentsJSON, recordsJSON), nil
}
