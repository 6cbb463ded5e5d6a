package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"edupulse/internal/aiclient"
	"edupulse/internal/metrics"
	"edupulse/internal/model"
	"edupulse/internal/roster"
)

var (
	ErrInvalidImage  = errors.New("image must be a base64 image (data:image/...)")
	ErrImageTooLarge = errors.New("image too large (max 10MB)")
)

// RegisterAbsenceReason is stored for absences read from a register photo.
const RegisterAbsenceReason = "Marked absent in register"

const noMarksMessage = "Could not read attendance marks from the register. " +
	"Please ensure the image is clear and shows the attendance grid with index numbers and marks (1/0)."

// Completer is the LLM gateway as seen by the marking and narrative flows.
type Completer interface {
	ChatComplete(ctx context.Context, purpose string, messages []aiclient.Message, image string) (string, error)
}

// PhotoRequest asks for a register photo to be read for date.
type PhotoRequest struct {
	Image string `json:"image"`
	Date  string `json:"date"`
}

// MarkedRecord is one student updated from the photo.
type MarkedRecord struct {
	IndexNumber string `json:"index_number"`
	Status      string `json:"status"`
}

// RowError is a per-student failure that did not stop the rest.
type RowError struct {
	IndexNumber string `json:"index_number"`
	Error       string `json:"error"`
}

// PhotoResult is always returned by the photo flow, even on failure.
type PhotoResult struct {
	Success           bool           `json:"success"`
	IdentifiedCount   int            `json:"identified_count"`
	TotalStudents     int            `json:"total_students"`
	AttendanceRecords []MarkedRecord `json:"attendance_records"`
	Errors            []RowError     `json:"errors"`
	Message           string         `json:"message"`
}

func emptyResult(total int, msg string) PhotoResult {
	return PhotoResult{
		TotalStudents:     total,
		AttendanceRecords: []MarkedRecord{},
		Errors:            []RowError{},
		Message:           msg,
	}
}

// PhotoMarker reads a photographed paper register through the vision model and upserts the marks.
type PhotoMarker struct {
	repo          *Repository
	roster        RosterReader
	llm           Completer
	maxImageBytes int
	log           *zap.Logger
}

// NewPhotoMarker creates the photo flow. maxImageBytes <= 0 uses 10,000,000.
func NewPhotoMarker(repo *Repository, rr RosterReader, llm Completer, maxImageBytes int, log *zap.Logger) *PhotoMarker {
	if maxImageBytes <= 0 {
		maxImageBytes = 10_000_000
	}
	return &PhotoMarker{repo: repo, roster: rr, llm: llm, maxImageBytes: maxImageBytes, log: log}
}

// Mark validates a data-URL image and date, then runs the register flow.
// The returned result is populated on every path; err tells the caller which kind of failure happened.
func (p *PhotoMarker) Mark(ctx context.Context, ownerID string, req PhotoRequest) (PhotoResult, error) {
	date, err := p.validate(req.Image, req.Date, false)
	if err != nil {
		return emptyResult(0, err.Error()), err
	}
	return p.run(ctx, ownerID, req.Image, date)
}

// MarkStored runs the register flow for an image already held in object storage.
func (p *PhotoMarker) MarkStored(ctx context.Context, ownerID, imageURL string, date model.Date) (PhotoResult, error) {
	d, err := p.validate(imageURL, date.String(), true)
	if err != nil {
		return emptyResult(0, err.Error()), err
	}
	return p.run(ctx, ownerID, imageURL, d)
}

func (p *PhotoMarker) validate(image, date string, remote bool) (model.Date, error) {
	switch {
	case strings.HasPrefix(image, "data:image/"):
	case remote && (strings.HasPrefix(image, "https://") || strings.HasPrefix(image, "http://")):
	default:
		return "", ErrInvalidImage
	}
	if len(image) > p.maxImageBytes {
		return "", ErrImageTooLarge
	}
	return model.ParseDate(date)
}

func (p *PhotoMarker) run(ctx context.Context, ownerID, image string, date model.Date) (PhotoResult, error) {
	students, err := p.roster.List(ctx, ownerID, roster.Filter{})
	if err != nil {
		return emptyResult(0, "could not load roster"), err
	}
	res := emptyResult(len(students), noMarksMessage)
	if len(students) == 0 {
		return res, nil
	}

	prompt := registerPrompt(students, date)
	reply, err := p.llm.ChatComplete(ctx, aiclient.PurposeAttendance, []aiclient.Message{{Role: "user", Content: prompt}}, image)
	if err != nil {
		res.Message = "AI gateway request failed"
		return res, err
	}

	entries := parseRegisterReply(reply, students)
	if len(entries) == 0 {
		p.log.Info("register photo gave no usable marks", zap.String("owner", ownerID), zap.String("date", date.String()))
		res.Success = true
		return res, nil
	}

	for _, e := range entries {
		rec := model.AttendanceRecord{StudentID: e.student.ID, Date: date, Status: e.status}
		if e.date != "" {
			rec.Date = e.date
		}
		if rec.Status == model.Absent {
			reason := RegisterAbsenceReason
			rec.AbsenceReason = &reason
		}
		err := p.repo.Upsert(ctx, &rec)
		metrics.AttendanceUpserts.WithLabelValues(SourcePhoto, metrics.Result(err)).Inc()
		if err != nil {
			p.log.Warn("register row not saved", zap.String("student", e.student.ID), zap.Error(err))
			res.Errors = append(res.Errors, RowError{IndexNumber: e.student.IndexNumber, Error: err.Error()})
			continue
		}
		res.IdentifiedCount++
		res.AttendanceRecords = append(res.AttendanceRecords, MarkedRecord{IndexNumber: e.student.IndexNumber, Status: statusWord(e.status)})
	}

	res.Success = true
	if res.IdentifiedCount > 0 {
		res.Message = fmt.Sprintf("Successfully read and updated %d student records from register", res.IdentifiedCount)
	}
	p.log.Info("register photo processed", zap.String("owner", ownerID), zap.String("date", date.String()),
		zap.Int("identified", res.IdentifiedCount), zap.Int("errors", len(res.Errors)))
	return res, nil
}

func statusWord(status int) string {
	if status == model.Present {
		return "present"
	}
	return "absent"
}

func registerPrompt(students []model.Student, date model.Date) string {
	var b strings.Builder
	b.WriteString(`You are analyzing an attendance register photo from a Sri Lankan school. The register is a table/grid showing:
- Student INDEX NUMBERS in the first column
- Attendance marks in subsequent columns (1 = present, 0 = absent)
- Date columns across the top

REGISTERED STUDENTS (only update these students):
`)
	for _, s := range students {
		group := fmt.Sprintf("%d", s.Grade)
		if s.Section != nil && *s.Section != "" {
			group += "-" + *s.Section
		}
		fmt.Fprintf(&b, "- Index: %s, Name: %s, Grade: %s, ID: %s\n", s.IndexNumber, s.Name, group, s.ID)
	}
	fmt.Fprintf(&b, `
INSTRUCTIONS:
1. Read the attendance register table in the image
2. Find the column for date %[1]s (or today's date column)
3. For each row, read the INDEX NUMBER and the attendance mark (1 or 0) for that date
4. ONLY include students that are in the registered list; skip any other index number
5. If you cannot read the register clearly or find the date column, return an empty array

Return ONLY a valid JSON array with this exact structure:
[{"student_id": "the-student-id-from-above", "index_number": "the-index-you-read", "status": 1, "date": "%[1]s"}]

If the register is unclear or you cannot read it properly: []`, date)
	return b.String()
}
