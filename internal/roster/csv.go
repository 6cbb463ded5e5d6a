package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"edupulse/internal/metrics"
	"edupulse/internal/model"
	"edupulse/internal/validation"
)

// DefaultBatchSize is the number of rows written per round-trip.
const DefaultBatchSize = 100

var (
	ErrEmptyCSV     = errors.New("CSV file is empty or has no data rows")
	ErrMissingHeads = errors.New("CSV must have headers: name, index_number, grade")
)

// TemplateCSV is served as the downloadable import template.
const TemplateCSV = "name,index_number,grade,section,specialty,status\n" +
	"John Doe,12345,10,A,Science,active\n" +
	"Jane Smith,12346,11,B,Arts,active\n"

// ImportResult reports a CSV import.
type ImportResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

type studentWriter interface {
	Insert(ctx context.Context, st *model.Student) error
	BulkInsert(ctx context.Context, students []model.Student) error
}

// Importer loads rosters from CSV files.
type Importer struct {
	repo      studentWriter
	batchSize int
	log       *zap.Logger
}

// NewImporter creates an importer; batchSize <= 0 uses DefaultBatchSize.
func NewImporter(repo studentWriter, batchSize int, log *zap.Logger) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Importer{repo: repo, batchSize: batchSize, log: log}
}

type pendingRow struct {
	line    int
	student model.Student
}

// Import parses r and inserts every valid row for ownerID. Only a missing or malformed header
// fails the whole import; row-level problems are reported in the result.
func (im *Importer) Import(ctx context.Context, ownerID string, r io.Reader) (ImportResult, error) {
	res := ImportResult{Errors: []string{}}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return res, ErrEmptyCSV
	}
	if err != nil {
		return res, fmt.Errorf("read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, required := range []string{"name", "index_number", "grade"} {
		if _, ok := cols[required]; !ok {
			return res, ErrMissingHeads
		}
	}

	var rows []pendingRow
	sawData := false
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.StartLine
			}
			res.fail(line, "unreadable row")
			continue
		}
		line, _ := cr.FieldPos(0)
		if blank(record) {
			continue
		}
		sawData = true
		st, msg := parseRow(record, cols, ownerID)
		if msg != "" {
			res.fail(line, msg)
			continue
		}
		rows = append(rows, pendingRow{line: line, student: st})
	}
	if !sawData {
		return res, ErrEmptyCSV
	}

	for start := 0; start < len(rows); start += im.batchSize {
		end := min(start+im.batchSize, len(rows))
		im.writeBatch(ctx, rows[start:end], &res)
	}

	metrics.RosterImportRows.WithLabelValues("ok").Add(float64(res.Success))
	metrics.RosterImportRows.WithLabelValues("error").Add(float64(res.Failed))
	im.log.Info("roster import finished",
		zap.String("owner", ownerID), zap.Int("success", res.Success), zap.Int("failed", res.Failed))
	return res, nil
}

func (im *Importer) writeBatch(ctx context.Context, batch []pendingRow, res *ImportResult) {
	students := make([]model.Student, len(batch))
	for i, row := range batch {
		students[i] = row.student
	}
	err := im.repo.BulkInsert(ctx, students)
	if err == nil {
		res.Success += len(batch)
		return
	}
	im.log.Warn("batch insert failed, retrying rows individually", zap.Int("rows", len(batch)), zap.Error(err))
	for _, row := range batch {
		st := row.student
		st.ID = ""
		if err := im.repo.Insert(ctx, &st); err != nil {
			res.fail(row.line, err.Error())
			continue
		}
		res.Success++
	}
}

func (res *ImportResult) fail(line int, msg string) {
	res.Failed++
	res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", line, msg))
}

func parseRow(record []string, cols map[string]int, ownerID string) (model.Student, string) {
	if len(record) < 4 {
		return model.Student{}, "Incomplete row"
	}
	get := func(col string) string {
		i, ok := cols[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	name, index, gradeRaw := get("name"), get("index_number"), get("grade")
	if name == "" || index == "" || gradeRaw == "" {
		return model.Student{}, "Missing required fields"
	}
	grade, err := strconv.Atoi(gradeRaw)
	if err != nil || grade < 1 || grade > 13 {
		return model.Student{}, "invalid grade"
	}
	in := Input{
		Name:        name,
		IndexNumber: index,
		Grade:       grade,
		Section:     optional(get("section")),
		Specialty:   optional(get("specialty")),
		Status:      normaliseStatus(get("status")),
	}
	if err := validation.Struct(in); err != nil {
		return model.Student{}, validation.First(err)
	}
	return in.Student(ownerID), ""
}

func normaliseStatus(s string) string {
	switch strings.ToLower(s) {
	case model.StudentInactive:
		return model.StudentInactive
	case model.StudentAtRisk:
		return model.StudentAtRisk
	default:
		return model.StudentActive
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
