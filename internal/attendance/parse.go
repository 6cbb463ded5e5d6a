package attendance

import (
	"encoding/json"
	"strings"

	"edupulse/internal/aiclient"
	"edupulse/internal/model"
)

// registerEntry is one validated mark read from a register photo.
type registerEntry struct {
	student model.Student
	status  int
	date    model.Date
}

type rawEntry struct {
	StudentID   *string         `json:"student_id"`
	IndexNumber json.RawMessage `json:"index_number"`
	Status      *json.Number    `json:"status"`
	Date        *string         `json:"date"`
}

// parseRegisterReply turns an untrusted model reply into marks for known students.
// An entry is matched by student_id; a non-empty index_number must then belong to that same student.
// Entries with an unknown id fall back to the index number.
// Elements are decoded one at a time so a single bad entry does not discard the rest.
// When the same student appears more than once the last entry wins.
func parseRegisterReply(reply string, students []model.Student) []registerEntry {
	arr, ok := aiclient.ExtractArray(reply)
	if !ok {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(arr), &elems); err != nil {
		return nil
	}

	byID := make(map[string]model.Student, len(students))
	byIndex := make(map[string]model.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
		byIndex[s.IndexNumber] = s
	}

	order := []string{}
	picked := map[string]registerEntry{}
	for _, raw := range elems {
		var e rawEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		if e.StudentID == nil || *e.StudentID == "" || e.Status == nil {
			continue
		}
		status, err := e.Status.Int64()
		if err != nil || (status != model.Absent && status != model.Present) {
			continue
		}
		index := strings.TrimSpace(indexText(e.IndexNumber))
		st, ok := byID[*e.StudentID]
		switch {
		case ok && index != "" && index != st.IndexNumber:
			// id and index number disagree
			continue
		case !ok && index != "":
			st, ok = byIndex[index]
		}
		if !ok {
			continue
		}
		entry := registerEntry{student: st, status: int(status)}
		if e.Date != nil {
			if d, err := model.ParseDate(*e.Date); err == nil {
				entry.date = d
			}
		}
		if _, seen := picked[st.ID]; !seen {
			order = append(order, st.ID)
		}
		picked[st.ID] = entry
	}

	out := make([]registerEntry, 0, len(order))
	for _, id := range order {
		out = append(out, picked[id])
	}
	return out
}

// indexText accepts index numbers the model wrote either as strings or as bare numbers.
func indexText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
