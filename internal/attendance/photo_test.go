package attendance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edupulse/internal/aiclient"
	"edupulse/internal/model"
	"edupulse/internal/store"
	"edupulse/internal/testutil"
)

type fakeLLM struct {
	reply   string
	err     error
	calls   int
	purpose string
	image   string
}

func (f *fakeLLM) ChatComplete(_ context.Context, purpose string, _ []aiclient.Message, image string) (string, error) {
	f.calls++
	f.purpose = purpose
	f.image = image
	return f.reply, f.err
}

const testImage = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="

func TestPhotoMarker_Mark(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := testutil.CreateStudent(t, f.db, f.teacher.ID, "Ama", "1001", 10, "")
	b := testutil.CreateStudent(t, f.db, f.teacher.ID, "Kofi", "1002", 10, "")

	llm := &fakeLLM{reply: "```json\n[" +
		`{"student_id":"` + a.ID + `","index_number":"1001","status":1},` +
		`{"student_id":"ghost","index_number":1002,"status":0},` +
		`{"student_id":"ghost","index_number":"9999","status":1}` +
		"]\n```"}
	marker := NewPhotoMarker(f.repo, f.roster, llm, 0, zap.NewNop())

	res, err := marker.Mark(ctx, f.teacher.ID, PhotoRequest{Image: testImage, Date: "2024-01-08"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.IdentifiedCount)
	assert.Equal(t, 2, res.TotalStudents)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []MarkedRecord{{IndexNumber: "1001", Status: "present"}, {IndexNumber: "1002", Status: "absent"}}, res.AttendanceRecords)
	assert.Equal(t, aiclient.PurposeAttendance, llm.purpose)
	assert.Equal(t, testImage, llm.image)

	rec, err := f.repo.Get(ctx, b.ID, "2024-01-08")
	require.NoError(t, err)
	assert.Equal(t, model.Absent, rec.Status)
	require.NotNil(t, rec.AbsenceReason)
	assert.Equal(t, RegisterAbsenceReason, *rec.AbsenceReason)

	records, err := f.repo.ListByDateRange(ctx, f.teacher.ID, "2024-01-08", "2024-01-08", "")
	require.NoError(t, err)
	assert.Len(t, records, 2, "unknown index numbers leave no rows behind")
}

func TestPhotoMarker_MarkRejectsBadInput(t *testing.T) {
	f := setup(t)
	llm := &fakeLLM{}
	marker := NewPhotoMarker(f.repo, f.roster, llm, 64, zap.NewNop())

	tests := []struct {
		name    string
		req     PhotoRequest
		wantErr error
	}{
		{name: "not a data url", req: PhotoRequest{Image: "https://cdn.test/x.jpg", Date: "2024-01-08"}, wantErr: ErrInvalidImage},
		{name: "too large", req: PhotoRequest{Image: "data:image/png;base64," + strings.Repeat("A", 100), Date: "2024-01-08"}, wantErr: ErrImageTooLarge},
		{name: "bad date", req: PhotoRequest{Image: testImage, Date: "2024-13-01"}, wantErr: model.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := marker.Mark(context.Background(), f.teacher.ID, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, res.Success)
			assert.NotNil(t, res.AttendanceRecords)
			assert.NotNil(t, res.Errors)
		})
	}
	assert.Zero(t, llm.calls)
}

func TestPhotoMarker_MarkOutcomes(t *testing.T) {
	gatewayErr := errors.New("boom")
	tests := []struct {
		name        string
		withStudent bool
		llm         *fakeLLM
		wantErr     error
		wantSuccess bool
		wantCalls   int
	}{
		{name: "empty roster skips the model", llm: &fakeLLM{reply: "[]"}, wantSuccess: false, wantCalls: 0},
		{name: "gateway failure", withStudent: true, llm: &fakeLLM{err: gatewayErr}, wantErr: gatewayErr, wantCalls: 1},
		{name: "prose reply", withStudent: true, llm: &fakeLLM{reply: "I cannot read this image."}, wantSuccess: true, wantCalls: 1},
		{name: "malformed entries", withStudent: true, llm: &fakeLLM{reply: `[{"student_id":"x"},{"status":"present"}]`}, wantSuccess: true, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			if tt.withStudent {
				testutil.CreateStudent(t, f.db, f.teacher.ID, "Ama", "1001", 10, "")
			}
			marker := NewPhotoMarker(f.repo, f.roster, tt.llm, 0, zap.NewNop())

			res, err := marker.Mark(context.Background(), f.teacher.ID, PhotoRequest{Image: testImage, Date: "2024-01-08"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Zero(t, res.IdentifiedCount)
			assert.Equal(t, tt.wantCalls, tt.llm.calls)
			assert.NotEmpty(t, res.Message)
		})
	}
}

func TestPhotoMarker_EntryDateOverridesRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := testutil.CreateStudent(t, f.db, f.teacher.ID, "Ama", "1001", 10, "")
	llm := &fakeLLM{reply: `[{"student_id":"` + a.ID + `","status":1,"date":"2024-01-05"}]`}
	marker := NewPhotoMarker(f.repo, f.roster, llm, 0, zap.NewNop())

	_, err := marker.Mark(ctx, f.teacher.ID, PhotoRequest{Image: testImage, Date: "2024-01-08"})
	require.NoError(t, err)

	_, err = f.repo.Get(ctx, a.ID, "2024-01-05")
	assert.NoError(t, err)
	_, err = f.repo.Get(ctx, a.ID, "2024-01-08")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPhotoMarker_MarkCollectsRowErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := testutil.CreateStudent(t, f.db, f.teacher.ID, "Ama", "1001", 10, "")

	llm := &fakeLLM{reply: `[` +
		`{"student_id":"ghost","index_number":"9999","status":1},` +
		`{"student_id":"` + a.ID + `","index_number":"1001","status":0}` +
		`]`}
	marker := NewPhotoMarker(f.repo, withGhost(f), llm, 0, zap.NewNop())

	res, err := marker.Mark(ctx, f.teacher.ID, PhotoRequest{Image: testImage, Date: "2024-01-08"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.IdentifiedCount)
	assert.Equal(t, 2, res.TotalStudents)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "9999", res.Errors[0].IndexNumber)
	assert.NotEmpty(t, res.Errors[0].Error)
	assert.Equal(t, []MarkedRecord{{IndexNumber: "1001", Status: "absent"}}, res.AttendanceRecords)

	rec, err := f.repo.Get(ctx, a.ID, "2024-01-08")
	require.NoError(t, err)
	assert.Equal(t, model.Absent, rec.Status)
}
