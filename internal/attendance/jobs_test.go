package attendance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edupulse/internal/model"
	"edupulse/internal/queue"
	"edupulse/internal/store"
	"edupulse/internal/testutil"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, queue.Message) error {
	return errors.New("queue down")
}

func TestJobs_SubmitAndProcess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	st := testutil.CreateStudent(t, f.db, f.teacher.ID, "Ama", "1001", 10, "")
	llm := &fakeLLM{reply: `[{"student_id":"` + st.ID + `","status":0}]`}
	q := queue.NewInMemory(4)
	jobs := NewJobs(f.repo, NewPhotoMarker(f.repo, f.roster, llm, 0, zap.NewNop()), q, zap.NewNop())

	job, err := jobs.Submit(ctx, f.teacher.ID, "2024-01-08", "https://cdn.test/registers/page1.jpg")
	require.NoError(t, err)
	assert.Equal(t, model.JobPending, job.Status)

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := <-msgs
	assert.Equal(t, queue.TypePhotoMark, msg.Type)
	assert.Equal(t, job.ID, string(msg.Body))

	require.NoError(t, jobs.Process(ctx, job.ID))
	assert.Equal(t, "https://cdn.test/registers/page1.jpg", llm.image)

	view, err := jobs.Get(ctx, f.teacher.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessed, view.Status)
	require.NotNil(t, view.Result)
	assert.Equal(t, 1, view.Result.IdentifiedCount)

	rec, err := f.repo.Get(ctx, st.ID, "2024-01-08")
	require.NoError(t, err)
	assert.Equal(t, model.Absent, rec.Status)

	assert.ErrorIs(t, jobs.Process(ctx, job.ID), ErrJobDone)

	other := testutil.CreateTeacher(t, f.db, "other@school.test")
	_, err = jobs.Get(ctx, other.ID, job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobs_ProcessRecordsGatewayFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStudent(t, f.db, f.teacher.ID, "Ama", "1001", 10, "")
	llm := &fakeLLM{err: errors.New("upstream 500")}
	jobs := NewJobs(f.repo, NewPhotoMarker(f.repo, f.roster, llm, 0, zap.NewNop()), queue.NewInMemory(1), zap.NewNop())

	job, err := jobs.Submit(ctx, f.teacher.ID, "2024-01-08", "https://cdn.test/p.jpg")
	require.NoError(t, err)
	require.NoError(t, jobs.Process(ctx, job.ID))

	view, err := jobs.Get(ctx, f.teacher.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, view.Status)
	require.NotNil(t, view.Error)
	assert.Contains(t, *view.Error, "upstream 500")
}

func TestJobs_SubmitPublishFailure(t *testing.T) {
	f := setup(t)
	jobs := NewJobs(f.repo, NewPhotoMarker(f.repo, f.roster, &fakeLLM{}, 0, zap.NewNop()), failingPublisher{}, zap.NewNop())

	_, err := jobs.Submit(context.Background(), f.teacher.ID, "2024-01-08", "https://cdn.test/p.jpg")
	require.Error(t, err)

	_, err = jobs.Submit(context.Background(), f.teacher.ID, "not-a-date", "https://cdn.test/p.jpg")
	assert.ErrorIs(t, err, model.ErrInvalidDate)
}

func TestJobs_ProcessSkipsClaimedJob(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	testutil.CreateStudent(t, f.db, f.teacher.ID, "Ama", "1001", 10, "")
	llm := &fakeLLM{reply: "[]"}
	jobs := NewJobs(f.repo, NewPhotoMarker(f.repo, f.roster, llm, 0, zap.NewNop()), queue.NewInMemory(1), zap.NewNop())

	job, err := jobs.Submit(ctx, f.teacher.ID, "2024-01-08", "https://cdn.test/p.jpg")
	require.NoError(t, err)

	claimed, err := f.repo.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, claimed)
	claimed, err = f.repo.ClaimJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "a job is claimed at most once")

	assert.ErrorIs(t, jobs.Process(ctx, job.ID), ErrJobDone)
	assert.Zero(t, llm.calls)

	view, err := jobs.Get(ctx, f.teacher.ID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, view.Status)
}
