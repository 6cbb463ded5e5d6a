package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"edupulse/internal/metrics"
	"edupulse/internal/model"
	"edupulse/internal/queue"
)

// ErrJobDone is returned when a job that already finished is processed again.
var ErrJobDone = errors.New("photo job already finished")

// Publisher hands work to the worker process.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// JobView is a photo job together with its decoded result.
type JobView struct {
	model.PhotoJob
	Result *PhotoResult `json:"result,omitempty"`
}

// Jobs runs asynchronous photo marking: the API submits, the worker processes.
type Jobs struct {
	repo   *Repository
	marker *PhotoMarker
	pub    Publisher
	log    *zap.Logger
}

// NewJobs wires the job flow. pub may be nil in the worker, which only processes.
func NewJobs(repo *Repository, marker *PhotoMarker, pub Publisher, log *zap.Logger) *Jobs {
	return &Jobs{repo: repo, marker: marker, pub: pub, log: log}
}

// Submit records a pending job for a stored register photo and queues it.
func (j *Jobs) Submit(ctx context.Context, ownerID, date, imageURL string) (model.PhotoJob, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return model.PhotoJob{}, err
	}
	if j.pub == nil {
		return model.PhotoJob{}, errors.New("photo jobs are not enabled")
	}
	job, err := j.repo.InsertJob(ctx, model.PhotoJob{OwnerID: ownerID, Date: d, ImageURL: imageURL})
	if err != nil {
		return model.PhotoJob{}, err
	}
	if err := j.pub.Publish(ctx, queue.Message{Type: queue.TypePhotoMark, Body: []byte(job.ID)}); err != nil {
		msg := "could not queue job"
		_ = j.repo.FinishJob(ctx, job.ID, model.JobFailed, nil, &msg)
		return model.PhotoJob{}, fmt.Errorf("publish photo job: %w", err)
	}
	j.log.Info("photo job queued", zap.String("owner", ownerID), zap.String("job", job.ID))
	return job, nil
}

// Get returns one of the owner's jobs.
func (j *Jobs) Get(ctx context.Context, ownerID, id string) (JobView, error) {
	job, err := j.repo.GetJob(ctx, ownerID, id)
	if err != nil {
		return JobView{}, err
	}
	view := JobView{PhotoJob: *job}
	if job.Result != nil {
		var res PhotoResult
		if err := json.Unmarshal([]byte(*job.Result), &res); err == nil {
			view.Result = &res
		}
	}
	return view, nil
}

// Process runs the photo flow for a queued job and records the outcome.
func (j *Jobs) Process(ctx context.Context, id string) error {
	job, err := j.repo.GetJob(ctx, "", id)
	if err != nil {
		return fmt.Errorf("fetch job %s: %w", id, err)
	}
	if job.Status != model.JobPending {
		return ErrJobDone
	}
	claimed, err := j.repo.ClaimJob(ctx, id)
	if err != nil {
		return fmt.Errorf("claim job %s: %w", id, err)
	}
	if !claimed {
		return ErrJobDone
	}

	res, runErr := j.marker.MarkStored(ctx, job.OwnerID, job.ImageURL, job.Date)
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	result := string(payload)

	if runErr != nil {
		msg := runErr.Error()
		metrics.PhotoJobs.WithLabelValues(model.JobFailed).Inc()
		j.log.Warn("photo job failed", zap.String("job", id), zap.Error(runErr))
		return j.repo.FinishJob(ctx, id, model.JobFailed, &result, &msg)
	}
	metrics.PhotoJobs.WithLabelValues(model.JobProcessed).Inc()
	j.log.Info("photo job processed", zap.String("job", id), zap.Int("identified", res.IdentifiedCount))
	return j.repo.FinishJob(ctx, id, model.JobProcessed, &result, nil)
}
