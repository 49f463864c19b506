// Package jobqueue is the thin API importworker and httpapi share for
// enqueuing and claiming import jobs: job ids are minted here, all
// queue semantics (at-most-one-worker acquisition, crash-recovery
// resume) live in the store package proper.
package jobqueue

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/rowline/rowline/store"
)

// EnqueueRequest describes one import to run.
type EnqueueRequest struct {
	DatasetID     string
	RefName       string
	UserID        string
	SourcePath    string
	RunParameters map[string]any
}

// Enqueue inserts a new pending job and returns its id.
func Enqueue(ctx context.Context, db *store.DB, req EnqueueRequest) (string, error) {
	params, err := json.Marshal(req.RunParameters)
	if err != nil {
		return "", store.InvalidInput("encoding run parameters: " + err.Error())
	}

	jobID := uuid.New().String()
	job := store.Job{
		JobID:         jobID,
		RunType:       "import",
		DatasetID:     req.DatasetID,
		RefName:       req.RefName,
		UserID:        req.UserID,
		RunParameters: string(params),
	}
	if req.SourcePath != "" {
		job.SourcePath.String, job.SourcePath.Valid = req.SourcePath, true
	}

	if err := store.EnqueueJob(ctx, db.DB, job); err != nil {
		return "", err
	}
	return jobID, nil
}

// Status returns the current state of a job.
func Status(ctx context.Context, db *store.DB, jobID string) (store.Job, error) {
	return store.GetJob(ctx, db.DB, jobID)
}

// Acquire claims the oldest pending job, marking it running.
func Acquire(ctx context.Context, db *store.DB) (store.Job, error) {
	return store.AcquireNextPendingJob(ctx, db)
}

// ResumeOrphaned requeues jobs left "running" by a prior process that
// never marked them completed or failed, so worker startup can safely
// pick them back up (see importworker.Pool.Start).
func ResumeOrphaned(ctx context.Context, db *store.DB) (int, error) {
	return store.ResetRunningJobs(ctx, db.DB)
}
