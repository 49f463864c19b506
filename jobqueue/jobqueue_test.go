package jobqueue_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowline/rowline/jobqueue"
	"github.com/rowline/rowline/store"
)

func setup(t *testing.T) *store.DB {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rowline-*.db")
	require.NoError(t, err)
	f.Close()
	db, err := store.Make(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEnqueueAndAcquire(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	jobID, err := jobqueue.Enqueue(ctx, db, jobqueue.EnqueueRequest{
		DatasetID: "ds1", RefName: "main", UserID: "u1", SourcePath: "/tmp/x.csv",
		RunParameters: map[string]any{"delimiter": ","},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	job, err := jobqueue.Acquire(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, jobID, job.JobID)
	assert.Equal(t, store.JobRunning, job.Status)
}

func TestResumeOrphaned(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	jobID, err := jobqueue.Enqueue(ctx, db, jobqueue.EnqueueRequest{DatasetID: "ds1", RefName: "main", UserID: "u1"})
	require.NoError(t, err)
	_, err = jobqueue.Acquire(ctx, db)
	require.NoError(t, err)

	n, err := jobqueue.ResumeOrphaned(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := jobqueue.Status(ctx, db, jobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobPending, job.Status)
}
