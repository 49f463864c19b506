package importworker_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowline/rowline/importworker"
	"github.com/rowline/rowline/jobqueue"
	"github.com/rowline/rowline/store"
)

func setup(t *testing.T) *store.DB {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rowline-importworker-*.db")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	db, err := store.Make(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "widgets.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{}
}

func (r *recordingNotifier) Notify(datasetID, jobID, eventType, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingNotifier) first() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[0]
}

// runPoolUntil starts the pool with a short poll interval, waits for fn
// to report success or the timeout to elapse, then stops the pool.
func runPoolUntil(t *testing.T, pool *importworker.Pool, timeout time.Duration, fn func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, pool.Start(ctx))

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	pool.Stop()
}

func TestPool_RunsQueuedImportToCompletion(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	path := writeCSV(t, "name,qty\nbolt,10\nnut,20\n")

	jobID, err := jobqueue.Enqueue(ctx, db, jobqueue.EnqueueRequest{
		DatasetID:  "ds1",
		RefName:    "main",
		UserID:     "user-1",
		SourcePath: path,
		RunParameters: map[string]any{
			"message":   "initial import",
			"author_id": "user-1",
		},
	})
	require.NoError(t, err)

	notifier := newRecordingNotifier()
	pool := importworker.New(db, importworker.Config{
		WorkerCount:  1,
		PollInterval: 10 * time.Millisecond,
		DefaultRef:   "main",
	})
	pool.SetNotifier(notifier)

	runPoolUntil(t, pool, 2*time.Second, func() bool {
		return notifier.count() > 0
	})

	require.Greater(t, notifier.count(), 0)
	assert.Equal(t, "job.completed", notifier.first())

	job, err := jobqueue.Status(ctx, db, jobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCompleted, job.Status)
	require.True(t, job.ResultCommitID.Valid)

	ref, err := store.GetRef(ctx, db.DB, "ds1", "main")
	require.NoError(t, err)
	require.True(t, ref.CommitID.Valid)
	assert.Equal(t, job.ResultCommitID.String, ref.CommitID.String)
}

func TestPool_ResumesOrphanedJobsOnStart(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	path := writeCSV(t, "name\nbolt\n")
	jobID, err := jobqueue.Enqueue(ctx, db, jobqueue.EnqueueRequest{
		DatasetID:  "ds1",
		RefName:    "main",
		UserID:     "user-1",
		SourcePath: path,
	})
	require.NoError(t, err)

	// Simulate a worker that claimed the job and then crashed before
	// finishing it.
	acquired, err := jobqueue.Acquire(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, store.JobRunning, acquired.Status)

	notifier := newRecordingNotifier()
	pool := importworker.New(db, importworker.Config{
		WorkerCount:  1,
		PollInterval: 10 * time.Millisecond,
	})
	pool.SetNotifier(notifier)

	runPoolUntil(t, pool, 2*time.Second, func() bool {
		return notifier.count() > 0
	})

	j, err := store.GetJob(ctx, db.DB, jobID)
	require.NoError(t, err)
	assert.Equal(t, store.JobCompleted, j.Status)
}
