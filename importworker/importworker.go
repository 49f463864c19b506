// Package importworker runs the background pool that drains the job
// queue: for each acquired import job it parses the uploaded file,
// builds a commit from the parsed tables, advances the target ref, and
// records the outcome back onto the job. The worker-pool shape (a fixed
// set of goroutines polling a shared unit of work, wrapped in
// avast/retry-go backoff) follows the event-stream consumer used
// elsewhere in this codebase; there is no persistent connection here,
// so the loop polls the queue on a ticker instead of reading a socket.
package importworker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/rowline/rowline/commitbuilder"
	"github.com/rowline/rowline/jobqueue"
	"github.com/rowline/rowline/log"
	"github.com/rowline/rowline/parser"
	"github.com/rowline/rowline/store"
)

// Config tunes the worker pool. Zero values fall back to sane
// defaults in New.
type Config struct {
	WorkerCount  int
	PollInterval time.Duration
	MaxRetries   uint
	RetryDelay   time.Duration
	BatchSize    int
	HashWorkers  int
	DefaultRef   string
}

// Notifier receives best-effort job-lifecycle notifications. httpapi's
// event bus implements this so a dataset's websocket subscribers learn
// about completions without the worker depending on the HTTP layer.
type Notifier interface {
	Notify(datasetID, jobID, eventType, detail string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string, string, string) {}

// Pool drains jobqueue's job queue with a fixed set of goroutines.
type Pool struct {
	db     *store.DB
	cfg    Config
	notify Notifier
	logger interface {
		Error(msg string, args ...any)
		Info(msg string, args ...any)
	}

	wg sync.WaitGroup
}

// SetNotifier wires a Notifier for job-lifecycle events. Optional: a
// pool with no notifier set runs identically, just silently.
func (p *Pool) SetNotifier(n Notifier) { p.notify = n }

func New(db *store.DB, cfg Config) *Pool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5000
	}
	if cfg.DefaultRef == "" {
		cfg.DefaultRef = "main"
	}

	return &Pool{db: db, cfg: cfg, notify: noopNotifier{}, logger: log.New("importworker")}
}

// Start resumes any job orphaned by a prior process crash (see
// jobqueue.ResumeOrphaned — commit ids and row upserts are idempotent,
// so simply re-running a half-finished job is safe) and launches the
// worker goroutines. It returns immediately; call Stop to drain them.
func (p *Pool) Start(ctx context.Context) error {
	n, err := jobqueue.ResumeOrphaned(ctx, p.db)
	if err != nil {
		return err
	}
	if n > 0 {
		p.logger.Info("resumed orphaned jobs", "count", n)
	}

	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
	return nil
}

func (p *Pool) Stop() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drainOnce(ctx)
		}
	}
}

// drainOnce processes pending jobs until the queue reports empty, so a
// busy queue does not wait a full poll interval between jobs on this
// worker.
func (p *Pool) drainOnce(ctx context.Context) {
	for {
		job, err := jobqueue.Acquire(ctx, p.db)
		if store.Is(err, store.KindNotFound) {
			return
		}
		if err != nil {
			p.logger.Error("failed to acquire job", "err", err)
			return
		}

		if err := p.runJob(ctx, job); err != nil {
			p.logger.Error("import job failed", "job_id", job.JobID, "err", err)
			if markErr := store.MarkJobFailed(ctx, p.db.DB, job.JobID, err.Error()); markErr != nil {
				p.logger.Error("failed to mark job failed", "job_id", job.JobID, "err", markErr)
			}
			p.notify.Notify(job.DatasetID, job.JobID, "job.failed", err.Error())
			continue
		}
		p.notify.Notify(job.DatasetID, job.JobID, "job.completed", "")
	}
}

type runParameters struct {
	Message  string `json:"message"`
	AuthorID string `json:"author_id"`
}

// runJob executes one import end to end: parse the uploaded file,
// build a commit from its tables, and CAS-advance the target ref. It
// retries the whole job a bounded number of times (transient SQLite
// busy errors, not logical failures) before giving up.
func (p *Pool) runJob(ctx context.Context, job store.Job) error {
	var params runParameters
	if job.RunParameters != "" {
		if err := json.Unmarshal([]byte(job.RunParameters), &params); err != nil {
			return store.InvalidInput("decoding run parameters: " + err.Error())
		}
	}
	if params.Message == "" {
		params.Message = "import"
	}
	if params.AuthorID == "" {
		params.AuthorID = job.UserID
	}

	return retry.Do(func() error {
		return p.doImport(ctx, job, params)
	},
		retry.Attempts(p.cfg.MaxRetries),
		retry.Delay(p.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			// only storage-layer errors (lock contention, transient I/O)
			// are worth retrying; invalid input or parser errors will
			// fail identically on every attempt.
			return store.Is(err, store.KindStorage)
		}),
	)
}

func (p *Pool) doImport(ctx context.Context, job store.Job, params runParameters) error {
	if !job.SourcePath.Valid {
		return store.InvalidInput("job has no source file to import")
	}

	prs, err := parser.ForPath(job.SourcePath.String)
	if err != nil {
		return err
	}

	parsed, err := prs.Parse(ctx, job.SourcePath.String)
	if err != nil {
		return err
	}

	tables := make([]commitbuilder.TableInput, len(parsed.Tables))
	for i, t := range parsed.Tables {
		cols := make([]commitbuilder.ColumnDef, len(t.Columns))
		for j, c := range t.Columns {
			cols[j] = commitbuilder.ColumnDef{Name: c.Name, Type: string(c.Type)}
		}
		tables[i] = commitbuilder.TableInput{TableKey: t.Key, Columns: cols, Rows: t.Rows}
	}

	refName := job.RefName
	if refName == "" {
		refName = p.cfg.DefaultRef
	}

	ref, err := store.GetRef(ctx, p.db.DB, job.DatasetID, refName)
	parentCommitID := ""
	if err == nil && ref.CommitID.Valid {
		parentCommitID = ref.CommitID.String
	} else if err != nil && !store.Is(err, store.KindNotFound) {
		return err
	}
	if store.Is(err, store.KindNotFound) {
		if createErr := store.CreateRef(ctx, p.db.DB, job.DatasetID, refName, ""); createErr != nil && !store.Is(createErr, store.KindConflict) {
			return createErr
		}
	}

	result, err := commitbuilder.Build(ctx, p.db, commitbuilder.Request{
		DatasetID:      job.DatasetID,
		ParentCommitID: parentCommitID,
		Message:        params.Message,
		AuthorID:       params.AuthorID,
		Tables:         tables,
		HashWorkers:    p.cfg.HashWorkers,
	})
	if err != nil {
		return err
	}

	if err := store.CompareAndSetRef(ctx, p.db.DB, job.DatasetID, refName, parentCommitID, result.CommitID); err != nil {
		return err
	}

	return store.MarkJobCompleted(ctx, p.db.DB, job.JobID, result.CommitID)
}
