package store

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
)

var jobsTracer = otel.Tracer("store")

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

type Job struct {
	JobID          string
	RunType        string
	Status         JobStatus
	DatasetID      string
	RefName        string
	UserID         string
	SourcePath     sql.NullString
	RunParameters  string
	ResultCommitID sql.NullString
	ErrorMessage   sql.NullString
	CreatedAt      string
	StartedAt      sql.NullString
	CompletedAt    sql.NullString
}

// EnqueueJob inserts a new pending job. jobID is caller-supplied
// (google/uuid in the worker layer) so callers can report the id back
// to an uploader before the row is durably committed.
func EnqueueJob(ctx context.Context, e Execer, j Job) error {
	ctx, span := jobsTracer.Start(ctx, "EnqueueJob")
	defer span.End()

	_, err := e.ExecContext(ctx, `
		insert into jobs (job_id, run_type, status, dataset_id, ref_name, user_id, source_path, run_parameters)
		values (?, ?, 'pending', ?, ?, ?, ?, ?)
	`, j.JobID, j.RunType, j.DatasetID, j.RefName, j.UserID, j.SourcePath, j.RunParameters)
	if err != nil {
		return Storage(err)
	}
	return nil
}

// GetJob fetches a job by id.
func GetJob(ctx context.Context, e Execer, jobID string) (Job, error) {
	ctx, span := jobsTracer.Start(ctx, "GetJob")
	defer span.End()

	var j Job
	err := e.QueryRowContext(ctx, `
		select job_id, run_type, status, dataset_id, ref_name, user_id, source_path,
		       run_parameters, result_commit_id, error_message, created, started, completed
		from jobs where job_id = ?
	`, jobID).Scan(&j.JobID, &j.RunType, &j.Status, &j.DatasetID, &j.RefName, &j.UserID, &j.SourcePath,
		&j.RunParameters, &j.ResultCommitID, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err == sql.ErrNoRows {
		return Job{}, NotFound("job", jobID)
	}
	if err != nil {
		return Job{}, Storage(err)
	}
	return j, nil
}

// AcquireNextPendingJob atomically claims the oldest pending job and
// marks it running, returning a KindNotFound error if the queue is
// empty. SQLite has no SELECT ... FOR UPDATE SKIP LOCKED; BEGIN
// IMMEDIATE takes the write lock up front so the select of the oldest
// pending job, the update that marks it running and the re-read of the
// claimed row act as the single-writer equivalent of "find one row and
// claim it," with the database's own locking serializing concurrent
// acquirers rather than row-level lock hints.
func AcquireNextPendingJob(ctx context.Context, db *DB) (Job, error) {
	ctx, span := jobsTracer.Start(ctx, "AcquireNextPendingJob")
	defer span.End()

	conn, err := db.Conn(ctx)
	if err != nil {
		return Job{}, Storage(err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "begin immediate"); err != nil {
		return Job{}, Storage(err)
	}
	committed := false
	defer func() {
		if !committed {
			conn.ExecContext(ctx, "rollback")
		}
	}()

	var jobID string
	err = conn.QueryRowContext(ctx, `
		select job_id from jobs where status = 'pending' order by created asc limit 1
	`).Scan(&jobID)
	if err == sql.ErrNoRows {
		return Job{}, NotFound("job", "pending")
	}
	if err != nil {
		return Job{}, Storage(err)
	}

	if _, err := conn.ExecContext(ctx, `
		update jobs set status = 'running', started = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		where job_id = ?
	`, jobID); err != nil {
		return Job{}, Storage(err)
	}

	var j Job
	err = conn.QueryRowContext(ctx, `
		select job_id, run_type, status, dataset_id, ref_name, user_id, source_path,
		       run_parameters, result_commit_id, error_message, created, started, completed
		from jobs where job_id = ?
	`, jobID).Scan(&j.JobID, &j.RunType, &j.Status, &j.DatasetID, &j.RefName, &j.UserID, &j.SourcePath,
		&j.RunParameters, &j.ResultCommitID, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return Job{}, Storage(err)
	}

	if _, err := conn.ExecContext(ctx, "commit"); err != nil {
		return Job{}, Storage(err)
	}
	committed = true
	return j, nil
}

// MarkJobCompleted records a successful job outcome.
func MarkJobCompleted(ctx context.Context, e Execer, jobID, resultCommitID string) error {
	ctx, span := jobsTracer.Start(ctx, "MarkJobCompleted")
	defer span.End()

	_, err := e.ExecContext(ctx, `
		update jobs set status = 'completed', result_commit_id = ?, completed = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		where job_id = ?
	`, resultCommitID, jobID)
	if err != nil {
		return Storage(err)
	}
	return nil
}

// MarkJobFailed records a terminal failure.
func MarkJobFailed(ctx context.Context, e Execer, jobID, message string) error {
	ctx, span := jobsTracer.Start(ctx, "MarkJobFailed")
	defer span.End()

	_, err := e.ExecContext(ctx, `
		update jobs set status = 'failed', error_message = ?, completed = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		where job_id = ?
	`, message, jobID)
	if err != nil {
		return Storage(err)
	}
	return nil
}

// ResetRunningJobs flips every job still marked running back to pending.
// Called once at worker startup: a process that died mid-job leaves
// orphaned running rows behind, and since commit ids and row upserts are
// both idempotent on their content, simply re-running the job is safe.
func ResetRunningJobs(ctx context.Context, e Execer) (int, error) {
	ctx, span := jobsTracer.Start(ctx, "ResetRunningJobs")
	defer span.End()

	res, err := e.ExecContext(ctx, `update jobs set status = 'pending', started = null where status = 'running'`)
	if err != nil {
		return 0, Storage(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, Storage(err)
	}
	return int(n), nil
}

// ListJobsByStatus lists jobs for a dataset filtered by status, most
// recent first.
func ListJobsByStatus(ctx context.Context, e Execer, datasetID string, status JobStatus) ([]Job, error) {
	ctx, span := jobsTracer.Start(ctx, "ListJobsByStatus")
	defer span.End()

	filters := []filter{FilterEq("dataset_id", datasetID)}
	if status != "" {
		filters = append(filters, FilterEq("status", string(status)))
	}
	where, args := whereClause(filters)

	rows, err := e.QueryContext(ctx, `
		select job_id, run_type, status, dataset_id, ref_name, user_id, source_path,
		       run_parameters, result_commit_id, error_message, created, started, completed
		from jobs`+where+` order by created desc`, args...)
	if err != nil {
		return nil, Storage(err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.JobID, &j.RunType, &j.Status, &j.DatasetID, &j.RefName, &j.UserID, &j.SourcePath,
			&j.RunParameters, &j.ResultCommitID, &j.ErrorMessage, &j.CreatedAt, &j.StartedAt, &j.CompletedAt); err != nil {
			return nil, Storage(err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
