package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
)

var refsTracer = otel.Tracer("store")

type Ref struct {
	DatasetID string
	Name      string
	CommitID  sql.NullString
	UpdatedAt string
}

// CreateRef creates a new ref pointing at commitID ("" for an unborn ref
// with no commits yet). Fails with KindConflict if the ref already
// exists: creation is not an upsert.
func CreateRef(ctx context.Context, e Execer, datasetID, name, commitID string) error {
	ctx, span := refsTracer.Start(ctx, "CreateRef")
	defer span.End()

	var nullableCommit sql.NullString
	if commitID != "" {
		nullableCommit = sql.NullString{String: commitID, Valid: true}
	}

	_, err := e.ExecContext(ctx, `
		insert into refs (dataset_id, name, commit_id) values (?, ?, ?)
	`, datasetID, name, nullableCommit)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return Conflict(fmt.Sprintf("ref %q already exists", name))
		}
		return Storage(err)
	}
	return nil
}

// GetRef fetches a ref by (dataset, name).
func GetRef(ctx context.Context, e Execer, datasetID, name string) (Ref, error) {
	ctx, span := refsTracer.Start(ctx, "GetRef")
	defer span.End()

	var r Ref
	err := e.QueryRowContext(ctx, `
		select dataset_id, name, commit_id, updated from refs
		where dataset_id = ? and name = ?
	`, datasetID, name).Scan(&r.DatasetID, &r.Name, &r.CommitID, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return Ref{}, NotFound("ref", name)
	}
	if err != nil {
		return Ref{}, Storage(err)
	}
	return r, nil
}

// ListRefs lists every ref defined for a dataset, ordered by name.
func ListRefs(ctx context.Context, e Execer, datasetID string) ([]Ref, error) {
	ctx, span := refsTracer.Start(ctx, "ListRefs")
	defer span.End()

	rows, err := e.QueryContext(ctx, `
		select dataset_id, name, commit_id, updated from refs
		where dataset_id = ? order by name
	`, datasetID)
	if err != nil {
		return nil, Storage(err)
	}
	defer rows.Close()

	var out []Ref
	for rows.Next() {
		var r Ref
		if err := rows.Scan(&r.DatasetID, &r.Name, &r.CommitID, &r.UpdatedAt); err != nil {
			return nil, Storage(err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CompareAndSetRef atomically advances a ref from expectedCommitID to
// newCommitID. expectedCommitID == "" matches an unborn ref (commit_id
// is null). SQLite has no SELECT ... FOR UPDATE, so the compare and the
// set happen in the same statement: the WHERE clause re-checks the
// expected value, and a RowsAffected() of zero means someone else moved
// the ref first.
func CompareAndSetRef(ctx context.Context, e Execer, datasetID, name, expectedCommitID, newCommitID string) error {
	ctx, span := refsTracer.Start(ctx, "CompareAndSetRef")
	defer span.End()

	var expected sql.NullString
	if expectedCommitID != "" {
		expected = sql.NullString{String: expectedCommitID, Valid: true}
	}

	res, err := e.ExecContext(ctx, `
		update refs set commit_id = ?, updated = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		where dataset_id = ? and name = ? and commit_id is ?
	`, newCommitID, datasetID, name, expected)
	if err != nil {
		return Storage(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Storage(err)
	}
	if n == 0 {
		if _, getErr := GetRef(ctx, e, datasetID, name); getErr != nil {
			return getErr
		}
		return Conflict(fmt.Sprintf("ref %q moved concurrently, expected parent %q", name, expectedCommitID))
	}
	return nil
}

// DeleteRef removes a ref. defaultBranch is protected from deletion, the
// same way a git remote refuses to delete its HEAD target.
func DeleteRef(ctx context.Context, e Execer, datasetID, name, defaultBranch string) error {
	ctx, span := refsTracer.Start(ctx, "DeleteRef")
	defer span.End()

	if name == defaultBranch {
		return InvalidInput(fmt.Sprintf("cannot delete default ref %q", name))
	}

	res, err := e.ExecContext(ctx, `delete from refs where dataset_id = ? and name = ?`, datasetID, name)
	if err != nil {
		return Storage(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Storage(err)
	}
	if n == 0 {
		return NotFound("ref", name)
	}
	return nil
}

func isUniqueConstraintErr(err error) bool {
	sqliteErr, ok := err.(sqlite3.Error)
	return ok && (sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique)
}
