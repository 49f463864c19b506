package store

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"

	"github.com/rowline/rowline/canon"
)

var commitsTracer = otel.Tracer("store")

// ManifestEntry binds one logical row id to the content hash of the row
// it resolves to as of a commit.
type ManifestEntry struct {
	LogicalRowID string
	RowHash      string
}

// SchemaColumn describes one column of one table as of a commit.
type SchemaColumn struct {
	TableKey string
	Name     string
	Order    int
	Type     string
}

// Commit is the persisted, immutable unit of history.
type Commit struct {
	CommitID       string
	DatasetID      string
	ParentCommitID sql.NullString
	Message        string
	AuthorID       string
	CreatedAt      string
}

// DeriveCommitID computes the content-derived commit id: SHA-256 over the
// canonical JSON of {dataset_id, parent_commit_id, manifest, message,
// author_id}, where manifest is sorted by logical_row_id and each entry
// is encoded as the 2-element array [logical_row_id, row_hash] — the
// wire shape the commit-id contract is defined over, so any conforming
// implementation derives the same id from the same content. Because the
// id is wholly a function of its content, retrying an identical commit
// produces the same id rather than a duplicate.
func DeriveCommitID(datasetID string, parentCommitID string, manifest []ManifestEntry, message, authorID string) string {
	entries := make([]canon.Value, len(manifest))
	for i, m := range manifest {
		entries[i] = canon.Array([]canon.Value{
			canon.String(m.LogicalRowID),
			canon.String(m.RowHash),
		})
	}

	parent := canon.Null()
	if parentCommitID != "" {
		parent = canon.String(parentCommitID)
	}

	payload := canon.Object(map[string]canon.Value{
		"dataset_id":       canon.String(datasetID),
		"parent_commit_id": parent,
		"manifest":         canon.Array(entries),
		"message":          canon.String(message),
		"author_id":        canon.String(authorID),
	})

	return canon.HashBytes(canon.CanonicalJSON(payload))
}

// InsertCommit writes a commit row, its manifest and its schema in one
// call. It is idempotent: if commit_id already exists (a retried import
// re-derived the same content-addressed id), the insert is a no-op and
// no error is returned, matching the content-addressed retry semantics
// commits are built on.
func InsertCommit(ctx context.Context, e Execer, c Commit, manifest []ManifestEntry, schema []SchemaColumn) error {
	ctx, span := commitsTracer.Start(ctx, "InsertCommit")
	defer span.End()

	var exists bool
	if err := e.QueryRowContext(ctx, `select exists (select 1 from commits where commit_id = ?)`, c.CommitID).Scan(&exists); err != nil {
		return Storage(err)
	}
	if exists {
		return nil
	}

	_, err := e.ExecContext(ctx, `
		insert into commits (commit_id, dataset_id, parent_commit_id, message, author_id)
		values (?, ?, ?, ?, ?)
	`, c.CommitID, c.DatasetID, c.ParentCommitID, c.Message, c.AuthorID)
	if err != nil {
		return Storage(err)
	}

	manifestStmt, err := e.PrepareContext(ctx, `
		insert into commit_rows (commit_id, logical_row_id, row_hash) values (?, ?, ?)
	`)
	if err != nil {
		return Storage(err)
	}
	defer manifestStmt.Close()

	for _, m := range manifest {
		if _, err := manifestStmt.ExecContext(ctx, c.CommitID, m.LogicalRowID, m.RowHash); err != nil {
			return Storage(err)
		}
	}

	schemaStmt, err := e.PrepareContext(ctx, `
		insert into commit_schemas (commit_id, table_key, column_name, column_order, column_type)
		values (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Storage(err)
	}
	defer schemaStmt.Close()

	for _, col := range schema {
		if _, err := schemaStmt.ExecContext(ctx, c.CommitID, col.TableKey, col.Name, col.Order, col.Type); err != nil {
			return Storage(err)
		}
	}

	return nil
}

// GetCommit fetches a commit's header row.
func GetCommit(ctx context.Context, e Execer, commitID string) (Commit, error) {
	ctx, span := commitsTracer.Start(ctx, "GetCommit")
	defer span.End()

	var c Commit
	err := e.QueryRowContext(ctx, `
		select commit_id, dataset_id, parent_commit_id, message, author_id, created
		from commits where commit_id = ?
	`, commitID).Scan(&c.CommitID, &c.DatasetID, &c.ParentCommitID, &c.Message, &c.AuthorID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return Commit{}, NotFound("commit", commitID)
	}
	if err != nil {
		return Commit{}, Storage(err)
	}
	return c, nil
}

// ListCommitHistory walks parent_commit_id pointers starting at
// commitID, most recent first, up to limit entries.
func ListCommitHistory(ctx context.Context, e Execer, commitID string, limit int) ([]Commit, error) {
	ctx, span := commitsTracer.Start(ctx, "ListCommitHistory")
	defer span.End()

	var history []Commit
	cur := commitID
	for cur != "" && (limit <= 0 || len(history) < limit) {
		c, err := GetCommit(ctx, e, cur)
		if err != nil {
			return nil, err
		}
		history = append(history, c)
		if !c.ParentCommitID.Valid {
			break
		}
		cur = c.ParentCommitID.String
	}
	return history, nil
}

// GetManifest returns every (logical_row_id, row_hash) binding for a
// commit, ordered by logical_row_id (which is zero-padded so lexical
// order matches numeric row order).
func GetManifest(ctx context.Context, e Execer, commitID string) ([]ManifestEntry, error) {
	ctx, span := commitsTracer.Start(ctx, "GetManifest")
	defer span.End()

	rows, err := e.QueryContext(ctx, `
		select logical_row_id, row_hash from commit_rows
		where commit_id = ? order by logical_row_id
	`, commitID)
	if err != nil {
		return nil, Storage(err)
	}
	defer rows.Close()

	var out []ManifestEntry
	for rows.Next() {
		var m ManifestEntry
		if err := rows.Scan(&m.LogicalRowID, &m.RowHash); err != nil {
			return nil, Storage(err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetSchema returns a commit's columns for the given table key, ordered
// by declared column order.
func GetSchema(ctx context.Context, e Execer, commitID, tableKey string) ([]SchemaColumn, error) {
	ctx, span := commitsTracer.Start(ctx, "GetSchema")
	defer span.End()

	rows, err := e.QueryContext(ctx, `
		select table_key, column_name, column_order, column_type from commit_schemas
		where commit_id = ? and table_key = ? order by column_order
	`, commitID, tableKey)
	if err != nil {
		return nil, Storage(err)
	}
	defer rows.Close()

	var out []SchemaColumn
	for rows.Next() {
		var c SchemaColumn
		if err := rows.Scan(&c.TableKey, &c.Name, &c.Order, &c.Type); err != nil {
			return nil, Storage(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListTableKeys returns the distinct table keys present in a commit's
// schema, in first-seen (insertion) order.
func ListTableKeys(ctx context.Context, e Execer, commitID string) ([]string, error) {
	ctx, span := commitsTracer.Start(ctx, "ListTableKeys")
	defer span.End()

	rows, err := e.QueryContext(ctx, `
		select table_key from commit_schemas
		where commit_id = ?
		group by table_key
		order by min(rowid)
	`, commitID)
	if err != nil {
		return nil, Storage(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, Storage(err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
