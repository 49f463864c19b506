package store

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel"
)

var rowsTracer = otel.Tracer("store")

var errMismatchedLengths = errors.New("store: hashes and data slices have different lengths")

// UpsertRows inserts the given (hash, canonical JSON) pairs, skipping any
// hash already present. Content addressing makes this idempotent: a row
// uploaded in ten different imports is stored exactly once. Returns the
// number of rows newly written (the rest were already deduplicated).
func UpsertRows(ctx context.Context, e Execer, hashes []string, data [][]byte) (int, error) {
	ctx, span := rowsTracer.Start(ctx, "UpsertRows")
	defer span.End()

	if len(hashes) != len(data) {
		return 0, Internal(errMismatchedLengths)
	}

	stmt, err := e.PrepareContext(ctx, `
		insert into rows (row_hash, data, byte_size)
		values (?, ?, ?)
		on conflict (row_hash) do nothing
	`)
	if err != nil {
		return 0, Storage(err)
	}
	defer stmt.Close()

	written := 0
	for i, h := range hashes {
		res, err := stmt.ExecContext(ctx, h, data[i], len(data[i]))
		if err != nil {
			return written, Storage(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return written, Storage(err)
		}
		written += int(n)
	}
	return written, nil
}

// RowsExist reports which of the given hashes are already present in the
// store, so callers (commitbuilder) can leave rows that are already
// stored out of the batch they upsert.
func RowsExist(ctx context.Context, e Execer, hashes []string) (map[string]bool, error) {
	ctx, span := rowsTracer.Start(ctx, "RowsExist")
	defer span.End()

	exist := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return exist, nil
	}

	f := FilterIn("row_hash", hashes)
	query := "select row_hash from rows where " + f.Condition()
	rows, err := e.QueryContext(ctx, query, f.Arg()...)
	if err != nil {
		return nil, Storage(err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, Storage(err)
		}
		exist[h] = true
	}
	return exist, rows.Err()
}

// FetchRow returns the canonical JSON payload stored for a content hash.
func FetchRow(ctx context.Context, e Execer, hash string) ([]byte, error) {
	ctx, span := rowsTracer.Start(ctx, "FetchRow")
	defer span.End()

	var data []byte
	err := e.QueryRowContext(ctx, `select data from rows where row_hash = ?`, hash).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, NotFound("row", hash)
	}
	if err != nil {
		return nil, Storage(err)
	}
	return data, nil
}

// FetchRows batch-fetches canonical JSON payloads for a set of hashes,
// preserving no particular order; callers reassemble order from the
// manifest's logical_row_id ordering.
func FetchRows(ctx context.Context, e Execer, hashes []string) (map[string][]byte, error) {
	ctx, span := rowsTracer.Start(ctx, "FetchRows")
	defer span.End()

	out := make(map[string][]byte, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}

	f := FilterIn("row_hash", hashes)
	query := "select row_hash, data from rows where " + f.Condition()
	rows, err := e.QueryContext(ctx, query, f.Arg()...)
	if err != nil {
		return nil, Storage(err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		var data []byte
		if err := rows.Scan(&h, &data); err != nil {
			return nil, Storage(err)
		}
		out[h] = data
	}
	return out, rows.Err()
}
