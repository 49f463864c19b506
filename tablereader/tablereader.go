// Package tablereader exposes read-only views of a dataset at a given
// commit: table listing, schema, row counts and paginated row data. It
// caches commit schemas and table metadata in an in-process ristretto
// cache, safe because both are immutable once a commit exists.
package tablereader

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"go.opentelemetry.io/otel"

	"github.com/rowline/rowline/canon"
	"github.com/rowline/rowline/store"
)

var tracer = otel.Tracer("tablereader")

// Reader answers queries against one store, backed by a shared metadata
// cache. A process constructs one Reader and reuses it across requests.
type Reader struct {
	db    *store.DB
	cache *ristretto.Cache
}

// New builds a Reader. The cache sizing mirrors the commit-object cache
// pattern the versioning history layer uses elsewhere in this codebase:
// a 128MiB cost budget is ample for schema and
// metadata entries, which are small compared to row payloads.
func New(db *store.DB) (*Reader, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     1 << 27, // 128MiB
		BufferItems: 64,
	})
	if err != nil {
		return nil, store.Internal(fmt.Errorf("building table metadata cache: %w", err))
	}
	return &Reader{db: db, cache: cache}, nil
}

// ListTableKeys lists the tables present as of commitID.
func (r *Reader) ListTableKeys(ctx context.Context, commitID string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "ListTableKeys")
	defer span.End()
	return store.ListTableKeys(ctx, r.db.DB, commitID)
}

// GetTableSchema returns a table's columns as of commitID, in declared
// order. Results are cached: a commit's schema can never change once
// the commit exists.
func (r *Reader) GetTableSchema(ctx context.Context, commitID, tableKey string) ([]store.SchemaColumn, error) {
	ctx, span := tracer.Start(ctx, "GetTableSchema")
	defer span.End()

	key := "schema:" + commitID + ":" + tableKey
	if v, ok := r.cache.Get(key); ok {
		return v.([]store.SchemaColumn), nil
	}

	schema, err := store.GetSchema(ctx, r.db.DB, commitID, tableKey)
	if err != nil {
		return nil, err
	}
	if len(schema) == 0 {
		return nil, store.NotFound("table", tableKey)
	}

	r.cache.Set(key, schema, int64(len(schema)*64))
	return schema, nil
}

// TableMetadata summarizes a table as of a commit, the unit
// batch_get_table_metadata returns per table.
type TableMetadata struct {
	TableKey string
	Columns  []store.SchemaColumn
	RowCount int
}

// CountTableRows counts the manifest entries belonging to a table as of
// a commit.
func (r *Reader) CountTableRows(ctx context.Context, commitID, tableKey string) (int, error) {
	ctx, span := tracer.Start(ctx, "CountTableRows")
	defer span.End()

	key := "count:" + commitID + ":" + tableKey
	if v, ok := r.cache.Get(key); ok {
		return v.(int), nil
	}

	manifest, err := store.GetManifest(ctx, r.db.DB, commitID)
	if err != nil {
		return 0, err
	}

	count := 0
	prefix := tableKey + ":"
	for _, m := range manifest {
		if len(m.LogicalRowID) > len(prefix) && m.LogicalRowID[:len(prefix)] == prefix {
			count++
		}
	}

	r.cache.Set(key, count, 8)
	return count, nil
}

// BatchGetTableMetadata returns TableMetadata for every table in a
// commit, the data backing a dataset overview page.
func (r *Reader) BatchGetTableMetadata(ctx context.Context, commitID string) ([]TableMetadata, error) {
	ctx, span := tracer.Start(ctx, "BatchGetTableMetadata")
	defer span.End()

	keys, err := r.ListTableKeys(ctx, commitID)
	if err != nil {
		return nil, err
	}

	out := make([]TableMetadata, 0, len(keys))
	for _, k := range keys {
		cols, err := r.GetTableSchema(ctx, commitID, k)
		if err != nil {
			return nil, err
		}
		count, err := r.CountTableRows(ctx, commitID, k)
		if err != nil {
			return nil, err
		}
		out = append(out, TableMetadata{TableKey: k, Columns: cols, RowCount: count})
	}
	return out, nil
}

// Row is one row of table data as returned to callers, carrying the
// logical_row_id its manifest entry bound it to. Two rows with
// identical column values still disambiguate by this id, which is also
// what a cursor into GetTableData resumes after.
type Row struct {
	LogicalRowID string `json:"_logical_row_id"`
	Columns      []string
	Values       map[string]canon.Value
}

// Page is one window of row data, plus the cursor to request the next.
type Page struct {
	Rows       []Row
	NextCursor string // "" when this is the last page
}

// GetTableData returns one page of a table's rows as of commitID,
// ordered by logical_row_id (so by insertion order within the table).
// cursor is the logical_row_id to resume after; pass "" for the first
// page. pageSize <= 0 defaults to 500.
func (r *Reader) GetTableData(ctx context.Context, commitID, tableKey, cursor string, pageSize int) (Page, error) {
	ctx, span := tracer.Start(ctx, "GetTableData")
	defer span.End()

	if pageSize <= 0 {
		pageSize = 500
	}

	schema, err := r.GetTableSchema(ctx, commitID, tableKey)
	if err != nil {
		return Page{}, err
	}
	columns := make([]string, len(schema))
	for i, c := range schema {
		columns[i] = c.Name
	}

	manifest, err := store.GetManifest(ctx, r.db.DB, commitID)
	if err != nil {
		return Page{}, err
	}

	prefix := tableKey + ":"
	var windowed []store.ManifestEntry
	for _, m := range manifest {
		if len(m.LogicalRowID) <= len(prefix) || m.LogicalRowID[:len(prefix)] != prefix {
			continue
		}
		if cursor != "" && m.LogicalRowID <= cursor {
			continue
		}
		windowed = append(windowed, m)
		if len(windowed) > pageSize {
			break
		}
	}

	page := Page{}
	if len(windowed) > pageSize {
		page.NextCursor = windowed[pageSize-1].LogicalRowID
		windowed = windowed[:pageSize]
	}

	hashes := make([]string, len(windowed))
	for i, m := range windowed {
		hashes[i] = m.RowHash
	}
	payloads, err := store.FetchRows(ctx, r.db.DB, hashes)
	if err != nil {
		return Page{}, err
	}

	page.Rows = make([]Row, len(windowed))
	for i, m := range windowed {
		raw, ok := payloads[m.RowHash]
		if !ok {
			return Page{}, store.NotFound("row", m.RowHash)
		}
		values, err := decodeStoredRow(raw)
		if err != nil {
			return Page{}, store.Internal(fmt.Errorf("decoding stored row %s: %w", m.RowHash, err))
		}
		page.Rows[i] = Row{LogicalRowID: m.LogicalRowID, Columns: columns, Values: values}
	}

	return page, nil
}

// GetTableDataStream invokes fn once per row of a table as of commitID,
// in logical_row_id order, fetching rows in pageSize-sized batches so a
// full-table export never has to hold the whole table in memory.
func (r *Reader) GetTableDataStream(ctx context.Context, commitID, tableKey string, pageSize int, fn func(Row) error) error {
	ctx, span := tracer.Start(ctx, "GetTableDataStream")
	defer span.End()

	cursor := ""
	for {
		page, err := r.GetTableData(ctx, commitID, tableKey, cursor, pageSize)
		if err != nil {
			return err
		}
		for _, row := range page.Rows {
			if err := fn(row); err != nil {
				return err
			}
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return nil
}
