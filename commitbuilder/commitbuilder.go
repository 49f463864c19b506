// Package commitbuilder assembles a new commit from a set of incoming
// tables: canonicalizing and hashing rows (in parallel, bounded by a
// worker pool), deduplicating against already-stored content, and
// atomically writing the row payloads, manifest and schema alongside
// the commit header itself.
package commitbuilder

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/rowline/rowline/canon"
	"github.com/rowline/rowline/store"
	"github.com/rowline/rowline/txscope"
)

var tracer = otel.Tracer("commitbuilder")

// parallelHashThreshold is the row count below which canonicalizing and
// hashing sequentially is cheaper than spinning up the worker pool.
const parallelHashThreshold = 256

// ColumnDef describes one column of one incoming table.
type ColumnDef struct {
	Name string
	Type string
}

// TableInput is one parsed table awaiting inclusion in a commit.
type TableInput struct {
	TableKey string
	Columns  []ColumnDef
	Rows     []canon.Row
}

// Request carries everything needed to build and persist one commit.
type Request struct {
	DatasetID      string
	ParentCommitID string // "" for a dataset's first commit
	Message        string
	AuthorID       string
	Tables         []TableInput
	HashWorkers    int // 0 selects a sane default
}

// Result reports the outcome of a successful commit build.
type Result struct {
	CommitID    string
	RowsWritten int // newly stored rows (post-dedup)
	RowCount    int // total rows across all tables in this commit
}

type hashedRow struct {
	logicalRowID string
	hash         string
	data         []byte
}

// Build canonicalizes every row in req.Tables, computes the commit's
// manifest and schema, derives the content-addressed commit id, and
// persists rows, commit, manifest and schema in a single transaction.
// Calling Build twice with identical inputs produces the same commit id
// and is a safe no-op the second time: InsertCommit short-circuits on an
// existing commit_id and UpsertRows skips hashes already on disk.
func Build(ctx context.Context, db *store.DB, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "Build")
	defer span.End()

	if req.DatasetID == "" {
		return Result{}, store.InvalidInput("dataset id is required")
	}
	if len(req.Tables) == 0 {
		return Result{}, store.InvalidInput("at least one table is required")
	}

	hashed, err := hashTables(ctx, req.Tables, req.HashWorkers)
	if err != nil {
		return Result{}, err
	}

	manifest := make([]store.ManifestEntry, 0, len(hashed))
	allHashes := make([]string, 0, len(hashed))
	dataByHash := make(map[string][]byte, len(hashed))
	seen := make(map[string]bool, len(hashed))
	for _, h := range hashed {
		manifest = append(manifest, store.ManifestEntry{LogicalRowID: h.logicalRowID, RowHash: h.hash})
		if !seen[h.hash] {
			seen[h.hash] = true
			allHashes = append(allHashes, h.hash)
			dataByHash[h.hash] = h.data
		}
	}
	sort.Slice(manifest, func(i, j int) bool { return manifest[i].LogicalRowID < manifest[j].LogicalRowID })

	// The exists cache is consulted before the store: hashes this process
	// has already confirmed stored skip the exists round trip entirely.
	// Anything the cache doesn't already know still gets a single batched
	// RowsExist call rather than one per row.
	known, unknown := filterUnknownHashes(db, allHashes)
	if len(unknown) > 0 {
		found, err := store.RowsExist(ctx, db, unknown)
		if err != nil {
			return Result{}, err
		}
		foundHashes := make([]string, 0, len(found))
		for h := range found {
			known[h] = true
			foundHashes = append(foundHashes, h)
		}
		markExists(db, foundHashes)
	}

	hashes := make([]string, 0, len(allHashes))
	data := make([][]byte, 0, len(allHashes))
	for _, h := range allHashes {
		if known[h] {
			continue
		}
		hashes = append(hashes, h)
		data = append(data, dataByHash[h])
	}

	schema := make([]store.SchemaColumn, 0)
	for _, tbl := range req.Tables {
		for i, col := range tbl.Columns {
			schema = append(schema, store.SchemaColumn{
				TableKey: tbl.TableKey,
				Name:     col.Name,
				Order:    i,
				Type:     col.Type,
			})
		}
	}

	commitID := store.DeriveCommitID(req.DatasetID, req.ParentCommitID, manifest, req.Message, req.AuthorID)

	commit := store.Commit{
		CommitID:  commitID,
		DatasetID: req.DatasetID,
		Message:   req.Message,
		AuthorID:  req.AuthorID,
	}
	if req.ParentCommitID != "" {
		commit.ParentCommitID.String, commit.ParentCommitID.Valid = req.ParentCommitID, true
	}

	written := 0
	err = txscope.Run(ctx, db, func(s *txscope.Scope) error {
		n, err := store.UpsertRows(ctx, s, hashes, data)
		if err != nil {
			return err
		}
		written = n

		return store.InsertCommit(ctx, s, commit, manifest, schema)
	})
	if err != nil {
		return Result{}, err
	}
	// Every hash in this batch is now durably present in the store,
	// whether newly written or already there pre-upsert (on-conflict
	// do-nothing still guarantees presence); populate the cache so a
	// later build never re-checks any of them.
	markExists(db, hashes)

	return Result{CommitID: commitID, RowsWritten: written, RowCount: len(manifest)}, nil
}

// hashTables canonicalizes and hashes every row across every table,
// producing one hashedRow per input row keyed by its logical row id.
// Below parallelHashThreshold rows this runs sequentially; above it,
// work is fanned out across a bounded errgroup worker pool so large
// imports use the available CPU without spawning one goroutine per row.
func hashTables(ctx context.Context, tables []TableInput, workers int) ([]hashedRow, error) {
	total := 0
	for _, t := range tables {
		total += len(t.Rows)
	}

	type job struct {
		tableKey string
		index    int64
		row      canon.Row
	}
	jobs := make([]job, 0, total)
	for _, t := range tables {
		for i, r := range t.Rows {
			jobs = append(jobs, job{tableKey: t.TableKey, index: int64(i), row: r})
		}
	}

	results := make([]hashedRow, len(jobs))

	if len(jobs) < parallelHashThreshold {
		for i, j := range jobs {
			data := canon.CanonicalRow(j.row)
			results[i] = hashedRow{
				logicalRowID: store.LogicalRowID(j.tableKey, j.index),
				hash:         canon.HashBytes(data),
				data:         data,
			}
		}
		return results, nil
	}

	if workers <= 0 {
		workers = 8
	}

	grp, _ := errgroup.WithContext(ctx)
	grp.SetLimit(workers)

	for i, j := range jobs {
		i, j := i, j
		grp.Go(func() error {
			data := canon.CanonicalRow(j.row)
			results[i] = hashedRow{
				logicalRowID: store.LogicalRowID(j.tableKey, j.index),
				hash:         canon.HashBytes(data),
				data:         data,
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, store.Internal(fmt.Errorf("hashing rows: %w", err))
	}

	return results, nil
}
