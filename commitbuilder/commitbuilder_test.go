package commitbuilder_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowline/rowline/canon"
	"github.com/rowline/rowline/commitbuilder"
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

func sampleTable() commitbuilder.TableInput {
	return commitbuilder.TableInput{
		TableKey: "people",
		Columns:  []commitbuilder.ColumnDef{{Name: "id", Type: "int"}, {Name: "name", Type: "string"}},
		Rows: []canon.Row{
			{Columns: []string{"id", "name"}, Values: map[string]canon.Value{"id": canon.Int(1), "name": canon.String("Ana")}},
			{Columns: []string{"id", "name"}, Values: map[string]canon.Value{"id": canon.Int(2), "name": canon.String("Bo")}},
		},
	}
}

func TestBuild_FirstCommit(t *testing.T) {
	db := setup(t)
	res, err := commitbuilder.Build(context.Background(), db, commitbuilder.Request{
		DatasetID: "ds1",
		Message:   "initial import",
		AuthorID:  "user-1",
		Tables:    []commitbuilder.TableInput{sampleTable()},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.CommitID)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, 2, res.RowsWritten)

	manifest, err := store.GetManifest(context.Background(), db.DB, res.CommitID)
	require.NoError(t, err)
	assert.Len(t, manifest, 2)
}

func TestBuild_RetryIsIdempotent(t *testing.T) {
	db := setup(t)
	req := commitbuilder.Request{
		DatasetID: "ds1",
		Message:   "initial import",
		AuthorID:  "user-1",
		Tables:    []commitbuilder.TableInput{sampleTable()},
	}

	first, err := commitbuilder.Build(context.Background(), db, req)
	require.NoError(t, err)

	second, err := commitbuilder.Build(context.Background(), db, req)
	require.NoError(t, err)

	assert.Equal(t, first.CommitID, second.CommitID)
	assert.Equal(t, 0, second.RowsWritten, "retried commit should not re-write any rows")
}

func TestBuild_DifferentParentProducesDifferentCommit(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	first, err := commitbuilder.Build(ctx, db, commitbuilder.Request{
		DatasetID: "ds1", Message: "m1", AuthorID: "u", Tables: []commitbuilder.TableInput{sampleTable()},
	})
	require.NoError(t, err)

	second, err := commitbuilder.Build(ctx, db, commitbuilder.Request{
		DatasetID: "ds1", ParentCommitID: first.CommitID, Message: "m2", AuthorID: "u", Tables: []commitbuilder.TableInput{sampleTable()},
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.CommitID, second.CommitID)
	assert.Equal(t, 0, second.RowsWritten, "identical row content should dedupe against the first commit")
}

func TestBuild_RequiresAtLeastOneTable(t *testing.T) {
	db := setup(t)
	_, err := commitbuilder.Build(context.Background(), db, commitbuilder.Request{DatasetID: "ds1"})
	assert.True(t, store.Is(err, store.KindInvalidInput))
}

func TestBuild_ExistsCacheDoesNotSkipActualPersistence(t *testing.T) {
	db := setup(t)
	ctx := context.Background()

	first, err := commitbuilder.Build(ctx, db, commitbuilder.Request{
		DatasetID: "ds1", Message: "m1", AuthorID: "u", Tables: []commitbuilder.TableInput{sampleTable()},
	})
	require.NoError(t, err)

	// A second dataset in the same store, same row content: the
	// exists-cache should let this skip the store's RowsExist check, but
	// the rows it dedupes against must genuinely be on disk already.
	second, err := commitbuilder.Build(ctx, db, commitbuilder.Request{
		DatasetID: "ds2", Message: "m1", AuthorID: "u", Tables: []commitbuilder.TableInput{sampleTable()},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, second.RowsWritten)

	manifest, err := store.GetManifest(ctx, db.DB, first.CommitID)
	require.NoError(t, err)
	hashes := make([]string, len(manifest))
	for i, m := range manifest {
		hashes[i] = m.RowHash
	}
	payloads, err := store.FetchRows(ctx, db.DB, hashes)
	require.NoError(t, err)
	assert.Len(t, payloads, len(hashes), "rows deduped by the exists cache must still be present in the store")
}
