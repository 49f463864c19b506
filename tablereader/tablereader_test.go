package tablereader_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowline/rowline/canon"
	"github.com/rowline/rowline/commitbuilder"
	"github.com/rowline/rowline/store"
	"github.com/rowline/rowline/tablereader"
)

func setup(t *testing.T) (*store.DB, *tablereader.Reader) {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rowline-*.db")
	require.NoError(t, err)
	f.Close()
	db, err := store.Make(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r, err := tablereader.New(db)
	require.NoError(t, err)
	return db, r
}

func seedCommit(t *testing.T, db *store.DB, rowCount int) string {
	t.Helper()
	rows := make([]canon.Row, rowCount)
	for i := range rows {
		rows[i] = canon.Row{
			Columns: []string{"id", "name"},
			Values: map[string]canon.Value{
				"id":   canon.Int(int64(i)),
				"name": canon.String("row"),
			},
		}
	}
	res, err := commitbuilder.Build(context.Background(), db, commitbuilder.Request{
		DatasetID: "ds1",
		Message:   "seed",
		AuthorID:  "u",
		Tables: []commitbuilder.TableInput{{
			TableKey: "people",
			Columns:  []commitbuilder.ColumnDef{{Name: "id", Type: "int"}, {Name: "name", Type: "string"}},
			Rows:     rows,
		}},
	})
	require.NoError(t, err)
	return res.CommitID
}

func TestListTableKeysAndSchema(t *testing.T) {
	db, r := setup(t)
	commitID := seedCommit(t, db, 3)

	keys, err := r.ListTableKeys(context.Background(), commitID)
	require.NoError(t, err)
	assert.Equal(t, []string{"people"}, keys)

	schema, err := r.GetTableSchema(context.Background(), commitID, "people")
	require.NoError(t, err)
	require.Len(t, schema, 2)
	assert.Equal(t, "id", schema[0].Name)
	assert.Equal(t, "name", schema[1].Name)
}

func TestCountTableRows(t *testing.T) {
	db, r := setup(t)
	commitID := seedCommit(t, db, 5)

	count, err := r.CountTableRows(context.Background(), commitID, "people")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestGetTableData_Pagination(t *testing.T) {
	db, r := setup(t)
	commitID := seedCommit(t, db, 5)

	page, err := r.GetTableData(context.Background(), commitID, "people", "", 2)
	require.NoError(t, err)
	assert.Len(t, page.Rows, 2)
	assert.NotEmpty(t, page.NextCursor)
	assert.NotEqual(t, page.Rows[0].LogicalRowID, page.Rows[1].LogicalRowID)
	assert.Equal(t, page.NextCursor, page.Rows[len(page.Rows)-1].LogicalRowID)

	page2, err := r.GetTableData(context.Background(), commitID, "people", page.NextCursor, 2)
	require.NoError(t, err)
	assert.Len(t, page2.Rows, 2)
	assert.NotEmpty(t, page2.NextCursor)

	page3, err := r.GetTableData(context.Background(), commitID, "people", page2.NextCursor, 2)
	require.NoError(t, err)
	assert.Len(t, page3.Rows, 1)
	assert.Empty(t, page3.NextCursor)
}

func TestGetTableDataStream_VisitsEveryRow(t *testing.T) {
	db, r := setup(t)
	commitID := seedCommit(t, db, 7)

	seen := 0
	seenIDs := make(map[string]bool)
	err := r.GetTableDataStream(context.Background(), commitID, "people", 3, func(row tablereader.Row) error {
		seen++
		assert.NotEmpty(t, row.LogicalRowID)
		seenIDs[row.LogicalRowID] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, seen)
	assert.Len(t, seenIDs, 7)
}

func TestBatchGetTableMetadata(t *testing.T) {
	db, r := setup(t)
	commitID := seedCommit(t, db, 4)

	meta, err := r.BatchGetTableMetadata(context.Background(), commitID)
	require.NoError(t, err)
	require.Len(t, meta, 1)
	assert.Equal(t, "people", meta[0].TableKey)
	assert.Equal(t, 4, meta[0].RowCount)
}

func TestGetTableSchema_UnknownTable(t *testing.T) {
	db, r := setup(t)
	commitID := seedCommit(t, db, 1)

	_, err := r.GetTableSchema(context.Background(), commitID, "nope")
	assert.True(t, store.Is(err, store.KindNotFound))
}
