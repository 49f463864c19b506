package parser_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowline/rowline/canon"
	"github.com/rowline/rowline/parser"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVParser_InfersColumnTypes(t *testing.T) {
	path := writeTemp(t, "people.csv", "id,name,active\n1,Ana,true\n2,Bo,false\n")

	p := parser.CSVParser{Delimiter: ','}
	data, err := p.Parse(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, data.Tables, 1)
	tbl := data.Tables[0]
	assert.Equal(t, "primary", tbl.Key)
	require.Len(t, tbl.Columns, 3)
	assert.Equal(t, parser.ColumnInt, tbl.Columns[0].Type)
	assert.Equal(t, parser.ColumnString, tbl.Columns[1].Type)
	assert.Equal(t, parser.ColumnBool, tbl.Columns[2].Type)

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, canon.Int(1), tbl.Rows[0].Values["id"])
	assert.Equal(t, canon.String("Ana"), tbl.Rows[0].Values["name"])
	assert.Equal(t, canon.Bool(true), tbl.Rows[0].Values["active"])
}

func TestCSVParser_EmptyCellBecomesNull(t *testing.T) {
	path := writeTemp(t, "data.csv", "a,b\n1,\n")

	p := parser.CSVParser{Delimiter: ','}
	data, err := p.Parse(context.Background(), path)
	require.NoError(t, err)

	row := data.Tables[0].Rows[0]
	assert.Equal(t, canon.Null(), row.Values["b"])
}

func TestCSVParser_RaggedRowsTolerated(t *testing.T) {
	path := writeTemp(t, "ragged.csv", "a,b,c\n1,2\n3,4,5\n")

	p := parser.CSVParser{Delimiter: ','}
	data, err := p.Parse(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, data.Tables[0].Rows, 2)
	assert.Equal(t, canon.Null(), data.Tables[0].Rows[0].Values["c"])
}

func TestCSVParser_NoHeaderRowErrors(t *testing.T) {
	path := writeTemp(t, "empty.csv", "")

	p := parser.CSVParser{Delimiter: ','}
	_, err := p.Parse(context.Background(), path)
	assert.Error(t, err)
}

func TestForPath_SelectsByExtension(t *testing.T) {
	p, err := parser.ForPath("data.csv")
	require.NoError(t, err)
	assert.IsType(t, parser.CSVParser{}, p)

	p, err = parser.ForPath("data.tsv")
	require.NoError(t, err)
	assert.IsType(t, parser.CSVParser{}, p)

	_, err = parser.ForPath("data.exe")
	assert.Error(t, err)
}
