// Package parser turns uploaded dataset files (CSV/TSV, Excel, Parquet)
// into canon.Row sequences ready for commitbuilder, inferring a column
// schema once per table rather than per row.
package parser

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rowline/rowline/canon"
	"github.com/rowline/rowline/store"
)

// ColumnType is the inferred scalar type of a column, used both to
// coerce cell values and to populate commit_schemas.column_type.
type ColumnType string

const (
	ColumnString ColumnType = "string"
	ColumnInt    ColumnType = "int"
	ColumnFloat  ColumnType = "float"
	ColumnBool   ColumnType = "bool"
	ColumnTime   ColumnType = "time"
)

type Column struct {
	Name string
	Type ColumnType
}

// Table is one parsed table: a CSV file's single implicit table, or one
// sheet of a workbook, or a Parquet file's single table (all row groups).
type Table struct {
	Key     string
	Columns []Column
	Rows    []canon.Row
}

// ParsedData is everything extracted from one uploaded file.
type ParsedData struct {
	FileType string
	Tables   []Table
}

// Parser turns a file on disk into tables of canonical rows.
type Parser interface {
	Parse(ctx context.Context, path string) (ParsedData, error)
}

// ForPath selects a Parser by file extension.
func ForPath(path string) (Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSVParser{Delimiter: ','}, nil
	case ".tsv":
		return CSVParser{Delimiter: '\t'}, nil
	case ".xlsx", ".xls":
		return ExcelParser{}, nil
	case ".parquet":
		return ParquetParser{}, nil
	default:
		return nil, store.InvalidInput("unsupported file extension: " + filepath.Ext(path))
	}
}

// columnNames extracts just the names, in order, from a Column slice.
func columnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
