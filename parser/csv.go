package parser

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rowline/rowline/canon"
	"github.com/rowline/rowline/store"
)

// CSVParser reads a delimited text file into a single table keyed
// "primary" (CSV/TSV sources are single-table by definition). The
// standard library's encoding/csv is used here deliberately: no
// delimited-text parsing library appears anywhere in the reference
// stack, and csv.Reader already handles quoting and ragged rows
// correctly, so there is nothing a third-party dependency would add.
type CSVParser struct {
	Delimiter rune
}

func (p CSVParser) Parse(ctx context.Context, path string) (ParsedData, error) {
	f, err := os.Open(path)
	if err != nil {
		return ParsedData{}, store.Storage(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if p.Delimiter != 0 {
		r.Comma = p.Delimiter
	}
	r.FieldsPerRecord = -1 // tolerate ragged rows; short rows pad with empty cells below

	header, err := r.Read()
	if err == io.EOF {
		return ParsedData{}, store.InvalidInput("file has no header row")
	}
	if err != nil {
		return ParsedData{}, store.Internal(err)
	}

	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = Column{Name: strings.TrimSpace(name), Type: ColumnString}
	}

	var rawRows [][]string
	for {
		select {
		case <-ctx.Done():
			return ParsedData{}, ctx.Err()
		default:
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ParsedData{}, store.Internal(err)
		}
		rawRows = append(rawRows, record)
	}

	for i := range columns {
		for _, record := range rawRows {
			if i < len(record) && record[i] != "" {
				columns[i].Type = inferType(record[i])
				break
			}
		}
	}

	names := columnNames(columns)
	rows := make([]canon.Row, len(rawRows))
	for i, record := range rawRows {
		values := make(map[string]canon.Value, len(columns))
		for j, col := range columns {
			cell := ""
			if j < len(record) {
				cell = record[j]
			}
			values[col.Name] = coerce(cell, col.Type)
		}
		rows[i] = canon.Row{Columns: names, Values: values}
	}

	return ParsedData{
		FileType: "csv",
		// CSV/TSV sources are single-table; the table key is always
		// "primary" regardless of the uploaded file's name.
		Tables: []Table{{Key: "primary", Columns: columns, Rows: rows}},
	}, nil
}
