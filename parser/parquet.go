package parser

import (
	"context"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/rowline/rowline/canon"
	"github.com/rowline/rowline/store"
)

// ParquetParser reads a Parquet file into a single table named
// "primary", one column at a time via the schemaless column reader
// (no generated Go struct is available for an arbitrary uploaded
// file, so the struct-tag-driven reader.NewParquetReader path does
// not apply here).
type ParquetParser struct{}

func (ParquetParser) Parse(ctx context.Context, path string) (ParsedData, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return ParsedData{}, store.Storage(err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, 4)
	if err != nil {
		return ParsedData{}, store.InvalidInput("opening parquet file: " + err.Error())
	}
	defer pr.ReadStop()

	numRows := int(pr.GetNumRows())
	leafPaths := pr.SchemaHandler.ValueColumns

	columns := make([]Column, 0, len(leafPaths))
	columnValues := make(map[string][]canon.Value, len(leafPaths))

	for _, path := range leafPaths {
		select {
		case <-ctx.Done():
			return ParsedData{}, ctx.Err()
		default:
		}

		name := leafColumnName(path)
		values, _, _, err := pr.ReadColumnByPath(path, int64(numRows))
		if err != nil {
			return ParsedData{}, store.Internal(err)
		}

		vals := make([]canon.Value, numRows)
		colType := ColumnString
		for i := 0; i < numRows && i < len(values); i++ {
			vals[i] = parquetValue(values[i])
		}
		if numRows > 0 {
			colType = parquetColumnType(values)
		}

		columns = append(columns, Column{Name: name, Type: colType})
		columnValues[name] = vals
	}

	names := columnNames(columns)
	rows := make([]canon.Row, numRows)
	for i := 0; i < numRows; i++ {
		values := make(map[string]canon.Value, len(columns))
		for _, col := range columns {
			values[col.Name] = columnValues[col.Name][i]
		}
		rows[i] = canon.Row{Columns: names, Values: values}
	}

	return ParsedData{
		FileType: "parquet",
		Tables:   []Table{{Key: "primary", Columns: columns, Rows: rows}},
	}, nil
}

func leafColumnName(path string) string {
	parts := strings.Split(path, ".")
	return parts[len(parts)-1]
}

func parquetValue(v any) canon.Value {
	switch t := v.(type) {
	case nil:
		return canon.Null()
	case bool:
		return canon.Bool(t)
	case int32:
		return canon.Int(int64(t))
	case int64:
		return canon.Int(t)
	case float32:
		return canon.Float(float64(t))
	case float64:
		return canon.Float(t)
	case string:
		return canon.String(t)
	case []byte:
		return canon.String(string(t))
	default:
		return canon.Null()
	}
}

func parquetColumnType(values []any) ColumnType {
	for _, v := range values {
		switch v.(type) {
		case bool:
			return ColumnBool
		case int32, int64:
			return ColumnInt
		case float32, float64:
			return ColumnFloat
		case string, []byte:
			return ColumnString
		}
	}
	return ColumnString
}
