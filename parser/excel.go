package parser

import (
	"context"
	"strings"

	"github.com/tealeg/xlsx"

	"github.com/rowline/rowline/canon"
	"github.com/rowline/rowline/store"
)

// ExcelParser reads a workbook into one table per sheet, keyed on the
// sheet name. The first row of each sheet is treated as the header.
type ExcelParser struct{}

func (ExcelParser) Parse(ctx context.Context, path string) (ParsedData, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return ParsedData{}, store.InvalidInput("opening workbook: " + err.Error())
	}

	tables := make([]Table, 0, len(wb.Sheets))
	for _, sheet := range wb.Sheets {
		select {
		case <-ctx.Done():
			return ParsedData{}, ctx.Err()
		default:
		}

		if len(sheet.Rows) == 0 {
			continue
		}

		header := sheet.Rows[0]
		columns := make([]Column, len(header.Cells))
		for i, cell := range header.Cells {
			columns[i] = Column{Name: strings.TrimSpace(cell.String()), Type: ColumnString}
		}

		dataRows := sheet.Rows[1:]
		for i := range columns {
			for _, row := range dataRows {
				if i < len(row.Cells) && row.Cells[i].String() != "" {
					columns[i].Type = inferType(row.Cells[i].String())
					break
				}
			}
		}

		names := columnNames(columns)
		rows := make([]canon.Row, len(dataRows))
		for r, row := range dataRows {
			values := make(map[string]canon.Value, len(columns))
			for c, col := range columns {
				cell := ""
				if c < len(row.Cells) {
					cell = row.Cells[c].String()
				}
				values[col.Name] = coerce(cell, col.Type)
			}
			rows[r] = canon.Row{Columns: names, Values: values}
		}

		tables = append(tables, Table{Key: sheet.Name, Columns: columns, Rows: rows})
	}

	if len(tables) == 0 {
		return ParsedData{}, store.InvalidInput("workbook has no non-empty sheets")
	}

	return ParsedData{FileType: "xlsx", Tables: tables}, nil
}
