package parser

import (
	"strconv"
	"time"

	"github.com/rowline/rowline/canon"
)

// inferType guesses a column's scalar type from one sample cell. An
// empty cell never drives the inference (it is ambiguous with every
// type), so callers should sample the first non-empty value seen.
func inferType(sample string) ColumnType {
	if sample == "" {
		return ColumnString
	}
	if _, err := strconv.ParseInt(sample, 10, 64); err == nil {
		return ColumnInt
	}
	if _, err := strconv.ParseFloat(sample, 64); err == nil {
		return ColumnFloat
	}
	if _, err := strconv.ParseBool(sample); err == nil {
		return ColumnBool
	}
	if _, err := time.Parse(time.RFC3339, sample); err == nil {
		return ColumnTime
	}
	return ColumnString
}

// coerce converts a raw cell string to a canon.Value of the given
// column type. A value that fails to parse as its inferred type (a
// ragged CSV row, an inconsistent Excel column) degrades to a string
// rather than failing the whole import.
func coerce(raw string, t ColumnType) canon.Value {
	if raw == "" {
		return canon.Null()
	}
	switch t {
	case ColumnInt:
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return canon.Int(v)
		}
	case ColumnFloat:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return canon.Float(v)
		}
	case ColumnBool:
		if v, err := strconv.ParseBool(raw); err == nil {
			return canon.Bool(v)
		}
	case ColumnTime:
		if v, err := time.Parse(time.RFC3339, raw); err == nil {
			return canon.Time(v.UTC())
		}
	}
	return canon.String(raw)
}
