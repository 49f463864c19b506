package store

import "fmt"

// logicalRowIDWidth is the zero-padding width chosen so lexicographic
// ordering of logical_row_id (needed for an index-backed ORDER BY)
// agrees with numeric row order up to 10^20 rows per table, far beyond
// any realistic single import.
const logicalRowIDWidth = 20

// LogicalRowID builds the manifest key "{table_key}:{index}" with index
// zero-padded to logicalRowIDWidth digits.
func LogicalRowID(tableKey string, index int64) string {
	return fmt.Sprintf("%s:%0*d", tableKey, logicalRowIDWidth, index)
}
