package canon

import "time"

// formatTime renders a timestamp value as ISO-8601 with timezone. Parsers
// that encounter a naive (zoneless) timestamp in source data attach
// time.UTC before constructing the Value, so this function never has to
// guess: it always has an explicit offset to print.
func formatTime(v Value) string {
	t := v.Time
	if t.Nanosecond() != 0 {
		return t.Format(time.RFC3339Nano)
	}
	return t.Format(time.RFC3339)
}
