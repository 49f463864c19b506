package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// CanonicalJSON renders v as a deterministic JSON byte sequence: object
// keys sorted lexicographically at every nesting level, minimal
// separators, no trailing whitespace. This is the serialization the
// SHA-256 fingerprint is computed over.
func CanonicalJSON(v Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v)
	return buf.Bytes()
}

// CanonicalRow renders a Row as a JSON object whose keys are emitted in
// the order declared by row.Columns (the table schema's column order),
// not sorted order — only composite (Object) values sort their own keys.
// A column present in row.Columns but absent from row.Values serializes
// as the null sentinel, distinct from an explicit empty string.
func CanonicalRow(row Row) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range row.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(&buf, col)
		buf.WriteByte(':')
		v, ok := row.Values[col]
		if !ok {
			v = Null()
		}
		writeValue(&buf, v)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func writeValue(buf *bytes.Buffer, v Value) {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.Int, 10))
	case KindFloat:
		writeFloat(buf, v.Float)
	case KindString:
		writeString(buf, v.String)
	case KindTime:
		writeString(buf, formatTime(v))
	case KindArray:
		buf.WriteByte('[')
		for i, e := range v.Array {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeValue(buf, e)
		}
		buf.WriteByte(']')
	case KindObject:
		keys := make([]string, 0, len(v.Object))
		for k := range v.Object {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			writeValue(buf, v.Object[k])
		}
		buf.WriteByte('}')
	default:
		panic(fmt.Sprintf("canon: unknown value kind %d", v.Kind))
	}
}

// writeFloat emits the shortest round-trip decimal representation of f,
// always with a fractional part or exponent so it cannot be confused
// with a canonicalized integer when read back by an independent reader.
func writeFloat(buf *bytes.Buffer, f float64) {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !bytes.ContainsAny([]byte(s), ".eE") {
		s += ".0"
	}
	buf.WriteString(s)
}

func writeString(buf *bytes.Buffer, s string) {
	// encoding/json's string escaping is context-free (a quoted string
	// literal is valid wherever it appears), so it composes safely with
	// the hand-rolled object/array framing above.
	b, err := json.Marshal(s)
	if err != nil {
		// json.Marshal(string) only fails on invalid UTF-8, which Go
		// strings cannot contain by construction from valid sources;
		// fall back to a lossy escape rather than panic mid-hash.
		b, _ = json.Marshal(string([]rune(s)))
	}
	buf.Write(b)
}
