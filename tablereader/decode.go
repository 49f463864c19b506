package tablereader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rowline/rowline/canon"
)

// decodeStoredRow reverses canon.CanonicalRow: it reads the flat JSON
// object a row was stored as and reconstructs a column -> canon.Value
// map. The ".0" fractional marker canon.go writes for floats lets a
// canonicalized int come back as KindInt and a canonicalized float come
// back as KindFloat; a quoted string that parses as RFC3339 comes back
// as KindTime, matching how the canonicalizer serialized it.
func decodeStoredRow(raw []byte) (map[string]canon.Value, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	out := make(map[string]canon.Value, len(fields))
	for k, v := range fields {
		val, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}

func decodeValue(raw json.RawMessage) (canon.Value, error) {
	s := bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(s, []byte("null")):
		return canon.Null(), nil
	case bytes.Equal(s, []byte("true")):
		return canon.Bool(true), nil
	case bytes.Equal(s, []byte("false")):
		return canon.Bool(false), nil
	case len(s) > 0 && s[0] == '"':
		var str string
		if err := json.Unmarshal(s, &str); err != nil {
			return canon.Value{}, err
		}
		if t, err := time.Parse(time.RFC3339Nano, str); err == nil {
			return canon.Time(t), nil
		}
		return canon.String(str), nil
	case len(s) > 0 && s[0] == '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(s, &raws); err != nil {
			return canon.Value{}, err
		}
		vals := make([]canon.Value, len(raws))
		for i, r := range raws {
			v, err := decodeValue(r)
			if err != nil {
				return canon.Value{}, err
			}
			vals[i] = v
		}
		return canon.Array(vals), nil
	case len(s) > 0 && s[0] == '{':
		var raws map[string]json.RawMessage
		if err := json.Unmarshal(s, &raws); err != nil {
			return canon.Value{}, err
		}
		obj := make(map[string]canon.Value, len(raws))
		for k, r := range raws {
			v, err := decodeValue(r)
			if err != nil {
				return canon.Value{}, err
			}
			obj[k] = v
		}
		return canon.Object(obj), nil
	default:
		// numeric literal
		num := string(s)
		if !bytes.ContainsAny(s, []byte(".eE")) {
			var i int64
			if _, err := fmt.Sscanf(num, "%d", &i); err == nil {
				return canon.Int(i), nil
			}
		}
		var f float64
		if _, err := fmt.Sscanf(num, "%g", &f); err != nil {
			return canon.Value{}, fmt.Errorf("invalid number literal %q", num)
		}
		return canon.Float(f), nil
	}
}
