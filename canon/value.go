// Package canon implements deterministic canonicalization and content
// fingerprinting of row values, per the versioning engine's hashing
// contract: the same logical row under the same column order always
// produces the same row_hash, on any machine, in any process.
package canon

import "time"

// Kind tags the dynamic type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTime
	KindArray
	KindObject
)

// Value is a schema-tagged variant over the column types a row may hold.
// Rows arrive from parsers as dynamically typed mappings; Value is the
// canonicalization layer's stable representation of that dynamism, kept
// separate from any column-type-inference concern (that lives in the
// parser package).
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	String string
	Time   time.Time
	Array  []Value
	Object map[string]Value
}

func Null() Value                { return Value{Kind: KindNull} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value          { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value      { return Value{Kind: KindFloat, Float: f} }
func String(s string) Value      { return Value{Kind: KindString, String: s} }
func Time(t time.Time) Value     { return Value{Kind: KindTime, Time: t} }
func Array(vs []Value) Value     { return Value{Kind: KindArray, Array: vs} }
func Object(m map[string]Value) Value {
	return Value{Kind: KindObject, Object: m}
}

// Row is a canonical key-ordered mapping of column name to Value, bound
// to the column order declared by the commit's table schema. Order
// matters: the final row serialization emits columns in this order, not
// sorted order (only composite Object keys are key-sorted).
type Row struct {
	Columns []string
	Values  map[string]Value
}
