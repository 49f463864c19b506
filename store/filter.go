package store

import (
	"fmt"
	"reflect"
	"strings"
)

// filter compiles a single WHERE clause fragment, adapted from the
// appview query builder so queries (ListJobsByStatus, RowsExist,
// FetchRows) can share one conditional-query helper instead of
// hand-assembling SQL per call site.
type filter struct {
	key string
	arg any
	cmp string
}

func newFilter(key, cmp string, arg any) filter {
	return filter{key: key, arg: arg, cmp: cmp}
}

func FilterEq(key string, arg any) filter    { return newFilter(key, "=", arg) }
func FilterNotEq(key string, arg any) filter { return newFilter(key, "<>", arg) }
func FilterGte(key string, arg any) filter   { return newFilter(key, ">=", arg) }
func FilterLte(key string, arg any) filter   { return newFilter(key, "<=", arg) }
func FilterIs(key string, arg any) filter    { return newFilter(key, "is", arg) }
func FilterIsNot(key string, arg any) filter { return newFilter(key, "is not", arg) }
func FilterIn(key string, arg any) filter    { return newFilter(key, "in", arg) }

func (f filter) Condition() string {
	rv := reflect.ValueOf(f.arg)
	kind := rv.Kind()

	if (kind == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8) || kind == reflect.Array {
		if rv.Len() == 0 {
			return "1 = 0"
		}

		placeholders := make([]string, rv.Len())
		for i := range placeholders {
			placeholders[i] = "?"
		}
		return fmt.Sprintf("%s %s (%s)", f.key, f.cmp, strings.Join(placeholders, ", "))
	}

	return fmt.Sprintf("%s %s ?", f.key, f.cmp)
}

func (f filter) Arg() []any {
	rv := reflect.ValueOf(f.arg)
	kind := rv.Kind()
	if (kind == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8) || kind == reflect.Array {
		if rv.Len() == 0 {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range rv.Len() {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{f.arg}
}

// whereClause joins filters with AND, returning "" (no WHERE) when empty.
func whereClause(filters []filter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	conds := make([]string, len(filters))
	var args []any
	for i, f := range filters {
		conds[i] = f.Condition()
		args = append(args, f.Arg()...)
	}
	return " where " + strings.Join(conds, " and "), args
}
