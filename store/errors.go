package store

import "fmt"

// Kind classifies a store-level error per the versioning engine's error
// taxonomy (spec §7). Callers branch on Kind with Is (below) rather
// than matching error strings.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error wraps a causal error with the Kind the caller should react to.
type Error struct {
	Kind   Kind
	Entity string // e.g. "dataset", "ref", "commit", "job" — populated for NotFound
	ID     string
	Err    error
}

func (e *Error) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s %q: %v", e.Kind, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Err: fmt.Errorf("not found")}
}

func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Err: fmt.Errorf("%s", msg)}
}

func InvalidInput(msg string) error {
	return &Error{Kind: KindInvalidInput, Err: fmt.Errorf("%s", msg)}
}

func Internal(err error) error {
	return &Error{Kind: KindInternal, Err: err}
}

func Storage(err error) error {
	return &Error{Kind: KindStorage, Err: err}
}

// Is reports whether err carries the given Kind, so callers can write
// `if store.Is(err, store.KindConflict) { ... }`.
func Is(err error, kind Kind) bool {
	var se *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			se = e
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return se != nil && se.Kind == kind
}
