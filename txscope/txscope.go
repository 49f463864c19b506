// Package txscope gives multi-step store operations (commitbuilder's
// commit assembly) one place to begin,
// commit and roll back a transaction, instead of every caller hand
// rolling sql.Tx bookkeeping.
package txscope

import (
	"context"
	"database/sql"

	"github.com/rowline/rowline/store"
)

// Scope wraps an open transaction and satisfies store.Execer, so every
// function in the store package works unchanged whether it is handed a
// *store.DB or a *Scope.
type Scope struct {
	tx *sql.Tx
}

func (s *Scope) Query(query string, args ...any) (*sql.Rows, error) {
	return s.tx.Query(query, args...)
}

func (s *Scope) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.tx.QueryContext(ctx, query, args...)
}

func (s *Scope) QueryRow(query string, args ...any) *sql.Row {
	return s.tx.QueryRow(query, args...)
}

func (s *Scope) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.tx.QueryRowContext(ctx, query, args...)
}

func (s *Scope) Exec(query string, args ...any) (sql.Result, error) {
	return s.tx.Exec(query, args...)
}

func (s *Scope) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *Scope) Prepare(query string) (*sql.Stmt, error) {
	return s.tx.Prepare(query)
}

func (s *Scope) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return s.tx.PrepareContext(ctx, query)
}

var _ store.Execer = (*Scope)(nil)

// Run begins a transaction against db, passes a *Scope wrapping it to
// fn, and commits on success or rolls back on any returned error
// (including a panic recovered and re-raised after rollback).
func Run(ctx context.Context, db *store.DB, fn func(*Scope) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return store.Storage(err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Scope{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return store.Storage(err)
	}
	return nil
}
