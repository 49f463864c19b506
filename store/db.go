package store

import (
	"context"
	"database/sql"
	"log"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Execer is the subset of *sql.DB and *sql.Tx that store functions need,
// so every function in this package can be called against either a
// connection pool or an open transaction (see txscope.Scope).
type Execer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Prepare(query string) (*sql.Stmt, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type DB struct {
	*sql.DB
}

// Make opens (or creates) the SQLite database at dbPath and applies the
// schema for the six entities the versioning engine persists: content
// rows, commits, the commit-to-row manifest, per-commit schemas, refs
// and the job queue.
func Make(dbPath string) (*DB, error) {
	// https://github.com/mattn/go-sqlite3#connection-string
	opts := []string{
		"_foreign_keys=1",
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
		"_busy_timeout=5000",
	}

	db, err := sql.Open("sqlite3", dbPath+"?"+strings.Join(opts, "&"))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `
		-- content-addressed row store: one entry per distinct canonicalized
		-- row, shared across every commit and dataset that happens to
		-- produce the same bytes.
		create table if not exists rows (
			row_hash text primary key,
			data text not null,
			created text not null default (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		);

		-- immutable commits. parent_commit_id is null only for a dataset's
		-- first commit.
		create table if not exists commits (
			commit_id text primary key,
			dataset_id text not null,
			parent_commit_id text,
			message text not null,
			author_id text not null,
			created text not null default (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
			foreign key (parent_commit_id) references commits(commit_id)
		);
		create index if not exists idx_commits_dataset on commits(dataset_id, created);

		-- the manifest: binds a commit's logical row ids to content hashes.
		create table if not exists commit_rows (
			commit_id text not null,
			logical_row_id text not null,
			row_hash text not null,
			primary key (commit_id, logical_row_id),
			foreign key (commit_id) references commits(commit_id) on delete cascade,
			foreign key (row_hash) references rows(row_hash)
		);
		create index if not exists idx_commit_rows_hash on commit_rows(row_hash);

		-- table schema as of a given commit: column name, declared order and
		-- type, one row per column.
		create table if not exists commit_schemas (
			commit_id text not null,
			table_key text not null,
			column_name text not null,
			column_order integer not null,
			column_type text not null,
			primary key (commit_id, table_key, column_name),
			foreign key (commit_id) references commits(commit_id) on delete cascade
		);

		-- named, mutable pointers to commits, compare-and-swapped on update.
		create table if not exists refs (
			dataset_id text not null,
			name text not null,
			commit_id text,
			updated text not null default (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
			primary key (dataset_id, name),
			foreign key (commit_id) references commits(commit_id)
		);

		-- the async job queue driving imports.
		create table if not exists jobs (
			job_id text primary key,
			run_type text not null,
			status text not null check (status in ('pending', 'running', 'completed', 'failed')),
			dataset_id text not null,
			ref_name text not null,
			user_id text not null,
			source_path text,
			run_parameters text not null default '{}',
			result_commit_id text,
			error_message text,
			created text not null default (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
			started text,
			completed text,
			foreign key (result_commit_id) references commits(commit_id)
		);
		create index if not exists idx_jobs_status_created on jobs(status, created);
		create index if not exists idx_jobs_dataset on jobs(dataset_id, created);

		create table if not exists migrations (
			id integer primary key autoincrement,
			name text unique
		);
	`)
	if err != nil {
		return nil, err
	}

	runMigration(conn, "add-row-size-to-rows", func(tx *sql.Tx) error {
		_, err := tx.Exec(`alter table rows add column byte_size integer not null default 0;`)
		return err
	})

	return &DB{db}, nil
}

func (d *DB) Close() error {
	return d.DB.Close()
}

type migrationFn = func(*sql.Tx) error

func runMigration(c *sql.Conn, name string, fn migrationFn) error {
	tx, err := c.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow("select exists (select 1 from migrations where name = ?)", name).Scan(&exists)
	if err != nil {
		return err
	}

	if !exists {
		if err := fn(tx); err != nil {
			log.Printf("failed to run migration %s: %v", name, err)
			return err
		}

		if _, err := tx.Exec("insert into migrations (name) values (?)", name); err != nil {
			log.Printf("failed to mark migration %s as complete: %v", name, err)
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		log.Printf("migration %s applied successfully", name)
	} else {
		log.Printf("skipped migration %s, already applied", name)
	}

	return nil
}
