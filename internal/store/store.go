package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/dshills/xmlindex/pkg/types"
)

// querier is implemented by both *sql.DB and *sql.Tx so CRUD helpers can run
// inside or outside a transaction without duplicating SQL.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the embedded relational store for one project (§4.4). It owns a
// single write connection; the chunks table, its FTS mirror, and the
// sequence_references edge table. The CRUD surface lives on the embedded
// crud, which Store and Tx both satisfy by pointing at different queriers.
type Store struct {
	crud
	db   *sql.DB
	path string
}

// Tx is a single-file reconciliation unit (§5 "chunk rewrites are atomic
// at the granularity of the file"): the pipeline opens one per changed
// file, performs every insert/update/delete through it, then commits.
type Tx struct {
	crud
	tx *sql.Tx
}

// Begin starts a transaction for one file's worth of chunk reconciliation.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{crud: crud{q: tx, StrictQualifierMatch: s.StrictQualifierMatch}, tx: tx}, nil
}

// Commit finalizes the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction, discarding every statement run through it.
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// Open opens (creating if absent) the SQLite database at path and applies
// any pending migrations, with the fault-recovery policy from §4.4/§7: an
// ABI-mismatch-class failure is surfaced without retry; any other open
// failure triggers one automatic delete-and-reopen before giving up.
func Open(ctx context.Context, path string) (*Store, error) {
	s, err := openOnce(ctx, path)
	if err == nil {
		return s, nil
	}
	if isABIMismatchError(err) {
		return nil, types.NewIndexError(types.KindStoreAbiMismatch,
			"the native SQLite driver is incompatible with this host",
			"rebuild the binary for this platform, or run the purego build", err)
	}

	if rmErr := removeDatabaseFiles(path); rmErr != nil {
		return nil, types.NewIndexError(types.KindStoreCorruption,
			"store open failed and recovery could not remove the old database files",
			"delete the embeddings.db, -wal and -shm files manually and retry", rmErr)
	}

	s, err = openOnce(ctx, path)
	if err != nil {
		return nil, types.NewIndexError(types.KindStoreCorruption,
			"store open failed twice; recovery exhausted",
			"the project's index could not be opened or rebuilt", err)
	}
	return s, nil
}

func openOnce(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(DriverName, path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{crud: crud{q: db}, db: db, path: path}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isABIMismatchError recognizes the class of failure produced when a native
// SQLite binary is incompatible with the running host (wrong architecture,
// wrong libc, stale cgo build against a newer glibc).
func isABIMismatchError(err error) bool {
	msg := strings.ToLower(err.Error())
	markers := []string{
		"wrong elf class",
		"no such file or directory: libc",
		"version `glibc",
		"exec format error",
		"incompatible sqlite3 extension",
		"abi mismatch",
	}
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// removeDatabaseFiles deletes the primary database file plus its write-ahead
// and shared-memory sidecars (§4.4 Fault recovery).
func removeDatabaseFiles(path string) error {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
