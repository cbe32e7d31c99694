package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// DB manages a write connection and a read-only pool. For
// Postgres both point at the same pool.
type DB struct {
	writer *sqlx.DB
	reader *sqlx.DB
	mu     sync.Mutex // serializes writes

	now func() time.Time
}

// makeDSN builds a SQLite connection string with shared pragmas.
func makeDSN(path string, readOnly bool) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "ON")
	params.Set("_mmap_size", "268435456")
	params.Set("_cache_size", "-64000")
	if readOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("_synchronous", "NORMAL")
	}
	return path + "?" + params.Encode()
}

// Open connects to the record store using the named driver.
// For sqlite3 the dsn is a file path; for postgres it is a
// connection URL. The schema is created if missing.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "", DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenSQLite creates or opens a SQLite database at the given
// path with a single writer connection and a small read pool.
func OpenSQLite(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	writer, err := sqlx.Open(DriverSQLite, makeDSN(path, false))
	if err != nil {
		return nil, fmt.Errorf("opening writer: %w", err)
	}
	writer.SetMaxOpenConns(1)

	reader, err := sqlx.Open(DriverSQLite, makeDSN(path, true))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening reader: %w", err)
	}
	reader.SetMaxOpenConns(4)

	db := &DB{writer: writer, reader: reader, now: time.Now}
	if err := db.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

// OpenPostgres connects to a Postgres server and ensures the
// schema exists.
func OpenPostgres(dsn string) (*DB, error) {
	pool, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	pool.SetMaxOpenConns(10)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxIdleTime(5 * time.Minute)

	db := &DB{writer: pool, reader: pool, now: time.Now}
	if err := db.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

// New wraps an existing handle without touching the schema.
// driver selects the placeholder style.
func New(conn *sql.DB, driver string) *DB {
	x := sqlx.NewDb(conn, driver)
	return &DB{writer: x, reader: x, now: time.Now}
}

// SetNow overrides the clock used for "right now" metrics.
func (db *DB) SetNow(now func() time.Time) {
	if now != nil {
		db.now = now
	}
}

func (db *DB) init() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.writer.Exec(schemaSQL); err != nil {
		return err
	}
	return nil
}

// Ping checks that the read pool is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.reader.PingContext(ctx)
}

// Close closes both writer and reader connections.
func (db *DB) Close() error {
	if db.writer == db.reader {
		return db.writer.Close()
	}
	return errors.Join(db.writer.Close(), db.reader.Close())
}

// Update executes fn within a write lock and transaction.
// The transaction is committed if fn returns nil, rolled back
// otherwise.
func (db *DB) Update(fn func(tx *sqlx.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.writer.Beginx()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Reader returns the read-only connection pool.
func (db *DB) Reader() *sqlx.DB {
	return db.reader
}

// selectRows runs a read query with driver-appropriate
// placeholders and scans every row into dest.
func (db *DB) selectRows(
	ctx context.Context, dest any, query string, args ...any,
) error {
	return db.reader.SelectContext(
		ctx, dest, db.reader.Rebind(query), args...,
	)
}

// scalar runs a single-row, single-column read query.
func (db *DB) scalar(
	ctx context.Context, dest any, query string, args ...any,
) error {
	return db.reader.QueryRowxContext(
		ctx, db.reader.Rebind(query), args...,
	).Scan(dest)
}
