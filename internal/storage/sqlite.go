package storage

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteBackend implements the Backend interface storing object bytes as
// BLOBs in a single SQLite database. Useful for small single-file
// deployments where a directory tree is unwanted; writes are atomic by way
// of SQLite transactions.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the database at the given DSN and
// initializes the schema.
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening SQLite database: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if err := b.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing SQLite database: %w", err)
	}
	return b, nil
}

// initDB applies PRAGMAs and creates the objects table. Idempotent.
func (b *SQLiteBackend) initDB() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := b.db.Exec(p); err != nil {
			return fmt.Errorf("executing %q: %w", p, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS objects (
			namespace  TEXT NOT NULL,
			name       TEXT NOT NULL,
			data       BLOB NOT NULL,
			size       INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (namespace, name)
		);
	`
	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Put upserts the object row. The transaction gives all-or-nothing
// visibility to concurrent readers.
func (b *SQLiteBackend) Put(ctx context.Context, namespace, name string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO objects (namespace, name, data, size, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, name) DO UPDATE SET
			data = excluded.data, size = excluded.size, created_at = excluded.created_at`,
		namespace, name, data, len(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting object row: %w", err)
	}
	return nil
}

// Get reads the object bytes into memory and returns a reader over them.
func (b *SQLiteBackend) Get(ctx context.Context, namespace, name string) (io.ReadCloser, int64, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx,
		`SELECT data FROM objects WHERE namespace = ? AND name = ?`,
		namespace, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, 0, ErrObjectNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("querying object row: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// Delete removes the object row. Returns ErrObjectNotFound when no row
// was deleted.
func (b *SQLiteBackend) Delete(ctx context.Context, namespace, name string) error {
	res, err := b.db.ExecContext(ctx,
		`DELETE FROM objects WHERE namespace = ? AND name = ?`,
		namespace, name)
	if err != nil {
		return fmt.Errorf("deleting object row: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrObjectNotFound
	}
	return nil
}

// Exists reports whether the object row is present.
func (b *SQLiteBackend) Exists(ctx context.Context, namespace, name string) (bool, error) {
	var one int
	err := b.db.QueryRowContext(ctx,
		`SELECT 1 FROM objects WHERE namespace = ? AND name = ?`,
		namespace, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying object row: %w", err)
	}
	return true, nil
}

// List returns the names of all objects in the namespace, ordered by name.
func (b *SQLiteBackend) List(ctx context.Context, namespace string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT name FROM objects WHERE namespace = ? ORDER BY name`,
		namespace)
	if err != nil {
		return nil, fmt.Errorf("querying namespace rows: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning object name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// EnsureNamespace is a no-op: namespaces are values in the objects table,
// not containers that need creating.
func (b *SQLiteBackend) EnsureNamespace(ctx context.Context, namespace string) error {
	return nil
}

// HealthCheck verifies the database responds.
func (b *SQLiteBackend) HealthCheck(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Ensure SQLiteBackend implements Backend at compile time.
var _ Backend = (*SQLiteBackend)(nil)
