package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the upload index in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the index database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS uploads (
		namespace  TEXT NOT NULL,
		name       TEXT NOT NULL,
		size       INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, name)
	);
	CREATE INDEX IF NOT EXISTS idx_uploads_namespace ON uploads(namespace);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (namespace, name, size, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, name) DO UPDATE SET
			size = excluded.size,
			created_at = excluded.created_at`,
		e.Namespace, e.Name, e.Size, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, namespace, name string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM uploads WHERE namespace = ? AND name = ?",
		namespace, name)
	if err != nil {
		return fmt.Errorf("delete upload record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace, name string) (*Entry, error) {
	var (
		e  Entry
		ms int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT namespace, name, size, created_at
		FROM uploads WHERE namespace = ? AND name = ?`,
		namespace, name).Scan(&e.Namespace, &e.Name, &e.Size, &ms)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load upload record: %w", err)
	}
	e.CreatedAt = time.UnixMilli(ms)
	return &e, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT namespace, COUNT(*) FROM uploads GROUP BY namespace")
	if err != nil {
		return nil, fmt.Errorf("count uploads: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var (
			ns string
			n  int64
		)
		if err := rows.Scan(&ns, &n); err != nil {
			return nil, fmt.Errorf("scan upload counts: %w", err)
		}
		stats[ns] = n
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) ReplaceNamespace(ctx context.Context, namespace string, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reconcile: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM uploads WHERE namespace = ?", namespace); err != nil {
		return fmt.Errorf("clear namespace records: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO uploads (namespace, name, size, created_at)
			VALUES (?, ?, 0, ?)`,
			namespace, name, now); err != nil {
			return fmt.Errorf("record reconciled upload: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
