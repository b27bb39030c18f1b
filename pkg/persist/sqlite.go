package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS snapshots (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLBackend stores snapshots in a `snapshots` table. It is written against
// database/sql and tested with the pure Go modernc.org/sqlite driver.
type SQLBackend struct {
	db  *sql.DB
	own bool
}

// OpenSQLite opens (or creates) a SQLite database at path and prepares the
// snapshots table. Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("persist: sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	backend, err := NewSQLBackend(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	backend.own = true
	return backend, nil
}

// NewSQLBackend wraps an existing handle and creates the snapshots table when
// missing. The caller keeps ownership of db.
func NewSQLBackend(ctx context.Context, db *sql.DB) (*SQLBackend, error) {
	if db == nil {
		return nil, ErrNilBackend
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("persist: ping db: %w", err)
	}
	if _, err := db.ExecContext(ctx, createSnapshotsTable); err != nil {
		return nil, fmt.Errorf("persist: create snapshots table: %w", err)
	}
	return &SQLBackend{db: db}, nil
}

// Close closes the handle when it was opened by OpenSQLite.
func (b *SQLBackend) Close() error {
	if b == nil || b.db == nil || !b.own {
		return nil
	}
	return b.db.Close()
}

func (b *SQLBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persist: load %q: %w", key, err)
	}
	return data, true, nil
}

func (b *SQLBackend) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := b.db.ExecContext(
		ctx,
		`INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key,
		data,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("persist: save %q: %w", key, err)
	}
	return nil
}

// UpdatedAt reports when key was last saved.
func (b *SQLBackend) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	var millis int64
	err := b.db.QueryRowContext(ctx, `SELECT updated_at FROM snapshots WHERE key = ?`, key).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("persist: updated_at %q: %w", key, err)
	}
	return time.UnixMilli(millis).UTC(), true, nil
}
