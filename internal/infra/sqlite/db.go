// Package sqlite provides the default persistent memory store for Vitals.
// Uses WAL mode for concurrent reads and crash-safe writes.
//
// Entries live in one kv_store table. Expiry is stored as a unix-millisecond
// deadline; expired rows are invisible to Retrieve and removed by Purge.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/tutu-network/vitals/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db, now: time.Now}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv_store (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL,
			expires_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv_store(expires_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Memory Store ───────────────────────────────────────────────────────────

// Store writes value under key, replacing any previous entry.
// ttl <= 0 means the entry never expires.
func (d *DB) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := d.now()
	var expires sql.NullInt64
	if ttl > 0 {
		expires = sql.NullInt64{Int64: now.Add(ttl).UnixMilli(), Valid: true}
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at,
			expires_at=excluded.expires_at`,
		key, value, now.UnixMilli(), expires,
	)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Retrieve reads key. Returns domain.ErrNotFound if missing or expired.
func (d *DB) Retrieve(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT value FROM kv_store
		 WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)`,
		key, d.now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("retrieve %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", key, err)
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *DB) Delete(ctx context.Context, key string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key)
	return err
}

// Purge removes expired entries and returns how many were deleted.
func (d *DB) Purge(ctx context.Context) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		d.now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of live entries.
func (d *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kv_store WHERE expires_at IS NULL OR expires_at > ?`,
		d.now().UnixMilli(),
	).Scan(&n)
	return n, err
}

// RunPurger purges expired entries every interval until ctx is cancelled.
// Call in a goroutine.
func (d *DB) RunPurger(ctx context.Context, interval time.Duration, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.Purge(ctx)
			if err != nil {
				log.Warn("kv purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("kv purge", zap.Int64("expired", n))
			}
		}
	}
}
