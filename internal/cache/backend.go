package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteBackend persists cache entries so they survive process restarts.
// (call_id, key_hash, variant) is the primary key. Any backend error is
// reported to the caller, which logs and continues memory-only.
type sqliteBackend struct {
	db *sql.DB
}

func newSQLiteBackend(path string) (*sqliteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS response_cache (
		call_id      TEXT NOT NULL,
		key_hash     TEXT NOT NULL,
		variant      INTEGER NOT NULL DEFAULT 0,
		value        TEXT NOT NULL,
		created_at   DATETIME NOT NULL,
		last_used_at DATETIME NOT NULL,
		PRIMARY KEY (call_id, key_hash, variant)
	);
	CREATE INDEX IF NOT EXISTS idx_cache_lru ON response_cache(last_used_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

// loadAll returns up to limit entries ordered oldest-used first. The limit
// keeps the most recently used entries: selection is newest-first so a store
// larger than the cache drops its cold tail, then the slice is reversed to
// restore insertion order.
func (b *sqliteBackend) loadAll(limit int) ([]Entry, error) {
	rows, err := b.db.Query(
		`SELECT call_id, key_hash, variant, value, created_at, last_used_at
		 FROM response_cache
		 ORDER BY last_used_at DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.CallID, &e.KeyHash, &e.Variant, &e.Value, &e.CreatedAt, &e.LastUsedAt); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, rows.Err()
}

func (b *sqliteBackend) put(e *Entry) error {
	_, err := b.db.Exec(
		`INSERT OR REPLACE INTO response_cache (call_id, key_hash, variant, value, created_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.CallID, e.KeyHash, e.Variant, e.Value, e.CreatedAt, e.LastUsedAt)
	return err
}

func (b *sqliteBackend) touch(callID, keyHash string, variant int, usedAt time.Time) error {
	_, err := b.db.Exec(
		`UPDATE response_cache SET last_used_at = ? WHERE call_id = ? AND key_hash = ? AND variant = ?`,
		usedAt, callID, keyHash, variant)
	return err
}

func (b *sqliteBackend) delete(callID, keyHash string, variant int) error {
	_, err := b.db.Exec(
		`DELETE FROM response_cache WHERE call_id = ? AND key_hash = ? AND variant = ?`,
		callID, keyHash, variant)
	return err
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}
