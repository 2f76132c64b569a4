// Package analytics owns the normalized order store the run-query handler
// executes against: a SQLite schema for menu items, orders and order lines,
// an ingestion loader for order batch files, and a guarded read-only query
// entry point.
package analytics

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store wraps the analytics SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewStore opens (and if needed creates) the analytics database at path.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create analytics directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open analytics database: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS menu_items (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		name     TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS orders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		location    TEXT NOT NULL DEFAULT '',
		channel     TEXT NOT NULL DEFAULT '',
		total_cents INTEGER NOT NULL DEFAULT 0,
		placed_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_placed ON orders(placed_at);
	CREATE INDEX IF NOT EXISTS idx_orders_location ON orders(location);

	CREATE TABLE IF NOT EXISTS order_items (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id     INTEGER NOT NULL REFERENCES orders(id),
		menu_item_id INTEGER NOT NULL REFERENCES menu_items(id),
		quantity     INTEGER NOT NULL DEFAULT 1,
		price_cents  INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
	`
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create analytics schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// SCHEMA DESCRIPTION (handed to the SQL-generating model call)
// =============================================================================

// SchemaDescription returns a compact description of the queryable tables
// for prompt construction.
func SchemaDescription() string {
	return `Tables:
  orders(id, external_id, location, channel, total_cents, placed_at)
  order_items(id, order_id, menu_item_id, quantity, price_cents)
  menu_items(id, name, category)
Amounts are integer cents. placed_at is a DATETIME; use date() and
datetime() functions for ranges. SQLite dialect.`
}
