package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// ORDER INGESTION
// =============================================================================

// OrderLine is one line item of an inbound order.
type OrderLine struct {
	Item       string `json:"item"`
	Category   string `json:"category"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price_cents"`
}

// OrderRecord is one inbound order as delivered by the POS webhook export.
type OrderRecord struct {
	ExternalID string      `json:"external_id"`
	Location   string      `json:"location"`
	Channel    string      `json:"channel"`
	PlacedAt   time.Time   `json:"placed_at"`
	Lines      []OrderLine `json:"lines"`
}

// IngestBatch normalizes a batch of orders into the store. Orders already
// present (by external id) are skipped. Returns how many orders were
// inserted.
func (s *Store) IngestBatch(ctx context.Context, orders []OrderRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin ingest transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, order := range orders {
		if order.ExternalID == "" {
			s.logger.Warn("skipping order without external id",
				zap.String("location", order.Location))
			continue
		}

		var total int64
		for _, line := range order.Lines {
			total += line.PriceCents * int64(line.Quantity)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO orders (external_id, location, channel, total_cents, placed_at)
			 VALUES (?, ?, ?, ?, ?)`,
			order.ExternalID, order.Location, order.Channel, total, order.PlacedAt.UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to insert order %s: %w", order.ExternalID, err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			continue // duplicate delivery
		}
		orderID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read order id: %w", err)
		}

		for _, line := range order.Lines {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO menu_items (name, category) VALUES (?, ?)`,
				line.Item, line.Category); err != nil {
				return 0, fmt.Errorf("failed to upsert menu item %q: %w", line.Item, err)
			}
			qty := line.Quantity
			if qty <= 0 {
				qty = 1
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, menu_item_id, quantity, price_cents)
				 SELECT ?, id, ?, ? FROM menu_items WHERE name = ?`,
				orderID, qty, line.PriceCents, line.Item); err != nil {
				return 0, fmt.Errorf("failed to insert order line: %w", err)
			}
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ingest transaction: %w", err)
	}

	s.logger.Info("order batch ingested",
		zap.Int("received", len(orders)), zap.Int("inserted", inserted))
	return inserted, nil
}

// IngestFiles parses the given JSON batch files concurrently and ingests
// their orders. Parsing fans out; inserts stay serialized behind the store
// lock.
func (s *Store) IngestFiles(ctx context.Context, paths []string) (int, error) {
	batches := make([][]OrderRecord, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			var orders []OrderRecord
			if err := json.Unmarshal(data, &orders); err != nil {
				return fmt.Errorf("failed to parse %s: %w", path, err)
			}
			batches[i] = orders
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, orders := range batches {
		n, err := s.IngestBatch(ctx, orders)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}
