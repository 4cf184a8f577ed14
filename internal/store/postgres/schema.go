package postgres

import (
	"context"
	"fmt"
)

// schema is idempotent; EnsureSchema runs at startup so a fresh database
// is usable without a separate migration step.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		item_code     TEXT PRIMARY KEY,
		item_name     TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		stock_uom     TEXT NOT NULL,
		sales_uom     TEXT NOT NULL DEFAULT '',
		is_stock_item BOOLEAN NOT NULL DEFAULT true,
		has_batch_no  BOOLEAN NOT NULL DEFAULT false,
		has_serial_no BOOLEAN NOT NULL DEFAULT false,
		disabled      BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS item_barcodes (
		barcode   TEXT PRIMARY KEY,
		item_code TEXT NOT NULL REFERENCES items(item_code),
		uom       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS serial_units (
		serial_no TEXT PRIMARY KEY,
		item_code TEXT NOT NULL REFERENCES items(item_code),
		warehouse TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS batch_lots (
		batch_no  TEXT PRIMARY KEY,
		item_code TEXT NOT NULL REFERENCES items(item_code)
	)`,
	`CREATE TABLE IF NOT EXISTS warehouses (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bins (
		warehouse TEXT NOT NULL REFERENCES warehouses(code),
		item_code TEXT NOT NULL REFERENCES items(item_code),
		qty       NUMERIC NOT NULL DEFAULT 0,
		PRIMARY KEY (warehouse, item_code)
	)`,
	`CREATE TABLE IF NOT EXISTS item_prices (
		id         BIGSERIAL PRIMARY KEY,
		price_list TEXT NOT NULL,
		item_code  TEXT NOT NULL REFERENCES items(item_code),
		uom        TEXT NOT NULL DEFAULT '',
		batch_no   TEXT NOT NULL DEFAULT '',
		rate       NUMERIC NOT NULL,
		currency   TEXT NOT NULL DEFAULT 'IDR'
	)`,
	`CREATE TABLE IF NOT EXISTS uom_conversions (
		item_code TEXT NOT NULL REFERENCES items(item_code),
		uom       TEXT NOT NULL,
		factor    NUMERIC NOT NULL,
		PRIMARY KEY (item_code, uom)
	)`,
	`CREATE TABLE IF NOT EXISTS pos_carts (
		id                     TEXT PRIMARY KEY,
		customer               TEXT NOT NULL DEFAULT '',
		status                 TEXT NOT NULL DEFAULT 'open',
		last_scanned_warehouse TEXT NOT NULL DEFAULT '',
		created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS pos_cart_lines (
		id                TEXT PRIMARY KEY,
		cart_id           TEXT NOT NULL REFERENCES pos_carts(id) ON DELETE CASCADE,
		item_code         TEXT NOT NULL DEFAULT '',
		item_name         TEXT NOT NULL DEFAULT '',
		uom               TEXT NOT NULL DEFAULT '',
		stock_uom         TEXT NOT NULL DEFAULT '',
		conversion_factor NUMERIC NOT NULL DEFAULT 1,
		batch_no          TEXT NOT NULL DEFAULT '',
		serial_numbers    TEXT[] NOT NULL DEFAULT '{}',
		barcode           TEXT NOT NULL DEFAULT '',
		warehouse         TEXT NOT NULL DEFAULT '',
		quantity          NUMERIC NOT NULL DEFAULT 0,
		max_quantity      NUMERIC,
		rate              NUMERIC NOT NULL DEFAULT 0,
		scanned           BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cart_lines_item ON pos_cart_lines (item_code, warehouse)`,
	`CREATE TABLE IF NOT EXISTS pos_users (
		username   TEXT PRIMARY KEY,
		password   TEXT NOT NULL,
		role       TEXT NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_settings (
		id                   BOOLEAN PRIMARY KEY DEFAULT true CHECK (id),
		allow_negative_stock BOOLEAN NOT NULL DEFAULT false
	)`,
}

// EnsureSchema creates every table the store needs if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
