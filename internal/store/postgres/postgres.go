// Package postgres is the database-backed Repository. It speaks plain
// database/sql over the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/jackc/pgx/v5/stdlib"

	"scanline/backend/internal/domain"
	"scanline/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ClassifyScan probes barcode, serial, batch, then warehouse. The first
// table that knows the value wins.
func (s *Store) ClassifyScan(ctx context.Context, searchValue string, _ domain.ScanContext) (domain.ScanResult, error) {
	var result domain.ScanResult

	err := s.db.QueryRowContext(ctx, `
		SELECT b.item_code, b.barcode, b.uom, i.has_batch_no, i.has_serial_no
		FROM item_barcodes b
		JOIN items i ON i.item_code = b.item_code
		WHERE b.barcode = $1 AND NOT i.disabled
	`, searchValue).Scan(&result.ItemCode, &result.Barcode, &result.UOM, &result.HasBatchNo, &result.HasSerialNo)
	if err == nil {
		result.Kind = domain.ScanKindItem
		return result, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.ScanResult{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT u.item_code, u.serial_no, u.warehouse, i.has_batch_no, i.has_serial_no
		FROM serial_units u
		JOIN items i ON i.item_code = u.item_code
		WHERE u.serial_no = $1 AND NOT i.disabled
	`, searchValue).Scan(&result.ItemCode, &result.SerialNo, &result.Warehouse, &result.HasBatchNo, &result.HasSerialNo)
	if err == nil {
		result.Kind = domain.ScanKindItem
		return result, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.ScanResult{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT l.item_code, l.batch_no, i.has_batch_no, i.has_serial_no
		FROM batch_lots l
		JOIN items i ON i.item_code = l.item_code
		WHERE l.batch_no = $1 AND NOT i.disabled
	`, searchValue).Scan(&result.ItemCode, &result.BatchNo, &result.HasBatchNo, &result.HasSerialNo)
	if err == nil {
		result.Kind = domain.ScanKindItem
		return result, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.ScanResult{}, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT code FROM warehouses WHERE code = $1
	`, searchValue).Scan(&result.Warehouse)
	if err == nil {
		result.Kind = domain.ScanKindWarehouse
		return result, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.ScanResult{}, err
	}

	return domain.ScanResult{Kind: domain.ScanKindNone}, nil
}

func (s *Store) GetItem(ctx context.Context, itemCode string) (*domain.Item, error) {
	var item domain.Item
	err := s.db.QueryRowContext(ctx, `
		SELECT item_code, item_name, description, stock_uom, sales_uom,
		       is_stock_item, has_batch_no, has_serial_no, disabled
		FROM items
		WHERE item_code = $1 AND NOT disabled
	`, itemCode).Scan(&item.ItemCode, &item.ItemName, &item.Description, &item.StockUOM,
		&item.SalesUOM, &item.IsStockItem, &item.HasBatchNo, &item.HasSerialNo, &item.Disabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListItems(ctx context.Context, searchTerm string, limit int) ([]domain.Item, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_code, item_name, description, stock_uom, sales_uom,
		       is_stock_item, has_batch_no, has_serial_no, disabled
		FROM items
		WHERE NOT disabled
		  AND ($1 = '' OR item_code ILIKE '%' || $1 || '%' OR item_name ILIKE '%' || $1 || '%')
		ORDER BY item_code
		LIMIT $2
	`, searchTerm, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 64)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ItemCode, &item.ItemName, &item.Description, &item.StockUOM,
			&item.SalesUOM, &item.IsStockItem, &item.HasBatchNo, &item.HasSerialNo, &item.Disabled); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItemPrice prefers the most specific row: batch-pinned beats
// UOM-pinned beats the item's generic rate.
func (s *Store) GetItemPrice(ctx context.Context, itemCode, uom, batchNo, priceList string) (*domain.ItemPrice, error) {
	var price domain.ItemPrice
	err := s.db.QueryRowContext(ctx, `
		SELECT price_list, item_code, uom, batch_no, rate, currency
		FROM item_prices
		WHERE item_code = $1 AND price_list = $2
		  AND (batch_no = '' OR batch_no = $3)
		  AND (uom = '' OR uom = $4)
		ORDER BY (batch_no <> '') DESC, (uom <> '') DESC
		LIMIT 1
	`, itemCode, priceList, batchNo, uom).Scan(&price.PriceList, &price.ItemCode, &price.UOM,
		&price.BatchNo, &price.Rate, &price.Currency)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &price, nil
}

func (s *Store) GetConversionFactor(ctx context.Context, itemCode, uom string) (decimal.Decimal, error) {
	var stockUOM string
	err := s.db.QueryRowContext(ctx, `
		SELECT stock_uom FROM items WHERE item_code = $1
	`, itemCode).Scan(&stockUOM)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, store.ErrNotFound
		}
		return decimal.Zero, err
	}
	if uom == stockUOM {
		return decimal.NewFromInt(1), nil
	}

	var factor decimal.Decimal
	err = s.db.QueryRowContext(ctx, `
		SELECT factor FROM uom_conversions WHERE item_code = $1 AND uom = $2
	`, itemCode, uom).Scan(&factor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, store.ErrNotFound
		}
		return decimal.Zero, err
	}
	return factor, nil
}

// GetAvailability reports bin quantity minus what other open carts hold,
// in stock UOM.
func (s *Store) GetAvailability(ctx context.Context, itemCode, warehouse string) (domain.AvailabilitySnapshot, error) {
	snap := domain.AvailabilitySnapshot{
		ItemCode:  itemCode,
		Warehouse: warehouse,
		FetchedAt: time.Now(),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT i.is_stock_item,
		       COALESCE((SELECT qty FROM bins WHERE warehouse = $2 AND item_code = $1), 0)
		     - COALESCE((
		           SELECT SUM(l.quantity * l.conversion_factor)
		           FROM pos_cart_lines l
		           JOIN pos_carts c ON c.id = l.cart_id
		           WHERE c.status = 'open' AND l.item_code = $1 AND l.warehouse = $2
		       ), 0),
		       COALESCE((SELECT allow_negative_stock FROM stock_settings LIMIT 1), false)
		FROM items i
		WHERE i.item_code = $1
	`, itemCode, warehouse).Scan(&snap.IsStockItem, &snap.AvailableQty, &snap.AllowNegativeStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AvailabilitySnapshot{}, store.ErrNotFound
		}
		return domain.AvailabilitySnapshot{}, err
	}
	return snap, nil
}

func (s *Store) ListReservedSerials(ctx context.Context, itemCode, warehouse string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unnest(l.serial_numbers)
		FROM pos_cart_lines l
		JOIN pos_carts c ON c.id = l.cart_id
		WHERE c.status = 'open' AND l.item_code = $1
		  AND ($2 = '' OR l.warehouse = '' OR l.warehouse = $2)
	`, itemCode, warehouse)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reserved := make(map[string]struct{})
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			return nil, err
		}
		reserved[sn] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reserved, nil
}

func (s *Store) CreateUser(ctx context.Context, user *domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pos_users (username, password, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO NOTHING
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM pos_users
		WHERE username = $1
	`, username).Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM pos_users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
