package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/domain"
	"scanline/backend/internal/xid"
)

// CartWriter persists draft carts line by line. Each method commits its
// write and then mirrors it onto the in-memory structs, so the order the
// engine holds always matches what the database saw.
type CartWriter struct {
	store *Store
}

func NewCartWriter(store *Store) *CartWriter {
	return &CartWriter{store: store}
}

// ensureCart upserts the cart header; line inserts reference it.
func (w *CartWriter) ensureCart(ctx context.Context, order *domain.Order) error {
	_, err := w.store.db.ExecContext(ctx, `
		INSERT INTO pos_carts (id, customer, status, last_scanned_warehouse)
		VALUES ($1, $2, 'open', $3)
		ON CONFLICT (id) DO UPDATE
		SET customer = EXCLUDED.customer,
		    last_scanned_warehouse = EXCLUDED.last_scanned_warehouse,
		    updated_at = now()
	`, order.ID, order.Customer, order.LastScannedWarehouse)
	return err
}

func (w *CartWriter) AppendLine(ctx context.Context, order *domain.Order) (*domain.OrderLine, error) {
	if err := w.ensureCart(ctx, order); err != nil {
		return nil, fmt.Errorf("ensure cart: %w", err)
	}

	line := &domain.OrderLine{
		ID:               xid.New("line"),
		ConversionFactor: decimal.NewFromInt(1),
	}
	_, err := w.store.db.ExecContext(ctx, `
		INSERT INTO pos_cart_lines (id, cart_id) VALUES ($1, $2)
	`, line.ID, order.ID)
	if err != nil {
		return nil, fmt.Errorf("insert line: %w", err)
	}

	order.Lines = append(order.Lines, line)
	return line, nil
}

func (w *CartWriter) FillItem(ctx context.Context, line *domain.OrderLine, item *domain.Item, uom string, conversionFactor decimal.Decimal) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_cart_lines
		SET item_code = $2, item_name = $3, uom = $4, stock_uom = $5, conversion_factor = $6
		WHERE id = $1
	`, line.ID, item.ItemCode, item.ItemName, uom, item.StockUOM, conversionFactor)
	if err != nil {
		return err
	}
	line.ItemCode = item.ItemCode
	line.ItemName = item.ItemName
	line.UOM = uom
	line.StockUOM = item.StockUOM
	line.ConversionFactor = conversionFactor
	return nil
}

func (w *CartWriter) SetUOM(ctx context.Context, line *domain.OrderLine, uom string, conversionFactor decimal.Decimal) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_cart_lines SET uom = $2, conversion_factor = $3 WHERE id = $1
	`, line.ID, uom, conversionFactor)
	if err != nil {
		return err
	}
	line.UOM = uom
	line.ConversionFactor = conversionFactor
	return nil
}

func (w *CartWriter) AppendSerial(ctx context.Context, line *domain.OrderLine, serialNo string) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_cart_lines SET serial_numbers = array_append(serial_numbers, $2) WHERE id = $1
	`, line.ID, serialNo)
	if err != nil {
		return err
	}
	line.SerialNumbers = append(line.SerialNumbers, serialNo)
	return nil
}

func (w *CartWriter) SetBatch(ctx context.Context, line *domain.OrderLine, batchNo string) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_cart_lines SET batch_no = $2 WHERE id = $1
	`, line.ID, batchNo)
	if err != nil {
		return err
	}
	line.BatchNo = batchNo
	return nil
}

func (w *CartWriter) SetBarcode(ctx context.Context, line *domain.OrderLine, barcode string) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_cart_lines SET barcode = $2 WHERE id = $1
	`, line.ID, barcode)
	if err != nil {
		return err
	}
	line.Barcode = barcode
	return nil
}

func (w *CartWriter) SetWarehouse(ctx context.Context, line *domain.OrderLine, warehouse string) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_cart_lines SET warehouse = $2 WHERE id = $1
	`, line.ID, warehouse)
	if err != nil {
		return err
	}
	line.Warehouse = warehouse
	return nil
}

func (w *CartWriter) SetRate(ctx context.Context, line *domain.OrderLine, rate decimal.Decimal) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_cart_lines SET rate = $2 WHERE id = $1
	`, line.ID, rate)
	if err != nil {
		return err
	}
	line.Rate = rate
	return nil
}

func (w *CartWriter) SetQuantity(ctx context.Context, line *domain.OrderLine, quantity decimal.Decimal) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_cart_lines SET quantity = $2 WHERE id = $1
	`, line.ID, quantity)
	if err != nil {
		return err
	}
	line.Quantity = quantity
	return nil
}

func (w *CartWriter) SetScanned(ctx context.Context, line *domain.OrderLine, scanned bool) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_cart_lines SET scanned = $2 WHERE id = $1
	`, line.ID, scanned)
	if err != nil {
		return err
	}
	line.Scanned = scanned
	return nil
}

func (w *CartWriter) RemoveLine(ctx context.Context, order *domain.Order, lineID string) error {
	_, err := w.store.db.ExecContext(ctx, `
		DELETE FROM pos_cart_lines WHERE id = $1
	`, lineID)
	if err != nil {
		return err
	}
	for i, line := range order.Lines {
		if line.ID == lineID {
			order.Lines = append(order.Lines[:i], order.Lines[i+1:]...)
			break
		}
	}
	return nil
}

// CloseCart marks the cart as no longer open so its lines stop reserving
// stock and serials against other sessions.
func (w *CartWriter) CloseCart(ctx context.Context, orderID string) error {
	_, err := w.store.db.ExecContext(ctx, `
		UPDATE pos_carts SET status = 'closed', updated_at = now() WHERE id = $1
	`, orderID)
	return err
}
