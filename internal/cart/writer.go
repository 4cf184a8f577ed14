package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/domain"
)

// OrderWriter applies cart mutations. Every method completes (or fails)
// before the engine issues the next one; the write order inside a scan is
// fixed and relied upon by tests. Implementations mutate the passed-in
// structs so the in-memory order always reflects what was persisted.
type OrderWriter interface {
	// AppendLine adds an empty line to the order and returns it.
	AppendLine(ctx context.Context, order *domain.Order) (*domain.OrderLine, error)
	// FillItem stamps the item identity fields onto a fresh or placeholder
	// line: code, name, UOMs, conversion factor.
	FillItem(ctx context.Context, line *domain.OrderLine, item *domain.Item, uom string, conversionFactor decimal.Decimal) error
	SetUOM(ctx context.Context, line *domain.OrderLine, uom string, conversionFactor decimal.Decimal) error
	AppendSerial(ctx context.Context, line *domain.OrderLine, serialNo string) error
	SetBatch(ctx context.Context, line *domain.OrderLine, batchNo string) error
	SetBarcode(ctx context.Context, line *domain.OrderLine, barcode string) error
	SetWarehouse(ctx context.Context, line *domain.OrderLine, warehouse string) error
	SetRate(ctx context.Context, line *domain.OrderLine, rate decimal.Decimal) error
	SetQuantity(ctx context.Context, line *domain.OrderLine, quantity decimal.Decimal) error
	SetScanned(ctx context.Context, line *domain.OrderLine, scanned bool) error
	RemoveLine(ctx context.Context, order *domain.Order, lineID string) error
}

// IDSource mints line ids. The xid package satisfies it via a func value.
type IDSource func() string

// MemoryWriter mutates orders in place with no persistence behind it. Used
// by the memory-backed dev mode and by tests.
type MemoryWriter struct {
	NewID IDSource
}

func (w *MemoryWriter) lineID() string {
	if w.NewID != nil {
		return w.NewID()
	}
	return ""
}

func (w *MemoryWriter) AppendLine(_ context.Context, order *domain.Order) (*domain.OrderLine, error) {
	line := &domain.OrderLine{
		ID:               w.lineID(),
		ConversionFactor: decimal.NewFromInt(1),
	}
	order.Lines = append(order.Lines, line)
	return line, nil
}

func (w *MemoryWriter) FillItem(_ context.Context, line *domain.OrderLine, item *domain.Item, uom string, conversionFactor decimal.Decimal) error {
	line.ItemCode = item.ItemCode
	line.ItemName = item.ItemName
	line.StockUOM = item.StockUOM
	line.UOM = uom
	line.ConversionFactor = conversionFactor
	return nil
}

func (w *MemoryWriter) SetUOM(_ context.Context, line *domain.OrderLine, uom string, conversionFactor decimal.Decimal) error {
	line.UOM = uom
	line.ConversionFactor = conversionFactor
	return nil
}

func (w *MemoryWriter) AppendSerial(_ context.Context, line *domain.OrderLine, serialNo string) error {
	line.SerialNumbers = append(line.SerialNumbers, serialNo)
	return nil
}

func (w *MemoryWriter) SetBatch(_ context.Context, line *domain.OrderLine, batchNo string) error {
	line.BatchNo = batchNo
	return nil
}

func (w *MemoryWriter) SetBarcode(_ context.Context, line *domain.OrderLine, barcode string) error {
	line.Barcode = barcode
	return nil
}

func (w *MemoryWriter) SetWarehouse(_ context.Context, line *domain.OrderLine, warehouse string) error {
	line.Warehouse = warehouse
	return nil
}

func (w *MemoryWriter) SetRate(_ context.Context, line *domain.OrderLine, rate decimal.Decimal) error {
	line.Rate = rate
	return nil
}

func (w *MemoryWriter) SetQuantity(_ context.Context, line *domain.OrderLine, quantity decimal.Decimal) error {
	line.Quantity = quantity
	return nil
}

func (w *MemoryWriter) SetScanned(_ context.Context, line *domain.OrderLine, scanned bool) error {
	line.Scanned = scanned
	return nil
}

func (w *MemoryWriter) RemoveLine(_ context.Context, order *domain.Order, lineID string) error {
	for i, line := range order.Lines {
		if line.ID == lineID {
			order.Lines = append(order.Lines[:i], order.Lines[i+1:]...)
			return nil
		}
	}
	return nil
}
