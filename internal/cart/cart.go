// Package cart implements the scan-to-cart reconciliation engine: classify a
// raw scan, find or create the cart line it belongs to, apply the ordered
// field writes, then gate the result against stock availability.
package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/domain"
)

// Lookup is the read-side collaborator surface the engine needs. The store
// Repository satisfies it.
type Lookup interface {
	ClassifyScan(ctx context.Context, searchValue string, scanCtx domain.ScanContext) (domain.ScanResult, error)
	GetItem(ctx context.Context, itemCode string) (*domain.Item, error)
	GetItemPrice(ctx context.Context, itemCode, uom, batchNo, priceList string) (*domain.ItemPrice, error)
	GetConversionFactor(ctx context.Context, itemCode, uom string) (decimal.Decimal, error)
	ListReservedSerials(ctx context.Context, itemCode, warehouse string) (map[string]struct{}, error)
}

// StockProvider fetches fresh availability snapshots. The store Repository
// satisfies it.
type StockProvider interface {
	GetAvailability(ctx context.Context, itemCode, warehouse string) (domain.AvailabilitySnapshot, error)
}

// Prompter runs the quantity-confirmation dialog. ConfirmQuantity blocks
// until the operator answers; ErrPromptCancelled means the dialog was
// dismissed. The confirmed quantity is clamped by the caller, never here.
type Prompter interface {
	ConfirmQuantity(ctx context.Context, prompt domain.QuantityPrompt) (decimal.Decimal, error)
}

// LineCapabilities declares which identity fields cart lines carry and
// which quantity policies apply. The mutator skips writes for fields a
// line shape does not have.
type LineCapabilities struct {
	HasBatchField     bool
	HasSerialField    bool
	HasBarcodeField   bool
	HasWarehouseField bool
	EnforceMaxQty     bool
}

// DefaultCapabilities is the full point-of-sale line shape.
func DefaultCapabilities() LineCapabilities {
	return LineCapabilities{
		HasBatchField:     true,
		HasSerialField:    true,
		HasBarcodeField:   true,
		HasWarehouseField: true,
	}
}

// QtyMode selects how a matched scan changes line quantity.
type QtyMode int

const (
	// QtyIncrement adds the scan delta directly.
	QtyIncrement QtyMode = iota
	// QtyPrompt asks the operator to confirm the quantity first.
	QtyPrompt
)
