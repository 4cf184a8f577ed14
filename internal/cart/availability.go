package cart

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/cache"
	"scanline/backend/internal/domain"
)

// AvailabilityGate checks quantity-affecting edits against the last known
// stock position. Snapshots are cached for the session; the gate is
// advisory and the system of record re-validates at submission time.
type AvailabilityGate struct {
	stock StockProvider
	cache cache.AvailabilityCache
}

func NewAvailabilityGate(stock StockProvider, snapCache cache.AvailabilityCache) *AvailabilityGate {
	if snapCache == nil {
		snapCache = cache.NoopAvailabilityCache{}
	}
	return &AvailabilityGate{stock: stock, cache: snapCache}
}

// Snapshot returns the cached position for the item/warehouse pair,
// fetching and caching it on first use.
func (g *AvailabilityGate) Snapshot(ctx context.Context, itemCode, warehouse string) (domain.AvailabilitySnapshot, error) {
	cached, ok, err := g.cache.Get(ctx, itemCode, warehouse)
	if err != nil {
		// Cache trouble degrades to a direct fetch.
		log.Printf("[cart] WARN: availability cache get %s/%s: %v", itemCode, warehouse, err)
	}
	if ok {
		return *cached, nil
	}

	snap, err := g.stock.GetAvailability(ctx, itemCode, warehouse)
	if err != nil {
		return domain.AvailabilitySnapshot{}, fmt.Errorf("get availability: %w", err)
	}
	if err := g.cache.Set(ctx, itemCode, warehouse, &snap); err != nil {
		log.Printf("[cart] WARN: availability cache set %s/%s: %v", itemCode, warehouse, err)
	}
	return snap, nil
}

// EnsureAvailable verifies that the line can absorb a quantity increase of
// delta (in line UOM). Policy, in order: non-stock items always pass;
// system-wide negative stock skips the check; a position at or below zero
// is OutOfStockError; a position below the stock-UOM delta is
// ShortfallError.
func (g *AvailabilityGate) EnsureAvailable(ctx context.Context, line *domain.OrderLine, delta decimal.Decimal, warehouse string) error {
	snap, err := g.Snapshot(ctx, line.ItemCode, warehouse)
	if err != nil {
		return err
	}

	if !snap.IsStockItem {
		return nil
	}
	if snap.AllowNegativeStock {
		return nil
	}
	if !snap.AvailableQty.IsPositive() {
		return &OutOfStockError{ItemCode: line.ItemCode, Warehouse: warehouse}
	}

	stockDelta := delta
	if !line.ConversionFactor.IsZero() {
		stockDelta = delta.Mul(line.ConversionFactor)
	}
	if snap.AvailableQty.LessThan(stockDelta) {
		return &ShortfallError{
			ItemCode:  line.ItemCode,
			Warehouse: warehouse,
			Available: snap.AvailableQty,
			Requested: stockDelta,
		}
	}
	return nil
}

// Refresh drops the cached snapshot and fetches a fresh one. This is the
// only refresh mechanism; nothing expires entries behind the operator's
// back.
func (g *AvailabilityGate) Refresh(ctx context.Context, itemCode, warehouse string) (domain.AvailabilitySnapshot, error) {
	if err := g.cache.Delete(ctx, itemCode, warehouse); err != nil {
		log.Printf("[cart] WARN: availability cache delete %s/%s: %v", itemCode, warehouse, err)
	}
	return g.Snapshot(ctx, itemCode, warehouse)
}
