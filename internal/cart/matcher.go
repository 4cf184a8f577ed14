package cart

import (
	"scanline/backend/internal/domain"
)

// Matcher selects the cart line a classified scan belongs to.
type Matcher struct {
	caps LineCapabilities
}

func NewMatcher(caps LineCapabilities) *Matcher {
	return &Matcher{caps: caps}
}

// FindLine walks the order's lines in entry order and returns the first one
// the scan can land on, or the first unfilled placeholder line, or nil when
// a new line must be appended. The predicate order is load-bearing: it is
// the sole tie-break between identical-item rows.
//
// warehouseContext is the session warehouse context; it narrows matching
// only when both the line and the effective scan warehouse are set.
func (m *Matcher) FindLine(order *domain.Order, scan domain.ScanResult, warehouseContext string) *domain.OrderLine {
	scanWarehouse := scan.Warehouse
	if scanWarehouse == "" {
		scanWarehouse = warehouseContext
	}

	for _, line := range order.Lines {
		if line.ItemCode != scan.ItemCode {
			continue
		}
		// A set batch must agree with the scanned one; an unset batch is
		// fillable and therefore eligible.
		if scan.BatchNo != "" && m.caps.HasBatchField {
			if line.BatchNo != "" && line.BatchNo != scan.BatchNo {
				continue
			}
		}
		if scan.UOM != "" && line.UOM != scan.UOM {
			continue
		}
		if m.caps.EnforceMaxQty && line.MaxQuantity != nil && line.Quantity.GreaterThanOrEqual(*line.MaxQuantity) {
			continue
		}
		// A line already resolved in this scan round cannot absorb the
		// same scan twice.
		if line.Scanned {
			continue
		}
		if warehouseContext != "" && m.caps.HasWarehouseField {
			if line.Warehouse != "" && scanWarehouse != "" && line.Warehouse != scanWarehouse {
				continue
			}
		}
		return line
	}

	// Placeholder fallback: an inserted-but-unfilled row absorbs the scan
	// before a new row is appended.
	for _, line := range order.Lines {
		if line.ItemCode == "" {
			return line
		}
	}
	return nil
}
