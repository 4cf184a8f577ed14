package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/domain"
)

// Mutator applies a classified scan to a cart line through a fixed write
// pipeline. Each write completes before the next begins; later steps read
// fields committed by earlier ones.
type Mutator struct {
	writer   OrderWriter
	prompter Prompter
	caps     LineCapabilities
	newID    IDSource
}

func NewMutator(writer OrderWriter, prompter Prompter, caps LineCapabilities, newID IDSource) *Mutator {
	return &Mutator{writer: writer, prompter: prompter, caps: caps, newID: newID}
}

// MutateRequest carries everything a single apply needs. Quantity mode is
// an explicit parameter per call, never shared state.
type MutateRequest struct {
	Item             *domain.Item
	Scan             domain.ScanResult
	UOM              string
	ConversionFactor decimal.Decimal
	Warehouse        string
	Delta            decimal.Decimal
	Mode             QtyMode
	AllowNewRows     bool
}

// MutateResult reports the touched line and whether it was appended.
type MutateResult struct {
	Line    *domain.OrderLine
	Created bool
}

// pendingSplit is the leftover of a partially confirmed prompt. It exists
// only between the quantity commit and consumeSplit in the same apply.
type pendingSplit struct {
	remaining decimal.Decimal
}

// Apply mutates line (or creates one when line is nil) according to the
// request. Write order: item fill, UOM, serial, batch, barcode, warehouse,
// quantity, scanned flag. Returns typed errors for every expected failure;
// on DuplicateSerialError and ErrRowLimitExceeded nothing was written.
func (m *Mutator) Apply(ctx context.Context, order *domain.Order, line *domain.OrderLine, req MutateRequest) (MutateResult, error) {
	scan := req.Scan

	// Pre-checks run before any write so a rejected scan mutates nothing.
	if line != nil && scan.SerialNo != "" && m.caps.HasSerialField && line.HasSerial(scan.SerialNo) {
		return MutateResult{}, &DuplicateSerialError{SerialNo: scan.SerialNo, ItemCode: scan.ItemCode}
	}

	created := false
	if line == nil {
		if !req.AllowNewRows {
			return MutateResult{}, ErrRowLimitExceeded
		}
		var err error
		line, err = m.writer.AppendLine(ctx, order)
		if err != nil {
			return MutateResult{}, fmt.Errorf("append line: %w", err)
		}
		created = true
	}

	if created || line.ItemCode == "" {
		if err := m.writer.FillItem(ctx, line, req.Item, req.UOM, req.ConversionFactor); err != nil {
			return MutateResult{Line: line, Created: created}, fmt.Errorf("fill item: %w", err)
		}
	} else if scan.UOM != "" && line.UOM != scan.UOM {
		// Only a scan that itself names a UOM may change an existing
		// line's unit; a unit-less scan lands on a wildcard-matched line
		// unchanged.
		if err := m.writer.SetUOM(ctx, line, req.UOM, req.ConversionFactor); err != nil {
			return MutateResult{Line: line, Created: created}, fmt.Errorf("set uom: %w", err)
		}
	}

	if scan.SerialNo != "" && m.caps.HasSerialField {
		if err := m.writer.AppendSerial(ctx, line, scan.SerialNo); err != nil {
			return MutateResult{Line: line, Created: created}, fmt.Errorf("append serial: %w", err)
		}
	}
	if scan.BatchNo != "" && m.caps.HasBatchField && line.BatchNo != scan.BatchNo {
		if err := m.writer.SetBatch(ctx, line, scan.BatchNo); err != nil {
			return MutateResult{Line: line, Created: created}, fmt.Errorf("set batch: %w", err)
		}
	}
	if scan.Barcode != "" && m.caps.HasBarcodeField {
		if err := m.writer.SetBarcode(ctx, line, scan.Barcode); err != nil {
			return MutateResult{Line: line, Created: created}, fmt.Errorf("set barcode: %w", err)
		}
	}
	// Session warehouse context fills only empty warehouses; a line keeps
	// the warehouse it got from an earlier context.
	if req.Warehouse != "" && m.caps.HasWarehouseField && line.Warehouse == "" {
		if err := m.writer.SetWarehouse(ctx, line, req.Warehouse); err != nil {
			return MutateResult{Line: line, Created: created}, fmt.Errorf("set warehouse: %w", err)
		}
	}

	split, err := m.applyQuantity(ctx, line, req)
	if err != nil {
		return MutateResult{Line: line, Created: created}, err
	}
	if split != nil {
		if err := m.consumeSplit(ctx, order, line, req, split); err != nil {
			return MutateResult{Line: line, Created: created}, err
		}
	}

	if err := m.writer.SetScanned(ctx, line, true); err != nil {
		return MutateResult{Line: line, Created: created}, fmt.Errorf("set scanned: %w", err)
	}

	return MutateResult{Line: line, Created: created}, nil
}

func (m *Mutator) applyQuantity(ctx context.Context, line *domain.OrderLine, req MutateRequest) (*pendingSplit, error) {
	delta := req.Delta
	if delta.IsZero() {
		delta = decimal.NewFromInt(1)
	}

	switch req.Mode {
	case QtyPrompt:
		return m.promptQuantity(ctx, line, req, delta)
	default:
		newQty := line.Quantity.Add(delta)
		if m.caps.EnforceMaxQty && line.MaxQuantity != nil && newQty.GreaterThan(*line.MaxQuantity) {
			newQty = *line.MaxQuantity
		}
		if err := m.writer.SetQuantity(ctx, line, newQty); err != nil {
			return nil, fmt.Errorf("set quantity: %w", err)
		}
		return nil, nil
	}
}

// promptQuantity runs the confirmation dialog. The confirmed quantity is
// added to the line's quantity, matching increment mode; a confirmation
// below the requested quantity leaves the remainder as a pending split.
func (m *Mutator) promptQuantity(ctx context.Context, line *domain.OrderLine, req MutateRequest, delta decimal.Decimal) (*pendingSplit, error) {
	// The requested quantity is the scan delta, widened to the line's
	// remaining pick quantity when a cap is present. That remainder is
	// what makes a partial confirmation split reachable from a plain
	// scan.
	requested := delta
	if line.MaxQuantity != nil {
		if remaining := line.MaxQuantity.Sub(line.Quantity); remaining.GreaterThan(requested) {
			requested = remaining
		}
	}

	prompt := domain.QuantityPrompt{
		PromptID:     m.newID(),
		LineID:       line.ID,
		ItemCode:     req.Scan.ItemCode,
		RequestedQty: requested,
		BatchNo:      req.Scan.BatchNo,
		SerialNo:     req.Scan.SerialNo,
		Barcode:      req.Scan.Barcode,
	}

	confirmed, err := m.prompter.ConfirmQuantity(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrPromptCancelled) {
			return nil, ErrPromptCancelled
		}
		return nil, fmt.Errorf("confirm quantity: %w", err)
	}
	if !confirmed.IsPositive() {
		return nil, ErrPromptCancelled
	}
	if confirmed.GreaterThan(requested) {
		confirmed = requested
	}

	if err := m.writer.SetQuantity(ctx, line, line.Quantity.Add(confirmed)); err != nil {
		return nil, fmt.Errorf("set quantity: %w", err)
	}

	if confirmed.LessThan(requested) {
		return &pendingSplit{remaining: requested.Sub(confirmed)}, nil
	}
	return nil, nil
}

// consumeSplit spawns the sibling line for the unconfirmed remainder. The
// sibling copies item, UOM, warehouse, rate and quantity cap but never the
// identity fields: batch, serials, barcode, scanned flag.
func (m *Mutator) consumeSplit(ctx context.Context, order *domain.Order, source *domain.OrderLine, req MutateRequest, split *pendingSplit) error {
	sibling, err := m.writer.AppendLine(ctx, order)
	if err != nil {
		return fmt.Errorf("append split line: %w", err)
	}
	if err := m.writer.FillItem(ctx, sibling, req.Item, source.UOM, source.ConversionFactor); err != nil {
		return fmt.Errorf("fill split line: %w", err)
	}
	if source.Warehouse != "" && m.caps.HasWarehouseField {
		if err := m.writer.SetWarehouse(ctx, sibling, source.Warehouse); err != nil {
			return fmt.Errorf("set split warehouse: %w", err)
		}
	}
	if err := m.writer.SetRate(ctx, sibling, source.Rate); err != nil {
		return fmt.Errorf("set split rate: %w", err)
	}
	if source.MaxQuantity != nil {
		capQty := *source.MaxQuantity
		sibling.MaxQuantity = &capQty
	}
	if err := m.writer.SetQuantity(ctx, sibling, split.remaining); err != nil {
		return fmt.Errorf("set split quantity: %w", err)
	}
	return nil
}
