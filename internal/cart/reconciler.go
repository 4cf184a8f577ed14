package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/cache"
	"scanline/backend/internal/domain"
	"scanline/backend/internal/store"
)

// reconcile states. Error exits from any state land back on idle.
type reconcileState int

const (
	stateIdle reconcileState = iota
	stateResolving
	stateMatching
	stateMutating
	stateAvailabilityCheck
)

// Config fixes a reconciler's policies at construction.
type Config struct {
	Capabilities     LineCapabilities
	PriceList        string
	Company          string
	DefaultWarehouse string
	AllowNewRows     bool
	QtyMode          QtyMode
}

// Reconciler drives one cart through scan and edit events. Events are
// strictly serial: a busy gate rejects a second event while one is in
// flight. Every expected failure maps to a user-visible outcome here;
// callers never see an error from Scan.
type Reconciler struct {
	cfg      Config
	lookup   Lookup
	resolver *Resolver
	matcher  *Matcher
	mutator  *Mutator
	gate     *AvailabilityGate
	writer   OrderWriter

	mu    sync.Mutex
	busy  bool
	state reconcileState
	order *domain.Order
}

func NewReconciler(lookup Lookup, stock StockProvider, snapCache cache.AvailabilityCache, writer OrderWriter, prompter Prompter, newID IDSource, cfg Config, order *domain.Order) *Reconciler {
	return &Reconciler{
		cfg:      cfg,
		lookup:   lookup,
		resolver: NewResolver(lookup),
		matcher:  NewMatcher(cfg.Capabilities),
		mutator:  NewMutator(writer, prompter, cfg.Capabilities, newID),
		gate:     NewAvailabilityGate(stock, snapCache),
		writer:   writer,
		order:    order,
	}
}

// Order exposes the cart for read-only rendering between events.
func (r *Reconciler) Order() *domain.Order {
	return r.order
}

func (r *Reconciler) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy {
		return false
	}
	r.busy = true
	return true
}

// finish returns the machine to idle and clears the per-round scanned
// flags so the next scan sees every line as eligible again.
func (r *Reconciler) finish(ctx context.Context) {
	for _, line := range r.order.Lines {
		if line.Scanned {
			if err := r.writer.SetScanned(ctx, line, false); err != nil {
				log.Printf("[cart] WARN: clear scanned flag on line %s: %v", line.ID, err)
			}
		}
	}
	r.mu.Lock()
	r.busy = false
	r.state = stateIdle
	r.mu.Unlock()
}

// Scan processes one raw scan to completion. It never returns an error:
// every failure branch is mapped to an outcome with a message and cue.
func (r *Reconciler) Scan(ctx context.Context, rawText string) domain.ScanOutcome {
	if !r.begin() {
		return r.mapError(ErrScanInProgress, nil)
	}
	defer r.finish(ctx)

	r.state = stateResolving
	scan := r.resolver.Resolve(ctx, rawText, domain.ScanContext{
		Warehouse: r.order.LastScannedWarehouse,
		Company:   r.cfg.Company,
	})

	switch scan.Kind {
	case domain.ScanKindNone:
		return domain.ScanOutcome{
			Status:  domain.OutcomeNoMatch,
			Message: "Cannot find an item with this barcode",
			Cue:     domain.CueError,
		}
	case domain.ScanKindWarehouse:
		// Warehouse scans switch context and never touch lines.
		r.order.LastScannedWarehouse = scan.Warehouse
		return domain.ScanOutcome{
			Status:  domain.OutcomeWarehouseSet,
			Message: fmt.Sprintf("Warehouse context set to %s", scan.Warehouse),
			Cue:     domain.CueBeep,
		}
	}

	return r.applyItemScan(ctx, scan)
}

func (r *Reconciler) applyItemScan(ctx context.Context, scan domain.ScanResult) domain.ScanOutcome {
	if r.order.Customer == "" {
		return r.mapError(ErrMissingCustomer, nil)
	}

	item, err := r.lookup.GetItem(ctx, scan.ItemCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ScanOutcome{
				Status:  domain.OutcomeNoMatch,
				Message: "Cannot find an item with this barcode",
				Cue:     domain.CueError,
			}
		}
		return r.collaboratorFault("get item", err)
	}

	uom := scan.UOM
	if uom == "" {
		uom = item.SalesUOM
	}
	if uom == "" {
		uom = item.StockUOM
	}
	factor := decimal.NewFromInt(1)
	if uom != item.StockUOM {
		factor, err = r.lookup.GetConversionFactor(ctx, scan.ItemCode, uom)
		if err != nil {
			return r.collaboratorFault("get conversion factor", err)
		}
	}

	price, err := r.lookup.GetItemPrice(ctx, scan.ItemCode, uom, scan.BatchNo, r.cfg.PriceList)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return r.mapError(&MissingPriceError{ItemCode: scan.ItemCode, PriceList: r.cfg.PriceList}, nil)
		}
		return r.collaboratorFault("get item price", err)
	}

	effectiveWarehouse := scan.Warehouse
	if effectiveWarehouse == "" {
		effectiveWarehouse = r.order.LastScannedWarehouse
	}

	if scan.SerialNo != "" && r.cfg.Capabilities.HasSerialField {
		reserved, err := r.lookup.ListReservedSerials(ctx, scan.ItemCode, effectiveWarehouse)
		if err != nil {
			return r.collaboratorFault("list reserved serials", err)
		}
		if _, taken := reserved[scan.SerialNo]; taken {
			return r.mapError(&SerialReservedError{SerialNo: scan.SerialNo, ItemCode: scan.ItemCode}, nil)
		}
	}

	r.state = stateMatching
	line := r.matcher.FindLine(r.order, scan, r.order.LastScannedWarehouse)

	prevQty := decimal.Zero
	if line != nil {
		prevQty = line.Quantity
	}

	r.state = stateMutating
	result, err := r.mutator.Apply(ctx, r.order, line, MutateRequest{
		Item:             item,
		Scan:             scan,
		UOM:              uom,
		ConversionFactor: factor,
		Warehouse:        effectiveWarehouse,
		Delta:            decimal.NewFromInt(1),
		Mode:             r.cfg.QtyMode,
		AllowNewRows:     r.cfg.AllowNewRows,
	})
	if err != nil {
		return r.mapError(err, result.Line)
	}
	line = result.Line

	if line.Rate.IsZero() {
		if err := r.writer.SetRate(ctx, line, price.Rate); err != nil {
			return r.collaboratorFault("set rate", err)
		}
	}

	r.state = stateAvailabilityCheck
	delta := line.Quantity.Sub(prevQty)
	checkWarehouse := line.Warehouse
	if checkWarehouse == "" {
		checkWarehouse = r.cfg.DefaultWarehouse
	}
	if delta.IsPositive() && checkWarehouse != "" {
		if err := r.gate.EnsureAvailable(ctx, line, delta, checkWarehouse); err != nil {
			return r.rollbackAvailability(ctx, err, line, prevQty, result.Created)
		}
	}

	status := domain.OutcomeLineUpdated
	if result.Created {
		status = domain.OutcomeLineAdded
	}
	return domain.ScanOutcome{
		Status:   status,
		Cue:      domain.CueBeep,
		LineID:   line.ID,
		ItemCode: line.ItemCode,
		Quantity: line.Quantity,
		Created:  result.Created,
	}
}

// rollbackAvailability undoes the quantity change a failed gate blocked.
// Out of stock discards the line entirely; a shortfall only reverts the
// quantity and keeps the line.
func (r *Reconciler) rollbackAvailability(ctx context.Context, gateErr error, line *domain.OrderLine, prevQty decimal.Decimal, created bool) domain.ScanOutcome {
	var outOfStock *OutOfStockError
	var shortfall *ShortfallError

	switch {
	case errors.As(gateErr, &outOfStock):
		if err := r.writer.RemoveLine(ctx, r.order, line.ID); err != nil {
			log.Printf("[cart] WARN: rollback line %s: %v", line.ID, err)
		}
		return domain.ScanOutcome{
			Status:   domain.OutcomeError,
			Message:  fmt.Sprintf("Item %s is out of stock in warehouse %s", outOfStock.ItemCode, outOfStock.Warehouse),
			Cue:      domain.CueError,
			ItemCode: outOfStock.ItemCode,
		}
	case errors.As(gateErr, &shortfall):
		if err := r.writer.SetQuantity(ctx, line, prevQty); err != nil {
			log.Printf("[cart] WARN: revert quantity on line %s: %v", line.ID, err)
		}
		if created && prevQty.IsZero() {
			// A brand-new line blocked before its first unit would sit at
			// zero quantity; drop it instead.
			if err := r.writer.RemoveLine(ctx, r.order, line.ID); err != nil {
				log.Printf("[cart] WARN: rollback line %s: %v", line.ID, err)
			}
		}
		return domain.ScanOutcome{
			Status:   domain.OutcomeError,
			Message:  fmt.Sprintf("Only %s of item %s available in warehouse %s", shortfall.Available, shortfall.ItemCode, shortfall.Warehouse),
			Cue:      domain.CueError,
			ItemCode: shortfall.ItemCode,
			LineID:   line.ID,
			Quantity: prevQty,
		}
	default:
		return r.collaboratorFault("availability check", gateErr)
	}
}

// SetLineQuantity applies a manual quantity edit through the same gating
// as a scan. Setting zero removes the line.
func (r *Reconciler) SetLineQuantity(ctx context.Context, lineID string, quantity decimal.Decimal) domain.ScanOutcome {
	if !r.begin() {
		return r.mapError(ErrScanInProgress, nil)
	}
	defer r.finish(ctx)

	line := r.order.Line(lineID)
	if line == nil {
		return domain.ScanOutcome{
			Status:  domain.OutcomeError,
			Message: "Line not found",
			Cue:     domain.CueError,
		}
	}
	if quantity.IsNegative() {
		return domain.ScanOutcome{
			Status:  domain.OutcomeError,
			Message: "Quantity cannot be negative",
			Cue:     domain.CueError,
			LineID:  lineID,
		}
	}
	if quantity.IsZero() {
		if err := r.writer.RemoveLine(ctx, r.order, lineID); err != nil {
			return r.collaboratorFault("remove line", err)
		}
		return domain.ScanOutcome{Status: domain.OutcomeLineRemoved, LineID: lineID}
	}

	if r.cfg.Capabilities.EnforceMaxQty && line.MaxQuantity != nil && quantity.GreaterThan(*line.MaxQuantity) {
		quantity = *line.MaxQuantity
	}

	prevQty := line.Quantity
	if err := r.writer.SetQuantity(ctx, line, quantity); err != nil {
		return r.collaboratorFault("set quantity", err)
	}

	delta := quantity.Sub(prevQty)
	checkWarehouse := line.Warehouse
	if checkWarehouse == "" {
		checkWarehouse = r.cfg.DefaultWarehouse
	}
	if delta.IsPositive() && checkWarehouse != "" {
		if err := r.gate.EnsureAvailable(ctx, line, delta, checkWarehouse); err != nil {
			return r.rollbackAvailability(ctx, err, line, prevQty, false)
		}
	}

	return domain.ScanOutcome{
		Status:   domain.OutcomeLineUpdated,
		LineID:   lineID,
		ItemCode: line.ItemCode,
		Quantity: line.Quantity,
	}
}

// RemoveLine deletes a line outright.
func (r *Reconciler) RemoveLine(ctx context.Context, lineID string) domain.ScanOutcome {
	if !r.begin() {
		return r.mapError(ErrScanInProgress, nil)
	}
	defer r.finish(ctx)

	if r.order.Line(lineID) == nil {
		return domain.ScanOutcome{
			Status:  domain.OutcomeError,
			Message: "Line not found",
			Cue:     domain.CueError,
		}
	}
	if err := r.writer.RemoveLine(ctx, r.order, lineID); err != nil {
		return r.collaboratorFault("remove line", err)
	}
	return domain.ScanOutcome{Status: domain.OutcomeLineRemoved, LineID: lineID}
}

// SetWarehouseContext sets the session warehouse applied to subsequent
// scans; ClearWarehouseContext reverts to no-default behavior.
func (r *Reconciler) SetWarehouseContext(warehouse string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order.LastScannedWarehouse = warehouse
}

func (r *Reconciler) ClearWarehouseContext() {
	r.SetWarehouseContext("")
}

// SetCustomer satisfies the line-creation precondition.
func (r *Reconciler) SetCustomer(customer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order.Customer = customer
}

// RefreshAvailability forces a fresh snapshot for the pair.
func (r *Reconciler) RefreshAvailability(ctx context.Context, itemCode, warehouse string) (domain.AvailabilitySnapshot, error) {
	return r.gate.Refresh(ctx, itemCode, warehouse)
}

func busyOutcome() domain.ScanOutcome {
	return domain.ScanOutcome{
		Status:  domain.OutcomeWarning,
		Message: "A scan is already being processed",
		Cue:     domain.CueError,
	}
}

// mapError translates engine errors into user-visible outcomes. This is
// the boundary: nothing typed leaks past it.
func (r *Reconciler) mapError(err error, line *domain.OrderLine) domain.ScanOutcome {
	var dupSerial *DuplicateSerialError
	var reserved *SerialReservedError
	var missingPrice *MissingPriceError

	switch {
	case errors.Is(err, ErrScanInProgress):
		return busyOutcome()
	case errors.Is(err, ErrMissingCustomer):
		return domain.ScanOutcome{
			Status:  domain.OutcomeWarning,
			Message: "Select a customer before adding items",
			Cue:     domain.CueError,
		}
	case errors.Is(err, ErrRowLimitExceeded):
		return domain.ScanOutcome{
			Status:  domain.OutcomeWarning,
			Message: "No eligible row for this scan and new rows are not allowed",
			Cue:     domain.CueError,
		}
	case errors.Is(err, ErrPromptCancelled):
		out := domain.ScanOutcome{
			Status:  domain.OutcomeCancelled,
			Message: "Quantity confirmation cancelled",
		}
		if line != nil {
			out.LineID = line.ID
			out.ItemCode = line.ItemCode
			out.Quantity = line.Quantity
		}
		return out
	case errors.As(err, &dupSerial):
		return domain.ScanOutcome{
			Status:   domain.OutcomeWarning,
			Message:  fmt.Sprintf("Serial number %s is already scanned", dupSerial.SerialNo),
			Cue:      domain.CueError,
			ItemCode: dupSerial.ItemCode,
		}
	case errors.As(err, &reserved):
		return domain.ScanOutcome{
			Status:   domain.OutcomeWarning,
			Message:  fmt.Sprintf("Serial number %s is reserved by another cart", reserved.SerialNo),
			Cue:      domain.CueError,
			ItemCode: reserved.ItemCode,
		}
	case errors.As(err, &missingPrice):
		return domain.ScanOutcome{
			Status:   domain.OutcomeWarning,
			Message:  fmt.Sprintf("Item %s has no rate on price list %s", missingPrice.ItemCode, missingPrice.PriceList),
			Cue:      domain.CueError,
			ItemCode: missingPrice.ItemCode,
		}
	default:
		return r.collaboratorFault("apply scan", err)
	}
}

// collaboratorFault logs an unexpected failure and degrades it to a
// generic outcome without exposing internals to the operator.
func (r *Reconciler) collaboratorFault(op string, err error) domain.ScanOutcome {
	log.Printf("[cart] WARN: %s: %v", op, err)
	return domain.ScanOutcome{
		Status:  domain.OutcomeError,
		Message: "Something went wrong while processing the scan",
		Cue:     domain.CueError,
	}
}
