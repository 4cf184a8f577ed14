package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/cache"
	"scanline/backend/internal/domain"
	"scanline/backend/internal/store/memory"
	"scanline/backend/internal/xid"
)

func newTestReconciler(t *testing.T, repo *memory.Store, prompter Prompter, adjust func(*Config)) *Reconciler {
	t.Helper()

	cfg := Config{
		Capabilities:     DefaultCapabilities(),
		PriceList:        "standard-selling",
		Company:          "main-company",
		DefaultWarehouse: "WH-MAIN",
		AllowNewRows:     true,
	}
	if adjust != nil {
		adjust(&cfg)
	}
	if prompter == nil {
		prompter = &stubPrompter{confirm: decimal.NewFromInt(1)}
	}

	order := &domain.Order{ID: xid.New("cart"), Customer: "CUST-1"}
	writer := &MemoryWriter{NewID: func() string { return xid.New("line") }}
	return NewReconciler(repo, repo, cache.NewSessionAvailabilityCache(), writer, prompter, func() string { return xid.New("prompt") }, cfg, order)
}

func TestScan_NewLineFromBarcode(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)

	outcome := rec.Scan(context.Background(), "8901234567890")
	if outcome.Status != domain.OutcomeLineAdded {
		t.Fatalf("expected line_added, got %s (%s)", outcome.Status, outcome.Message)
	}

	order := rec.Order()
	if len(order.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(order.Lines))
	}
	line := order.Lines[0]
	if line.ItemCode != "ITEM-COLA" || line.Quantity.Cmp(decimal.NewFromInt(1)) != 0 {
		t.Fatalf("unexpected line: %+v", line)
	}
	if line.Rate.Cmp(decimal.RequireFromString("10.00")) != 0 {
		t.Fatalf("expected rate 10.00, got %s", line.Rate)
	}
	if line.Scanned {
		t.Fatalf("scanned flag must clear once the scan round ends")
	}
}

func TestScan_RepeatIncrementsSameLine(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)

	rec.Scan(context.Background(), "8901234567890")
	outcome := rec.Scan(context.Background(), "8901234567890")
	if outcome.Status != domain.OutcomeLineUpdated {
		t.Fatalf("expected line_updated, got %s (%s)", outcome.Status, outcome.Message)
	}

	order := rec.Order()
	if len(order.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(order.Lines))
	}
	if order.Lines[0].Quantity.Cmp(decimal.NewFromInt(2)) != 0 {
		t.Fatalf("expected qty 2, got %s", order.Lines[0].Quantity)
	}
}

func TestScan_SerialCreatesLineWithSerial(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)

	outcome := rec.Scan(context.Background(), "SER-PH-0001")
	if outcome.Status != domain.OutcomeLineAdded {
		t.Fatalf("expected line_added, got %s (%s)", outcome.Status, outcome.Message)
	}

	line := rec.Order().Lines[0]
	if line.ItemCode != "ITEM-PHONE" {
		t.Fatalf("expected ITEM-PHONE, got %s", line.ItemCode)
	}
	if len(line.SerialNumbers) != 1 || line.SerialNumbers[0] != "SER-PH-0001" {
		t.Fatalf("expected serial list [SER-PH-0001], got %v", line.SerialNumbers)
	}
	if line.Quantity.Cmp(decimal.NewFromInt(1)) != 0 {
		t.Fatalf("expected qty 1, got %s", line.Quantity)
	}
}

func TestScan_DuplicateSerialIsWarnedAndIgnored(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)

	rec.Scan(context.Background(), "SER-PH-0001")
	outcome := rec.Scan(context.Background(), "SER-PH-0001")
	if outcome.Status != domain.OutcomeWarning {
		t.Fatalf("expected warning, got %s (%s)", outcome.Status, outcome.Message)
	}

	line := rec.Order().Lines[0]
	if len(line.SerialNumbers) != 1 {
		t.Fatalf("serial list must stay at 1, got %v", line.SerialNumbers)
	}
	if line.Quantity.Cmp(decimal.NewFromInt(1)) != 0 {
		t.Fatalf("quantity must stay 1, got %s", line.Quantity)
	}
}

func TestScan_ReservedSerialIsRejected(t *testing.T) {
	repo := memory.NewSeeded()
	repo.ReserveSerial("ITEM-PHONE", "SER-PH-0002")
	rec := newTestReconciler(t, repo, nil, nil)

	outcome := rec.Scan(context.Background(), "SER-PH-0002")
	if outcome.Status != domain.OutcomeWarning {
		t.Fatalf("expected warning, got %s (%s)", outcome.Status, outcome.Message)
	}
	if len(rec.Order().Lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(rec.Order().Lines))
	}
}

func TestScan_MissingCustomerBlocksLineCreation(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)
	rec.Order().Customer = ""

	outcome := rec.Scan(context.Background(), "8901234567890")
	if outcome.Status != domain.OutcomeWarning {
		t.Fatalf("expected warning, got %s (%s)", outcome.Status, outcome.Message)
	}
	if len(rec.Order().Lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(rec.Order().Lines))
	}
}

func TestScan_MissingPriceBlocksLineCreation(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, func(cfg *Config) {
		cfg.PriceList = "wholesale"
	})

	outcome := rec.Scan(context.Background(), "8901234567890")
	if outcome.Status != domain.OutcomeWarning {
		t.Fatalf("expected warning, got %s (%s)", outcome.Status, outcome.Message)
	}
	if len(rec.Order().Lines) != 0 {
		t.Fatalf("expected no lines, got %d", len(rec.Order().Lines))
	}
}

func TestScan_UnknownCodeIsNoMatch(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)

	outcome := rec.Scan(context.Background(), "not-a-real-code")
	if outcome.Status != domain.OutcomeNoMatch {
		t.Fatalf("expected no_match, got %s", outcome.Status)
	}

	outcome = rec.Scan(context.Background(), "   ")
	if outcome.Status != domain.OutcomeNoMatch {
		t.Fatalf("expected no_match for blank input, got %s", outcome.Status)
	}
}

func TestScan_WarehouseContextFlow(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)

	outcome := rec.Scan(context.Background(), "WH-BACK")
	if outcome.Status != domain.OutcomeWarehouseSet {
		t.Fatalf("expected warehouse_set, got %s (%s)", outcome.Status, outcome.Message)
	}
	if rec.Order().LastScannedWarehouse != "WH-BACK" {
		t.Fatalf("expected context WH-BACK, got %q", rec.Order().LastScannedWarehouse)
	}
	if len(rec.Order().Lines) != 0 {
		t.Fatalf("warehouse scans must not touch lines")
	}

	rec.Scan(context.Background(), "8901234567890")
	line := rec.Order().Lines[0]
	if line.Warehouse != "WH-BACK" {
		t.Fatalf("expected line to inherit WH-BACK, got %q", line.Warehouse)
	}

	rec.ClearWarehouseContext()
	if rec.Order().LastScannedWarehouse != "" {
		t.Fatalf("expected cleared context")
	}
}

func TestScan_OutOfStockRollsBackLine(t *testing.T) {
	repo := memory.NewSeeded()
	repo.SetBinQty("WH-MAIN", "ITEM-COLA", decimal.Zero)
	rec := newTestReconciler(t, repo, nil, nil)

	outcome := rec.Scan(context.Background(), "8901234567890")
	if outcome.Status != domain.OutcomeError {
		t.Fatalf("expected error, got %s (%s)", outcome.Status, outcome.Message)
	}
	if len(rec.Order().Lines) != 0 {
		t.Fatalf("expected line rollback, got %d lines", len(rec.Order().Lines))
	}
}

func TestScan_NonStockItemIgnoresAvailability(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)

	outcome := rec.Scan(context.Background(), "8904444000039")
	if outcome.Status != domain.OutcomeLineAdded {
		t.Fatalf("expected line_added for non-stock item, got %s (%s)", outcome.Status, outcome.Message)
	}
}

func TestScan_NegativeStockAllowedSkipsGate(t *testing.T) {
	repo := memory.NewSeeded()
	repo.SetBinQty("WH-MAIN", "ITEM-COLA", decimal.Zero)
	repo.SetAllowNegativeStock(true)
	rec := newTestReconciler(t, repo, nil, nil)

	outcome := rec.Scan(context.Background(), "8901234567890")
	if outcome.Status != domain.OutcomeLineAdded {
		t.Fatalf("expected line_added with negative stock allowed, got %s (%s)", outcome.Status, outcome.Message)
	}
}

func TestScan_ShortfallOnCaseBarcode(t *testing.T) {
	repo := memory.NewSeeded()
	repo.SetBinQty("WH-MAIN", "ITEM-RICE", decimal.NewFromInt(5))
	rec := newTestReconciler(t, repo, nil, nil)

	// The case barcode sells ten stock units against five on hand.
	outcome := rec.Scan(context.Background(), "8903333000100")
	if outcome.Status != domain.OutcomeError {
		t.Fatalf("expected error, got %s (%s)", outcome.Status, outcome.Message)
	}
	if len(rec.Order().Lines) != 0 {
		t.Fatalf("a new line blocked at zero must be dropped, got %d lines", len(rec.Order().Lines))
	}
}

func TestScan_ShortfallOnExistingLineRevertsQuantity(t *testing.T) {
	repo := memory.NewSeeded()
	repo.SetBinQty("WH-MAIN", "ITEM-COLA", decimal.NewFromInt(1))
	rec := newTestReconciler(t, repo, nil, nil)

	if out := rec.Scan(context.Background(), "8901234567890"); out.Status != domain.OutcomeLineAdded {
		t.Fatalf("first scan failed: %s (%s)", out.Status, out.Message)
	}
	line := rec.Order().Lines[0]

	outcome := rec.SetLineQuantity(context.Background(), line.ID, decimal.NewFromInt(5))
	if outcome.Status != domain.OutcomeError {
		t.Fatalf("expected error, got %s (%s)", outcome.Status, outcome.Message)
	}
	if len(rec.Order().Lines) != 1 {
		t.Fatalf("shortfall must keep the line")
	}
	if line.Quantity.Cmp(decimal.NewFromInt(1)) != 0 {
		t.Fatalf("expected quantity reverted to 1, got %s", line.Quantity)
	}
}

func TestScan_PromptModeAddsToExistingLine(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), &stubPrompter{confirm: decimal.NewFromInt(1)}, func(cfg *Config) {
		cfg.QtyMode = QtyPrompt
	})

	if out := rec.Scan(context.Background(), "8901234567890"); out.Status != domain.OutcomeLineAdded {
		t.Fatalf("first scan failed: %s (%s)", out.Status, out.Message)
	}
	line := rec.Order().Lines[0]
	if out := rec.SetLineQuantity(context.Background(), line.ID, decimal.NewFromInt(3)); out.Status != domain.OutcomeLineUpdated {
		t.Fatalf("quantity edit failed: %s (%s)", out.Status, out.Message)
	}

	outcome := rec.Scan(context.Background(), "8901234567890")
	if outcome.Status != domain.OutcomeLineUpdated {
		t.Fatalf("expected line_updated, got %s (%s)", outcome.Status, outcome.Message)
	}
	if line.Quantity.Cmp(decimal.NewFromInt(4)) != 0 {
		t.Fatalf("confirming one more unit must raise qty to 4, got %s", line.Quantity)
	}
	if len(rec.Order().Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(rec.Order().Lines))
	}
}

func TestScan_PromptModeSplitsOnPartialConfirm(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), &stubPrompter{confirm: decimal.NewFromInt(2)}, func(cfg *Config) {
		cfg.QtyMode = QtyPrompt
	})

	order := rec.Order()
	order.Lines = append(order.Lines, &domain.OrderLine{
		ID:               "l1",
		ItemCode:         "ITEM-COLA",
		UOM:              "Unit",
		StockUOM:         "Unit",
		ConversionFactor: decimal.NewFromInt(1),
		Quantity:         decimal.NewFromInt(1),
		MaxQuantity:      decPtr(5),
		Rate:             decimal.NewFromInt(10),
	})

	// The prompt asks for the four units still open against the cap;
	// confirming two leaves the rest on a fresh sibling line.
	outcome := rec.Scan(context.Background(), "8901234567890")
	if outcome.Status != domain.OutcomeLineUpdated {
		t.Fatalf("expected line_updated, got %s (%s)", outcome.Status, outcome.Message)
	}
	if len(order.Lines) != 2 {
		t.Fatalf("expected a split sibling, got %d lines", len(order.Lines))
	}
	if order.Lines[0].Quantity.Cmp(decimal.NewFromInt(3)) != 0 {
		t.Fatalf("expected source qty 3, got %s", order.Lines[0].Quantity)
	}
	if order.Lines[1].Quantity.Cmp(decimal.NewFromInt(2)) != 0 {
		t.Fatalf("expected sibling qty 2, got %s", order.Lines[1].Quantity)
	}
}

func TestScan_UnitlessRescanKeepsCaseLine(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)

	if out := rec.Scan(context.Background(), "8903333000100"); out.Status != domain.OutcomeLineAdded {
		t.Fatalf("case scan failed: %s (%s)", out.Status, out.Message)
	}
	line := rec.Order().Lines[0]
	if line.UOM != "Box" || line.ConversionFactor.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("expected a Box line at factor 10, got uom=%s factor=%s", line.UOM, line.ConversionFactor)
	}

	// The unit-less barcode lands on the Box line without rewriting its
	// unit or factor.
	outcome := rec.Scan(context.Background(), "8903333000025")
	if outcome.Status != domain.OutcomeLineUpdated {
		t.Fatalf("expected line_updated, got %s (%s)", outcome.Status, outcome.Message)
	}
	if len(rec.Order().Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(rec.Order().Lines))
	}
	if line.UOM != "Box" || line.ConversionFactor.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("line unit rewritten: uom=%s factor=%s", line.UOM, line.ConversionFactor)
	}
	if line.Quantity.Cmp(decimal.NewFromInt(2)) != 0 {
		t.Fatalf("expected qty 2, got %s", line.Quantity)
	}
	if line.Rate.Cmp(decimal.RequireFromString("28.00")) != 0 {
		t.Fatalf("expected Box rate kept, got %s", line.Rate)
	}
}

func TestScan_RowLimitAtQuantityCap(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, func(cfg *Config) {
		cfg.Capabilities.EnforceMaxQty = true
		cfg.AllowNewRows = false
	})

	capQty := decimal.NewFromInt(4)
	order := rec.Order()
	order.Lines = append(order.Lines, &domain.OrderLine{
		ID:               "l1",
		ItemCode:         "ITEM-COLA",
		UOM:              "Unit",
		StockUOM:         "Unit",
		ConversionFactor: decimal.NewFromInt(1),
		Quantity:         capQty,
		MaxQuantity:      &capQty,
		Rate:             decimal.NewFromInt(10),
	})

	outcome := rec.Scan(context.Background(), "8901234567890")
	if outcome.Status != domain.OutcomeWarning {
		t.Fatalf("expected warning, got %s (%s)", outcome.Status, outcome.Message)
	}
	if len(order.Lines) != 1 {
		t.Fatalf("line count must stay 1, got %d", len(order.Lines))
	}
}

func TestSetLineQuantity_ZeroRemovesLine(t *testing.T) {
	rec := newTestReconciler(t, memory.NewSeeded(), nil, nil)

	rec.Scan(context.Background(), "8901234567890")
	line := rec.Order().Lines[0]

	outcome := rec.SetLineQuantity(context.Background(), line.ID, decimal.Zero)
	if outcome.Status != domain.OutcomeLineRemoved {
		t.Fatalf("expected line_removed, got %s", outcome.Status)
	}
	if len(rec.Order().Lines) != 0 {
		t.Fatalf("expected empty order, got %d lines", len(rec.Order().Lines))
	}
}

func TestRefreshAvailability_PicksUpBinChanges(t *testing.T) {
	repo := memory.NewSeeded()
	rec := newTestReconciler(t, repo, nil, nil)

	rec.Scan(context.Background(), "8901234567890")

	repo.SetBinQty("WH-MAIN", "ITEM-COLA", decimal.NewFromInt(3))
	snap, err := rec.RefreshAvailability(context.Background(), "ITEM-COLA", "WH-MAIN")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap.AvailableQty.Cmp(decimal.NewFromInt(3)) != 0 {
		t.Fatalf("expected refreshed qty 3, got %s", snap.AvailableQty)
	}
}

// gatePrompter blocks until released so tests can observe the busy gate.
type gatePrompter struct {
	started chan struct{}
	release chan decimal.Decimal
}

func (p *gatePrompter) ConfirmQuantity(_ context.Context, _ domain.QuantityPrompt) (decimal.Decimal, error) {
	p.started <- struct{}{}
	return <-p.release, nil
}

func TestScan_BusyGateRejectsConcurrentScan(t *testing.T) {
	prompter := &gatePrompter{started: make(chan struct{}), release: make(chan decimal.Decimal)}
	rec := newTestReconciler(t, memory.NewSeeded(), prompter, func(cfg *Config) {
		cfg.QtyMode = QtyPrompt
	})

	first := make(chan domain.ScanOutcome, 1)
	go func() {
		first <- rec.Scan(context.Background(), "8901234567890")
	}()

	<-prompter.started

	second := rec.Scan(context.Background(), "8901234567890")
	if second.Status != domain.OutcomeWarning {
		t.Fatalf("expected busy warning, got %s (%s)", second.Status, second.Message)
	}

	prompter.release <- decimal.NewFromInt(1)
	outcome := <-first
	if outcome.Status != domain.OutcomeLineAdded {
		t.Fatalf("expected first scan to complete as line_added, got %s (%s)", outcome.Status, outcome.Message)
	}
}
