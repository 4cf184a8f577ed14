package cart

import (
	"testing"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/domain"
)

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestFindLine_UnsetBatchBeatsMismatch(t *testing.T) {
	matcher := NewMatcher(DefaultCapabilities())
	order := &domain.Order{
		Lines: []*domain.OrderLine{
			{ID: "l1", ItemCode: "ITEM-MILK", UOM: "Unit", BatchNo: "BATCH-OTHER"},
			{ID: "l2", ItemCode: "ITEM-MILK", UOM: "Unit"},
		},
	}

	scan := domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-MILK", BatchNo: "BATCH-A", HasBatchNo: true}
	line := matcher.FindLine(order, scan, "")
	if line == nil || line.ID != "l2" {
		t.Fatalf("expected unset-batch line l2, got %+v", line)
	}
}

func TestFindLine_MatchingBatchIsEligible(t *testing.T) {
	matcher := NewMatcher(DefaultCapabilities())
	order := &domain.Order{
		Lines: []*domain.OrderLine{
			{ID: "l1", ItemCode: "ITEM-MILK", UOM: "Unit", BatchNo: "BATCH-A"},
		},
	}

	scan := domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-MILK", BatchNo: "BATCH-A"}
	line := matcher.FindLine(order, scan, "")
	if line == nil || line.ID != "l1" {
		t.Fatalf("expected l1, got %+v", line)
	}
}

func TestFindLine_UOMMustMatchWhenScanCarriesOne(t *testing.T) {
	matcher := NewMatcher(DefaultCapabilities())
	order := &domain.Order{
		Lines: []*domain.OrderLine{
			{ID: "unit", ItemCode: "ITEM-RICE", UOM: "Unit"},
			{ID: "box", ItemCode: "ITEM-RICE", UOM: "Box"},
		},
	}

	line := matcher.FindLine(order, domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-RICE", UOM: "Box"}, "")
	if line == nil || line.ID != "box" {
		t.Fatalf("expected box line, got %+v", line)
	}

	// No UOM on the scan is a wildcard: first line in entry order wins.
	line = matcher.FindLine(order, domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-RICE"}, "")
	if line == nil || line.ID != "unit" {
		t.Fatalf("expected first line, got %+v", line)
	}
}

func TestFindLine_SkipsCappedLines(t *testing.T) {
	caps := DefaultCapabilities()
	caps.EnforceMaxQty = true
	matcher := NewMatcher(caps)

	order := &domain.Order{
		Lines: []*domain.OrderLine{
			{ID: "full", ItemCode: "ITEM-COLA", UOM: "Unit", Quantity: decimal.NewFromInt(4), MaxQuantity: decPtr(4)},
			{ID: "open", ItemCode: "ITEM-COLA", UOM: "Unit", Quantity: decimal.NewFromInt(1), MaxQuantity: decPtr(4)},
		},
	}

	line := matcher.FindLine(order, domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-COLA"}, "")
	if line == nil || line.ID != "open" {
		t.Fatalf("expected uncapped line, got %+v", line)
	}
}

func TestFindLine_SkipsAlreadyScannedLines(t *testing.T) {
	matcher := NewMatcher(DefaultCapabilities())
	order := &domain.Order{
		Lines: []*domain.OrderLine{
			{ID: "done", ItemCode: "ITEM-COLA", UOM: "Unit", Scanned: true},
			{ID: "fresh", ItemCode: "ITEM-COLA", UOM: "Unit"},
		},
	}

	line := matcher.FindLine(order, domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-COLA"}, "")
	if line == nil || line.ID != "fresh" {
		t.Fatalf("expected unscanned line, got %+v", line)
	}
}

func TestFindLine_WarehouseContextNarrowsMatch(t *testing.T) {
	matcher := NewMatcher(DefaultCapabilities())
	order := &domain.Order{
		Lines: []*domain.OrderLine{
			{ID: "main", ItemCode: "ITEM-COLA", UOM: "Unit", Warehouse: "WH-MAIN"},
		},
	}

	if line := matcher.FindLine(order, domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-COLA"}, "WH-BACK"); line != nil {
		t.Fatalf("expected no match across warehouses, got %+v", line)
	}
	if line := matcher.FindLine(order, domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-COLA"}, "WH-MAIN"); line == nil || line.ID != "main" {
		t.Fatalf("expected main line, got %+v", line)
	}
	// Without a context the warehouse predicate is inert.
	if line := matcher.FindLine(order, domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-COLA"}, ""); line == nil || line.ID != "main" {
		t.Fatalf("expected main line without context, got %+v", line)
	}
}

func TestFindLine_PlaceholderFallback(t *testing.T) {
	matcher := NewMatcher(DefaultCapabilities())
	order := &domain.Order{
		Lines: []*domain.OrderLine{
			{ID: "other", ItemCode: "ITEM-MILK", UOM: "Unit"},
			{ID: "blank"},
		},
	}

	line := matcher.FindLine(order, domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-COLA"}, "")
	if line == nil || line.ID != "blank" {
		t.Fatalf("expected placeholder line, got %+v", line)
	}
}

func TestFindLine_NoCandidateMeansNil(t *testing.T) {
	matcher := NewMatcher(DefaultCapabilities())
	order := &domain.Order{
		Lines: []*domain.OrderLine{
			{ID: "other", ItemCode: "ITEM-MILK", UOM: "Unit"},
		},
	}

	if line := matcher.FindLine(order, domain.ScanResult{Kind: domain.ScanKindItem, ItemCode: "ITEM-COLA"}, ""); line != nil {
		t.Fatalf("expected nil, got %+v", line)
	}
}
