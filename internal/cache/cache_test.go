package cache

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/domain"
)

func TestSessionAvailabilityCache(t *testing.T) {
	c := NewSessionAvailabilityCache()
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "ITEM-COLA", "WH-MAIN"); err != nil || ok {
		t.Fatalf("expected a clean miss, got ok=%v err=%v", ok, err)
	}

	snap := &domain.AvailabilitySnapshot{
		ItemCode: "ITEM-COLA", Warehouse: "WH-MAIN",
		AvailableQty: decimal.NewFromInt(7), IsStockItem: true,
	}
	if err := c.Set(ctx, "ITEM-COLA", "WH-MAIN", snap); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, ok, err := c.Get(ctx, "ITEM-COLA", "WH-MAIN")
	if err != nil || !ok {
		t.Fatalf("expected a hit, got ok=%v err=%v", ok, err)
	}
	if got.AvailableQty.Cmp(decimal.NewFromInt(7)) != 0 {
		t.Fatalf("expected qty 7, got %s", got.AvailableQty)
	}

	// Entries are keyed per item/warehouse pair.
	if _, ok, _ := c.Get(ctx, "ITEM-COLA", "WH-BACK"); ok {
		t.Fatalf("expected a miss for another warehouse")
	}

	// Caller mutations must not leak back into the cache.
	got.AvailableQty = decimal.NewFromInt(0)
	again, _, _ := c.Get(ctx, "ITEM-COLA", "WH-MAIN")
	if again.AvailableQty.Cmp(decimal.NewFromInt(7)) != 0 {
		t.Fatalf("cached snapshot was mutated through a returned pointer")
	}

	if err := c.Delete(ctx, "ITEM-COLA", "WH-MAIN"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "ITEM-COLA", "WH-MAIN"); ok {
		t.Fatalf("expected a miss after delete")
	}
}

func TestNoopAvailabilityCache(t *testing.T) {
	c := NoopAvailabilityCache{}
	ctx := context.Background()

	if err := c.Set(ctx, "ITEM-COLA", "WH-MAIN", &domain.AvailabilitySnapshot{}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.Get(ctx, "ITEM-COLA", "WH-MAIN"); err != nil || ok {
		t.Fatalf("noop cache must never hit, got ok=%v err=%v", ok, err)
	}
}
