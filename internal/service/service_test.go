package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/cart"
	"scanline/backend/internal/domain"
	"scanline/backend/internal/store/memory"
	"scanline/backend/internal/xid"
)

func newTestService(repo *memory.Store) *Service {
	writer := &cart.MemoryWriter{NewID: func() string { return xid.New("line") }}
	return New(repo, nil, writer, "standard-selling", "WH-MAIN", "main-company")
}

func openSession(t *testing.T, svc *Service, req domain.SessionOpenRequest) string {
	t.Helper()
	if req.Customer == "" {
		req.Customer = "CUST-1"
	}
	view, err := svc.OpenSession(context.Background(), req)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return view.SessionID
}

func TestOpenSession_RequiresCustomer(t *testing.T) {
	svc := newTestService(memory.NewSeeded())

	_, err := svc.OpenSession(context.Background(), domain.SessionOpenRequest{})
	if !errors.Is(err, ErrMissingCustomer) {
		t.Fatalf("expected ErrMissingCustomer, got %v", err)
	}
}

func TestScanFlow(t *testing.T) {
	svc := newTestService(memory.NewSeeded())
	ctx := context.Background()
	id := openSession(t, svc, domain.SessionOpenRequest{})

	outcome, err := svc.Scan(ctx, id, "8901234567890")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if outcome.Status != domain.OutcomeLineAdded {
		t.Fatalf("expected line_added, got %s (%s)", outcome.Status, outcome.Message)
	}

	view, err := svc.GetCart(ctx, id)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(view.Lines) != 1 || view.Lines[0].ItemCode != "ITEM-COLA" {
		t.Fatalf("unexpected cart: %+v", view)
	}

	outcome, err = svc.SetLineQuantity(ctx, id, view.Lines[0].ID, decimal.Zero)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if outcome.Status != domain.OutcomeLineRemoved {
		t.Fatalf("expected line_removed, got %s", outcome.Status)
	}
}

func TestScan_UnknownSession(t *testing.T) {
	svc := newTestService(memory.NewSeeded())

	if _, err := svc.Scan(context.Background(), "cart_nope", "x"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestPromptFlow_Confirm(t *testing.T) {
	svc := newTestService(memory.NewSeeded())
	ctx := context.Background()
	id := openSession(t, svc, domain.SessionOpenRequest{PromptQuantity: true})

	outcome, err := svc.Scan(ctx, id, "8901234567890")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if outcome.Status != domain.OutcomePromptPending {
		t.Fatalf("expected prompt_pending, got %s (%s)", outcome.Status, outcome.Message)
	}
	if outcome.Prompt == nil || outcome.Prompt.PromptID == "" {
		t.Fatalf("expected an attached prompt, got %+v", outcome.Prompt)
	}

	final, err := svc.ResolvePrompt(ctx, id, domain.PromptActionRequest{
		PromptID: outcome.Prompt.PromptID,
		Action:   domain.PromptActionConfirm,
		Quantity: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if final.Status != domain.OutcomeLineAdded {
		t.Fatalf("expected line_added, got %s (%s)", final.Status, final.Message)
	}

	view, _ := svc.GetCart(ctx, id)
	if len(view.Lines) != 1 || view.Lines[0].Quantity.Cmp(decimal.NewFromInt(1)) != 0 {
		t.Fatalf("unexpected cart after confirm: %+v", view.Lines)
	}
}

func TestPromptFlow_Cancel(t *testing.T) {
	svc := newTestService(memory.NewSeeded())
	ctx := context.Background()
	id := openSession(t, svc, domain.SessionOpenRequest{PromptQuantity: true})

	outcome, err := svc.Scan(ctx, id, "8901234567890")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if outcome.Status != domain.OutcomePromptPending {
		t.Fatalf("expected prompt_pending, got %s", outcome.Status)
	}

	final, err := svc.ResolvePrompt(ctx, id, domain.PromptActionRequest{
		PromptID: outcome.Prompt.PromptID,
		Action:   domain.PromptActionCancel,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if final.Status != domain.OutcomeCancelled {
		t.Fatalf("expected cancelled, got %s (%s)", final.Status, final.Message)
	}

	// The appended line stays at zero quantity, eligible for a later scan.
	view, _ := svc.GetCart(ctx, id)
	if len(view.Lines) != 1 || !view.Lines[0].Quantity.IsZero() {
		t.Fatalf("expected one zero-quantity line, got %+v", view.Lines)
	}
}

func TestResolvePrompt_Guards(t *testing.T) {
	svc := newTestService(memory.NewSeeded())
	ctx := context.Background()
	id := openSession(t, svc, domain.SessionOpenRequest{PromptQuantity: true})

	_, err := svc.ResolvePrompt(ctx, id, domain.PromptActionRequest{PromptID: "p1", Action: domain.PromptActionConfirm})
	if !errors.Is(err, ErrNoPromptPending) {
		t.Fatalf("expected ErrNoPromptPending, got %v", err)
	}

	outcome, err := svc.Scan(ctx, id, "8901234567890")
	if err != nil || outcome.Status != domain.OutcomePromptPending {
		t.Fatalf("scan: %v %s", err, outcome.Status)
	}

	_, err = svc.ResolvePrompt(ctx, id, domain.PromptActionRequest{PromptID: "wrong", Action: domain.PromptActionConfirm})
	if !errors.Is(err, ErrPromptMismatch) {
		t.Fatalf("expected ErrPromptMismatch, got %v", err)
	}

	// Clean up the parked scan.
	if err := svc.CloseSession(ctx, id); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWarehouseContext(t *testing.T) {
	svc := newTestService(memory.NewSeeded())
	ctx := context.Background()
	id := openSession(t, svc, domain.SessionOpenRequest{})

	view, err := svc.SetWarehouseContext(ctx, id, "WH-BACK")
	if err != nil {
		t.Fatalf("set context: %v", err)
	}
	if view.LastScannedWarehouse != "WH-BACK" {
		t.Fatalf("expected WH-BACK, got %q", view.LastScannedWarehouse)
	}

	view, err = svc.SetWarehouseContext(ctx, id, "")
	if err != nil {
		t.Fatalf("clear context: %v", err)
	}
	if view.LastScannedWarehouse != "" {
		t.Fatalf("expected cleared context, got %q", view.LastScannedWarehouse)
	}
}

func TestSetCustomer(t *testing.T) {
	svc := newTestService(memory.NewSeeded())
	ctx := context.Background()
	id := openSession(t, svc, domain.SessionOpenRequest{})

	if _, err := svc.SetCustomer(ctx, id, ""); !errors.Is(err, ErrMissingCustomer) {
		t.Fatalf("expected ErrMissingCustomer, got %v", err)
	}

	view, err := svc.SetCustomer(ctx, id, "CUST-2")
	if err != nil {
		t.Fatalf("set customer: %v", err)
	}
	if view.Customer != "CUST-2" {
		t.Fatalf("expected CUST-2, got %q", view.Customer)
	}
}

func TestRefreshAvailability_DefaultsWarehouse(t *testing.T) {
	repo := memory.NewSeeded()
	svc := newTestService(repo)
	ctx := context.Background()
	id := openSession(t, svc, domain.SessionOpenRequest{})

	snap, err := svc.RefreshAvailability(ctx, id, "ITEM-COLA", "")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap.Warehouse != "WH-MAIN" {
		t.Fatalf("expected default warehouse WH-MAIN, got %q", snap.Warehouse)
	}
	if snap.AvailableQty.Cmp(decimal.NewFromInt(120)) != 0 {
		t.Fatalf("expected qty 120, got %s", snap.AvailableQty)
	}
}

func TestCloseSession(t *testing.T) {
	svc := newTestService(memory.NewSeeded())
	ctx := context.Background()
	id := openSession(t, svc, domain.SessionOpenRequest{})

	if err := svc.CloseSession(ctx, id); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.GetCart(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after close, got %v", err)
	}
	if err := svc.CloseSession(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on double close, got %v", err)
	}
}

func TestCloseSession_CancelsParkedPrompt(t *testing.T) {
	svc := newTestService(memory.NewSeeded())
	ctx := context.Background()
	id := openSession(t, svc, domain.SessionOpenRequest{PromptQuantity: true})

	outcome, err := svc.Scan(ctx, id, "8901234567890")
	if err != nil || outcome.Status != domain.OutcomePromptPending {
		t.Fatalf("scan: %v %s", err, outcome.Status)
	}

	if err := svc.CloseSession(ctx, id); err != nil {
		t.Fatalf("close with pending prompt: %v", err)
	}
	if _, err := svc.GetCart(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListItems(t *testing.T) {
	svc := newTestService(memory.NewSeeded())

	items, err := svc.ListItems(context.Background(), "cola", 10)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 1 || items[0].ItemCode != "ITEM-COLA" {
		t.Fatalf("unexpected items: %+v", items)
	}
}
