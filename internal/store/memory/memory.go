// Package memory is the in-memory Repository used by tests and dev mode.
// All state lives in mutex-guarded maps; NewSeeded loads a small but
// representative catalog.
package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"scanline/backend/internal/domain"
	"scanline/backend/internal/store"
)

type Store struct {
	mu sync.RWMutex

	items       map[string]domain.Item
	barcodes    map[string]domain.ItemBarcode
	serials     map[string]domain.SerialUnit
	batches     map[string]domain.BatchLot
	warehouses  map[string]domain.Warehouse
	bins        map[string]map[string]decimal.Decimal // warehouse -> item -> qty
	prices      []domain.ItemPrice
	conversions map[string]decimal.Decimal // itemCode|uom -> factor
	reserved    map[string]map[string]struct{}
	users       map[string]domain.UserAccount

	allowNegativeStock bool
}

func New() *Store {
	return &Store{
		items:       make(map[string]domain.Item),
		barcodes:    make(map[string]domain.ItemBarcode),
		serials:     make(map[string]domain.SerialUnit),
		batches:     make(map[string]domain.BatchLot),
		warehouses:  make(map[string]domain.Warehouse),
		bins:        make(map[string]map[string]decimal.Decimal),
		conversions: make(map[string]decimal.Decimal),
		reserved:    make(map[string]map[string]struct{}),
		users:       make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store pre-loaded with a demo catalog covering the
// interesting item shapes: plain stock, batch-tracked, serial-tracked,
// non-stock, and multi-UOM.
func NewSeeded() *Store {
	s := New()

	s.items["ITEM-COLA"] = domain.Item{
		ItemCode: "ITEM-COLA", ItemName: "Cola 330ml", StockUOM: "Unit", IsStockItem: true,
	}
	s.items["ITEM-MILK"] = domain.Item{
		ItemCode: "ITEM-MILK", ItemName: "Fresh Milk 1L", StockUOM: "Unit", IsStockItem: true, HasBatchNo: true,
	}
	s.items["ITEM-PHONE"] = domain.Item{
		ItemCode: "ITEM-PHONE", ItemName: "Feature Phone X2", StockUOM: "Unit", IsStockItem: true, HasSerialNo: true,
	}
	s.items["ITEM-GIFTWRAP"] = domain.Item{
		ItemCode: "ITEM-GIFTWRAP", ItemName: "Gift Wrapping", StockUOM: "Unit", IsStockItem: false,
	}
	s.items["ITEM-RICE"] = domain.Item{
		ItemCode: "ITEM-RICE", ItemName: "Rice 1kg", StockUOM: "Unit", IsStockItem: true,
	}

	s.barcodes["8901234567890"] = domain.ItemBarcode{Barcode: "8901234567890", ItemCode: "ITEM-COLA"}
	s.barcodes["8902222000011"] = domain.ItemBarcode{Barcode: "8902222000011", ItemCode: "ITEM-MILK"}
	s.barcodes["8903333000025"] = domain.ItemBarcode{Barcode: "8903333000025", ItemCode: "ITEM-RICE"}
	// Case barcode: scanning it sells a full box of ten.
	s.barcodes["8903333000100"] = domain.ItemBarcode{Barcode: "8903333000100", ItemCode: "ITEM-RICE", UOM: "Box"}
	s.barcodes["8904444000039"] = domain.ItemBarcode{Barcode: "8904444000039", ItemCode: "ITEM-GIFTWRAP"}

	for _, sn := range []string{"SER-PH-0001", "SER-PH-0002", "SER-PH-0003", "SER-PH-0004", "SER-PH-0005"} {
		s.serials[sn] = domain.SerialUnit{SerialNo: sn, ItemCode: "ITEM-PHONE", Warehouse: "WH-MAIN"}
	}
	s.batches["BATCH-MILK-A"] = domain.BatchLot{BatchNo: "BATCH-MILK-A", ItemCode: "ITEM-MILK"}
	s.batches["BATCH-MILK-B"] = domain.BatchLot{BatchNo: "BATCH-MILK-B", ItemCode: "ITEM-MILK"}

	s.warehouses["WH-MAIN"] = domain.Warehouse{Code: "WH-MAIN", Name: "Main Store"}
	s.warehouses["WH-BACK"] = domain.Warehouse{Code: "WH-BACK", Name: "Back Room"}

	s.bins["WH-MAIN"] = map[string]decimal.Decimal{
		"ITEM-COLA":  decimal.NewFromInt(120),
		"ITEM-MILK":  decimal.NewFromInt(40),
		"ITEM-PHONE": decimal.NewFromInt(5),
		"ITEM-RICE":  decimal.NewFromInt(200),
	}
	s.bins["WH-BACK"] = map[string]decimal.Decimal{
		"ITEM-COLA": decimal.NewFromInt(6),
	}

	s.conversions["ITEM-RICE|Box"] = decimal.NewFromInt(10)

	s.prices = []domain.ItemPrice{
		{PriceList: "standard-selling", ItemCode: "ITEM-COLA", Rate: decimal.RequireFromString("10.00"), Currency: "IDR"},
		{PriceList: "standard-selling", ItemCode: "ITEM-MILK", Rate: decimal.RequireFromString("5.50"), Currency: "IDR"},
		{PriceList: "standard-selling", ItemCode: "ITEM-MILK", BatchNo: "BATCH-MILK-B", Rate: decimal.RequireFromString("4.75"), Currency: "IDR"},
		{PriceList: "standard-selling", ItemCode: "ITEM-PHONE", Rate: decimal.RequireFromString("299.00"), Currency: "IDR"},
		{PriceList: "standard-selling", ItemCode: "ITEM-GIFTWRAP", Rate: decimal.RequireFromString("2.00"), Currency: "IDR"},
		{PriceList: "standard-selling", ItemCode: "ITEM-RICE", Rate: decimal.RequireFromString("3.00"), Currency: "IDR"},
		{PriceList: "standard-selling", ItemCode: "ITEM-RICE", UOM: "Box", Rate: decimal.RequireFromString("28.00"), Currency: "IDR"},
	}

	s.seedUsers()
	return s
}

// seedUsers creates default operator accounts. Passwords come from the
// environment so deployments never run with the documented defaults.
func (s *Store) seedUsers() {
	adminPass := getEnvDefault("SEED_ADMIN_PASSWORD", "admin123")
	cashierPass := getEnvDefault("SEED_CASHIER_PASSWORD", "kasir123")

	now := time.Now()
	for _, u := range []struct {
		username, password, role string
	}{
		{"admin", adminPass, "admin"},
		{"cashier", cashierPass, "cashier"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("[memory] WARN: seed user %s: %v", u.username, err)
			continue
		}
		s.users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func conversionKey(itemCode, uom string) string {
	return itemCode + "|" + uom
}

// ClassifyScan checks barcode, serial, batch, then warehouse, in that
// order. The first hit wins.
func (s *Store) ClassifyScan(_ context.Context, searchValue string, _ domain.ScanContext) (domain.ScanResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if bc, ok := s.barcodes[searchValue]; ok {
		item := s.items[bc.ItemCode]
		return domain.ScanResult{
			Kind:        domain.ScanKindItem,
			ItemCode:    bc.ItemCode,
			Barcode:     bc.Barcode,
			UOM:         bc.UOM,
			HasBatchNo:  item.HasBatchNo,
			HasSerialNo: item.HasSerialNo,
		}, nil
	}
	if sn, ok := s.serials[searchValue]; ok {
		item := s.items[sn.ItemCode]
		return domain.ScanResult{
			Kind:        domain.ScanKindItem,
			ItemCode:    sn.ItemCode,
			SerialNo:    sn.SerialNo,
			Warehouse:   sn.Warehouse,
			HasBatchNo:  item.HasBatchNo,
			HasSerialNo: item.HasSerialNo,
		}, nil
	}
	if b, ok := s.batches[searchValue]; ok {
		item := s.items[b.ItemCode]
		return domain.ScanResult{
			Kind:        domain.ScanKindItem,
			ItemCode:    b.ItemCode,
			BatchNo:     b.BatchNo,
			HasBatchNo:  item.HasBatchNo,
			HasSerialNo: item.HasSerialNo,
		}, nil
	}
	if wh, ok := s.warehouses[searchValue]; ok {
		return domain.ScanResult{Kind: domain.ScanKindWarehouse, Warehouse: wh.Code}, nil
	}
	return domain.ScanResult{Kind: domain.ScanKindNone}, nil
}

func (s *Store) GetItem(_ context.Context, itemCode string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemCode]
	if !ok || item.Disabled {
		return nil, store.ErrNotFound
	}
	out := item
	return &out, nil
}

func (s *Store) ListItems(_ context.Context, searchTerm string, limit int) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(searchTerm))
	var out []domain.Item
	for _, item := range s.items {
		if item.Disabled {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(item.ItemCode), term) &&
			!strings.Contains(strings.ToLower(item.ItemName), term) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemCode < out[j].ItemCode })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetItemPrice picks the most specific matching row: batch and UOM pinned
// first, then batch alone, then UOM alone, then the item's generic rate.
func (s *Store) GetItemPrice(_ context.Context, itemCode, uom, batchNo, priceList string) (*domain.ItemPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.ItemPrice
	bestRank := -1
	for i := range s.prices {
		p := s.prices[i]
		if p.ItemCode != itemCode || p.PriceList != priceList {
			continue
		}
		if p.BatchNo != "" && p.BatchNo != batchNo {
			continue
		}
		if p.UOM != "" && p.UOM != uom {
			continue
		}
		rank := 0
		if p.BatchNo != "" {
			rank += 2
		}
		if p.UOM != "" {
			rank++
		}
		if rank > bestRank {
			bestRank = rank
			best = &s.prices[i]
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (s *Store) GetConversionFactor(_ context.Context, itemCode, uom string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemCode]
	if !ok {
		return decimal.Zero, store.ErrNotFound
	}
	if uom == item.StockUOM {
		return decimal.NewFromInt(1), nil
	}
	if f, ok := s.conversions[conversionKey(itemCode, uom)]; ok {
		return f, nil
	}
	return decimal.Zero, store.ErrNotFound
}

func (s *Store) GetAvailability(_ context.Context, itemCode, warehouse string) (domain.AvailabilitySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemCode]
	if !ok {
		return domain.AvailabilitySnapshot{}, store.ErrNotFound
	}

	snap := domain.AvailabilitySnapshot{
		ItemCode:           itemCode,
		Warehouse:          warehouse,
		IsStockItem:        item.IsStockItem,
		AllowNegativeStock: s.allowNegativeStock,
		FetchedAt:          time.Now(),
	}
	if bin, ok := s.bins[warehouse]; ok {
		snap.AvailableQty = bin[itemCode]
	}
	return snap, nil
}

func (s *Store) ListReservedSerials(_ context.Context, itemCode, warehouse string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]struct{})
	for sn := range s.reserved[itemCode] {
		if warehouse != "" {
			if unit, ok := s.serials[sn]; ok && unit.Warehouse != "" && unit.Warehouse != warehouse {
				continue
			}
		}
		out[sn] = struct{}{}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user *domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.Username == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.users[user.Username]; exists {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	s.users[user.Username] = *user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := u
	return &out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// Test and dev helpers below.

// SetBinQty overrides the on-hand quantity of an item in a warehouse.
func (s *Store) SetBinQty(warehouse, itemCode string, qty decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bin, ok := s.bins[warehouse]
	if !ok {
		bin = make(map[string]decimal.Decimal)
		s.bins[warehouse] = bin
	}
	bin[itemCode] = qty
}

// SetAllowNegativeStock toggles the system-wide negative stock policy.
func (s *Store) SetAllowNegativeStock(allow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowNegativeStock = allow
}

// ReserveSerial marks a serial as committed to another open cart.
func (s *Store) ReserveSerial(itemCode, serialNo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.reserved[itemCode]
	if !ok {
		set = make(map[string]struct{})
		s.reserved[itemCode] = set
	}
	set[serialNo] = struct{}{}
}
