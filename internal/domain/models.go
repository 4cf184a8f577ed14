package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a sellable catalog entry. StockUOM is the unit stock is kept in;
// SalesUOM (optional) is the preferred selling unit.
type Item struct {
	ItemCode    string `json:"item_code"`
	ItemName    string `json:"item_name"`
	Description string `json:"description,omitempty"`
	StockUOM    string `json:"stock_uom"`
	SalesUOM    string `json:"sales_uom,omitempty"`
	IsStockItem bool   `json:"is_stock_item"`
	HasBatchNo  bool   `json:"has_batch_no"`
	HasSerialNo bool   `json:"has_serial_no"`
	Disabled    bool   `json:"disabled"`
}

// ItemBarcode maps a scannable barcode to an item, optionally pinning a UOM
// (e.g. the case barcode of an item sold per unit).
type ItemBarcode struct {
	Barcode  string `json:"barcode"`
	ItemCode string `json:"item_code"`
	UOM      string `json:"uom,omitempty"`
}

// SerialUnit is one serialised physical unit of an item.
type SerialUnit struct {
	SerialNo  string `json:"serial_no"`
	ItemCode  string `json:"item_code"`
	Warehouse string `json:"warehouse,omitempty"`
}

// BatchLot identifies a batch of a batch-tracked item.
type BatchLot struct {
	BatchNo  string `json:"batch_no"`
	ItemCode string `json:"item_code"`
}

type Warehouse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ItemPrice is one price-list rate. BatchNo and UOM narrow the rate; empty
// values act as wildcards during price resolution.
type ItemPrice struct {
	PriceList string          `json:"price_list"`
	ItemCode  string          `json:"item_code"`
	UOM       string          `json:"uom,omitempty"`
	BatchNo   string          `json:"batch_no,omitempty"`
	Rate      decimal.Decimal `json:"rate"`
	Currency  string          `json:"currency"`
}

// ScanKind discriminates what a raw scan classified as.
type ScanKind string

const (
	ScanKindItem      ScanKind = "item"
	ScanKindWarehouse ScanKind = "warehouse"
	ScanKindNone      ScanKind = "none"
)

// ScanContext carries session hints into scan classification.
type ScanContext struct {
	Warehouse string `json:"warehouse,omitempty"`
	Company   string `json:"company,omitempty"`
}

// ScanResult is the classified form of one raw scan. Produced once per scan
// and consumed once. Kind selects which fields are meaningful.
type ScanResult struct {
	Kind        ScanKind `json:"kind"`
	ItemCode    string   `json:"item_code,omitempty"`
	Barcode     string   `json:"barcode,omitempty"`
	BatchNo     string   `json:"batch_no,omitempty"`
	SerialNo    string   `json:"serial_no,omitempty"`
	UOM         string   `json:"uom,omitempty"`
	Warehouse   string   `json:"warehouse,omitempty"`
	HasBatchNo  bool     `json:"has_batch_no,omitempty"`
	HasSerialNo bool     `json:"has_serial_no,omitempty"`
}

// OrderLine is one cart entry: a quantity of one item under one
// UOM/batch/serial combination.
//
// Invariants: SerialNumbers holds no duplicates and preserves scan order;
// when MaxQuantity is set, Quantity never exceeds it after a scan completes.
type OrderLine struct {
	ID               string           `json:"id"`
	ItemCode         string           `json:"item_code"`
	ItemName         string           `json:"item_name,omitempty"`
	UOM              string           `json:"uom"`
	StockUOM         string           `json:"stock_uom"`
	ConversionFactor decimal.Decimal  `json:"conversion_factor"`
	BatchNo          string           `json:"batch_no,omitempty"`
	SerialNumbers    []string         `json:"serial_numbers,omitempty"`
	Barcode          string           `json:"barcode,omitempty"`
	Warehouse        string           `json:"warehouse,omitempty"`
	Quantity         decimal.Decimal  `json:"quantity"`
	MaxQuantity      *decimal.Decimal `json:"max_quantity,omitempty"`
	Rate             decimal.Decimal  `json:"rate"`
	Scanned          bool             `json:"-"`
}

// HasSerial reports whether the line already carries the given serial number.
func (l *OrderLine) HasSerial(serialNo string) bool {
	for _, sn := range l.SerialNumbers {
		if sn == serialNo {
			return true
		}
	}
	return false
}

// Order is an in-progress cart. Line order is entry order, which is
// load-bearing for scan matching. LastScannedWarehouse is the session's
// warehouse context, applied to subsequent item scans until cleared.
type Order struct {
	ID                   string       `json:"id"`
	Customer             string       `json:"customer"`
	Lines                []*OrderLine `json:"lines"`
	LastScannedWarehouse string       `json:"last_scanned_warehouse,omitempty"`
}

// Line returns the order's line with the given id, or nil.
func (o *Order) Line(id string) *OrderLine {
	for _, line := range o.Lines {
		if line.ID == id {
			return line
		}
	}
	return nil
}

// AvailabilitySnapshot is the last known stock position of one
// item/warehouse pair. Snapshots are advisory: the system of record
// re-validates at submission time.
type AvailabilitySnapshot struct {
	ItemCode           string          `json:"item_code"`
	Warehouse          string          `json:"warehouse"`
	AvailableQty       decimal.Decimal `json:"available_qty"`
	IsStockItem        bool            `json:"is_stock_item"`
	AllowNegativeStock bool            `json:"allow_negative_stock"`
	FetchedAt          time.Time       `json:"fetched_at"`
}

// QuantityPrompt describes a pending quantity-confirmation dialog.
type QuantityPrompt struct {
	PromptID     string          `json:"prompt_id"`
	LineID       string          `json:"line_id"`
	ItemCode     string          `json:"item_code"`
	RequestedQty decimal.Decimal `json:"requested_qty"`
	BatchNo      string          `json:"batch_no,omitempty"`
	SerialNo     string          `json:"serial_no,omitempty"`
	Barcode      string          `json:"barcode,omitempty"`
}

// Scan outcome statuses. Every scan resolves to exactly one of these at the
// reconciler boundary; warnings and errors carry a user-visible message and
// never surface as unhandled failures.
const (
	OutcomeLineAdded     = "line_added"
	OutcomeLineUpdated   = "line_updated"
	OutcomeLineRemoved   = "line_removed"
	OutcomeWarehouseSet  = "warehouse_set"
	OutcomeNoMatch       = "no_match"
	OutcomePromptPending = "prompt_pending"
	OutcomeCancelled     = "cancelled"
	OutcomeWarning       = "warning"
	OutcomeError         = "error"
)

// Cue values hint the UI at an audio/visual signal to accompany a message.
const (
	CueNone  = ""
	CueBeep  = "beep"
	CueError = "error"
)

// ScanOutcome is the user-visible result of one scan or cart edit.
type ScanOutcome struct {
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Cue      string          `json:"cue,omitempty"`
	LineID   string          `json:"line_id,omitempty"`
	ItemCode string          `json:"item_code,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Created  bool            `json:"created,omitempty"`
	Prompt   *QuantityPrompt `json:"prompt,omitempty"`
}

// Session API types.

type SessionOpenRequest struct {
	Customer        string `json:"customer"`
	Warehouse       string `json:"warehouse,omitempty"`
	PriceList       string `json:"price_list,omitempty"`
	DisallowNewRows bool   `json:"disallow_new_rows,omitempty"`
	PromptQuantity  bool   `json:"prompt_quantity,omitempty"`
	EnforceMaxQty   bool   `json:"enforce_max_qty,omitempty"`
}

type CartView struct {
	SessionID            string      `json:"session_id"`
	Customer             string      `json:"customer"`
	LastScannedWarehouse string      `json:"last_scanned_warehouse,omitempty"`
	Lines                []OrderLine `json:"lines"`
}

type ScanRequest struct {
	ScanText string `json:"scan_text"`
}

type PromptActionRequest struct {
	PromptID string          `json:"prompt_id"`
	Action   string          `json:"action"`
	Quantity decimal.Decimal `json:"quantity"`
}

const (
	PromptActionConfirm = "confirm"
	PromptActionCancel  = "cancel"
)

type LineQuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

// LineRemoveRequest voids a cart line; the action requires manager
// approval via PIN.
type LineRemoveRequest struct {
	ManagerPIN string `json:"manager_pin"`
}

type WarehouseContextRequest struct {
	Warehouse string `json:"warehouse"`
}

type CustomerRequest struct {
	Customer string `json:"customer"`
}

type AvailabilityRefreshRequest struct {
	ItemCode  string `json:"item_code"`
	Warehouse string `json:"warehouse"`
}

// Auth types for operator login on the HTTP shell.

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
