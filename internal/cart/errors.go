package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for expected engine branches. The reconciler maps every
// one of these to a user-visible scan outcome; none escape its boundary.
var (
	ErrMissingCustomer  = errors.New("cart: no customer selected")
	ErrRowLimitExceeded = errors.New("cart: new rows are not allowed")
	ErrScanInProgress   = errors.New("cart: a scan is already in progress")
	ErrPromptCancelled  = errors.New("cart: quantity prompt cancelled")
)

// DuplicateSerialError reports a serial number scanned into a line that
// already holds it.
type DuplicateSerialError struct {
	SerialNo string
	ItemCode string
}

func (e *DuplicateSerialError) Error() string {
	return fmt.Sprintf("cart: serial %s already scanned for item %s", e.SerialNo, e.ItemCode)
}

// SerialReservedError reports a serial number committed to another open
// cart session.
type SerialReservedError struct {
	SerialNo string
	ItemCode string
}

func (e *SerialReservedError) Error() string {
	return fmt.Sprintf("cart: serial %s of item %s is reserved by another cart", e.SerialNo, e.ItemCode)
}

// OutOfStockError reports a stock item with no sellable quantity at all in
// the warehouse. The triggering line is rolled back.
type OutOfStockError struct {
	ItemCode  string
	Warehouse string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("cart: item %s is out of stock in warehouse %s", e.ItemCode, e.Warehouse)
}

// ShortfallError reports available stock below the requested increase. The
// line survives with its previous quantity.
type ShortfallError struct {
	ItemCode  string
	Warehouse string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("cart: only %s of item %s available in warehouse %s (requested %s)",
		e.Available, e.ItemCode, e.Warehouse, e.Requested)
}

// MissingPriceError reports an item with no rate on the session's price
// list; such items cannot enter the cart.
type MissingPriceError struct {
	ItemCode  string
	PriceList string
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("cart: item %s has no rate on price list %s", e.ItemCode, e.PriceList)
}
