package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"scanline/backend/internal/domain"
)

// Sentinel errors shared by every Repository implementation. Callers branch
// with errors.Is; wrapping with %w keeps query context attached.
var (
	ErrNotFound     = errors.New("store: not found")
	ErrInvalidInput = errors.New("store: invalid input")
)

// Repository is the persistence and lookup contract behind the cart engine
// and the HTTP shell. Implementations: postgres (production) and memory
// (dev mode and tests).
type Repository interface {
	// ClassifyScan resolves one raw scan into a typed result, checking in
	// priority order: item barcode, serial number, batch number, warehouse
	// code. A scan that matches nothing returns Kind ScanKindNone with a
	// nil error.
	ClassifyScan(ctx context.Context, searchValue string, scanCtx domain.ScanContext) (domain.ScanResult, error)

	// GetItem returns the catalog entry for itemCode or ErrNotFound.
	GetItem(ctx context.Context, itemCode string) (*domain.Item, error)

	// ListItems returns up to limit items whose code or name contains
	// searchTerm (empty term lists everything).
	ListItems(ctx context.Context, searchTerm string, limit int) ([]domain.Item, error)

	// GetItemPrice returns the best rate on priceList for the item,
	// preferring rows that pin the given batch, then rows that pin the
	// given UOM, then the item's generic row. No matching row returns
	// ErrNotFound.
	GetItemPrice(ctx context.Context, itemCode, uom, batchNo, priceList string) (*domain.ItemPrice, error)

	// GetConversionFactor returns how many stock units one uom of the item
	// holds. The item's own stock UOM always converts at 1.
	GetConversionFactor(ctx context.Context, itemCode, uom string) (decimal.Decimal, error)

	// GetAvailability reports the sellable position of an item in a
	// warehouse: bin quantity minus quantities held by other open cart
	// sessions. Non-stock items report a zero position with IsStockItem
	// false. Unknown items return ErrNotFound; a warehouse with no bin
	// reads as an empty position.
	GetAvailability(ctx context.Context, itemCode, warehouse string) (domain.AvailabilitySnapshot, error)

	// ListReservedSerials returns the serial numbers of the item committed
	// to other open cart sessions in the warehouse (all warehouses when
	// warehouse is empty).
	ListReservedSerials(ctx context.Context, itemCode, warehouse string) (map[string]struct{}, error)

	// Operator accounts for the HTTP shell.
	CreateUser(ctx context.Context, user *domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}
