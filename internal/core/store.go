package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// ApplyFunc mutates the locked item in place and returns the movement that
// records the change. It runs inside the store's per-item critical section
// and must not block or perform I/O. Returning an error aborts the write.
type ApplyFunc func(item *Item) (*MovementRecord, error)

// ItemFilter narrows ListItems. The zero value lists every item.
type ItemFilter struct {
	ActiveOnly   bool
	LowStockOnly bool
	NameContains string // case-insensitive substring match
}

// Store persists items and the movement log. Implementations guarantee that
// ApplyToItem is atomic per item: the item update and the record append are
// committed together or not at all, and two calls on the same item never
// observe the same starting quantity. Calls on different items must not
// serialize on each other for the duration of the read-modify-write.
type Store interface {
	// CreateItem persists a new item and assigns its ID. A non-nil opening
	// record is appended to the log in the same atomic step; item.Quantity
	// must already include its delta.
	CreateItem(ctx context.Context, item Item, opening *MovementRecord) (*Item, *MovementRecord, error)
	// GetItem returns the item or an ErrNotFound LedgerError.
	GetItem(ctx context.Context, itemID int64) (*Item, error)
	// SetItemActive flips the soft-delete flag.
	SetItemActive(ctx context.Context, itemID int64, active bool) (*Item, error)
	// ApplyToItem locks the item, calls apply, then persists the updated
	// item together with the returned record. The record's ID is assigned
	// by the store and is strictly increasing across the whole log.
	ApplyToItem(ctx context.Context, itemID int64, apply ApplyFunc) (*MovementRecord, *Item, error)
	// ListItems returns a point-in-time snapshot ordered by ID.
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	// RecentMovements returns up to limit records ordered by CreatedAt
	// descending, ties broken by ID descending.
	RecentMovements(ctx context.Context, limit int) ([]MovementRecord, error)
	// ItemMovements returns an item's records newest first. limit <= 0 means all.
	ItemMovements(ctx context.Context, itemID int64, limit int) ([]MovementRecord, error)
	// ItemLedger returns the item and its full history read from a single
	// snapshot, so the cached quantity and the log can be compared.
	ItemLedger(ctx context.Context, itemID int64) (*Item, []MovementRecord, error)
}

// inventoryValuer is implemented by stores that can compute the valuation
// natively (e.g. with a SQL aggregate) instead of streaming every item.
type inventoryValuer interface {
	InventoryValue(ctx context.Context) (decimal.Decimal, error)
}

// matches applies f to an in-memory item.
func (f ItemFilter) matches(item Item) bool {
	if f.ActiveOnly && !item.IsActive {
		return false
	}
	if f.LowStockOnly && !item.IsLowStock() {
		return false
	}
	if f.NameContains != "" && !containsFold(item.Name, f.NameContains) {
		return false
	}
	return true
}
