package app

import (
	"context"

	"inventory-ledger/internal/core"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// RecordMovement parses the movement kind and applies the movement through
	// the ledger. Actor is passed through opaquely from the caller's session.
	RecordMovement(ctx context.Context, req RecordMovementRequest) (*MovementResult, error)

	// RegisterItem adds an item to the catalog. A non-zero opening quantity is
	// booked as a movement.
	RegisterItem(ctx context.Context, req RegisterItemRequest) (*ItemResult, error)

	// GetItem returns one item with its current quantity.
	GetItem(ctx context.Context, itemID int64) (*ItemResult, error)

	// ListItems returns items matching the request filters, ordered by ID.
	ListItems(ctx context.Context, req ListItemsRequest) (*ItemListResult, error)

	// DeactivateItem soft-deletes an item. Its movement history is kept.
	DeactivateItem(ctx context.Context, itemID int64) (*ItemResult, error)

	// GetItemHistory returns an item's movements, newest first.
	GetItemHistory(ctx context.Context, itemID int64, limit int) (*MovementListResult, error)

	// GetLowStock returns active items at or below their reorder threshold.
	GetLowStock(ctx context.Context) (*ItemListResult, error)

	// GetInventoryValue returns the total value of active stock.
	GetInventoryValue(ctx context.Context) (*InventoryValueResult, error)

	// GetRecentMovements returns the most recent movements across all items.
	GetRecentMovements(ctx context.Context, limit int) (*MovementListResult, error)

	// GetDashboard returns the overview summary.
	GetDashboard(ctx context.Context) (*core.DashboardSummary, error)

	// ReconcileItem recomputes one item's quantity from its log.
	ReconcileItem(ctx context.Context, itemID int64) (*ReconcileResult, error)

	// ReconcileAll recomputes every item's quantity from its log.
	ReconcileAll(ctx context.Context) (*ReconcileResult, error)
}
