package app

import (
	"inventory-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// MovementResult is returned by RecordMovement.
type MovementResult struct {
	Movement *core.MovementRecord `json:"movement"`
	Item     *core.Item           `json:"item"`
}

// ItemResult is returned by single-item operations.
type ItemResult struct {
	Item *core.Item `json:"item"`
}

// ItemListResult is returned by ListItems and GetLowStock.
type ItemListResult struct {
	Items []core.Item `json:"items"`
}

// MovementListResult is returned by GetItemHistory and GetRecentMovements.
type MovementListResult struct {
	Movements []core.MovementRecord `json:"movements"`
}

// InventoryValueResult is returned by GetInventoryValue.
type InventoryValueResult struct {
	TotalValue decimal.Decimal `json:"total_value"`
}

// ReconcileResult is returned by ReconcileItem and ReconcileAll.
type ReconcileResult struct {
	Reports []core.ReconcileReport `json:"reports"`
	Drifted int                    `json:"drifted"`
}

// Consistent reports whether every reconciled item matched its log.
func (r *ReconcileResult) Consistent() bool {
	return r.Drifted == 0
}
