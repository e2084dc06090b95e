package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultReorderThreshold is applied when an item is registered without one.
const DefaultReorderThreshold int64 = 10

// Field limits carried over from the catalog forms.
const (
	MaxItemNameLength  = 200
	MaxReferenceLength = 100
	MaxActorLength     = 150
	UnitPricePlaces    = 2
)

// Item is a saleable item and its cached on-hand quantity.
// Quantity is only ever changed by LedgerEngine.ApplyMovement and may be
// negative when the item is oversold.
type Item struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Quantity         int64           `json:"quantity"`
	ReorderThreshold int64           `json:"reorder_threshold"`
	IsActive         bool            `json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsLowStock reports whether the on-hand quantity is at or below the reorder threshold.
func (i Item) IsLowStock() bool {
	return i.Quantity <= i.ReorderThreshold
}

// StockValue is Quantity × UnitPrice.
func (i Item) StockValue() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// MovementKind classifies a stock movement. The string values are the codes
// stored in the movement log.
type MovementKind string

const (
	Inbound    MovementKind = "IN"
	Outbound   MovementKind = "OUT"
	Adjustment MovementKind = "ADJUSTMENT"
)

// Valid reports whether k is one of the known kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case Inbound, Outbound, Adjustment:
		return true
	}
	return false
}

// Label is the human-readable name of the kind.
func (k MovementKind) Label() string {
	switch k {
	case Inbound:
		return "Inbound"
	case Outbound:
		return "Outbound"
	case Adjustment:
		return "Adjustment"
	}
	return string(k)
}

// Delta returns the signed effect of a movement of the given magnitude.
// Adjustment is additive; negative corrections are booked as Outbound.
func (k MovementKind) Delta(quantity int64) int64 {
	if k == Outbound {
		return -quantity
	}
	return quantity
}

// ParseMovementKind accepts the stored codes ("IN", "OUT", "ADJUSTMENT") or
// the long names, case-insensitively.
func ParseMovementKind(s string) (MovementKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "IN", "INBOUND":
		return Inbound, nil
	case "OUT", "OUTBOUND":
		return Outbound, nil
	case "ADJUSTMENT", "ADJUST":
		return Adjustment, nil
	}
	return "", newLedgerError(ErrInvalidKind, "unrecognized movement kind %q", s)
}

// MovementRecord is one immutable entry in the stock movement log.
// Quantity is the unsigned magnitude; EffectiveDelta gives the signed change.
type MovementRecord struct {
	ID        int64        `json:"id"`
	ItemID    int64        `json:"item_id"`
	Kind      MovementKind `json:"kind"`
	Quantity  int64        `json:"quantity"`
	Reference string       `json:"reference,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	Actor     string       `json:"actor,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// EffectiveDelta is the signed change this movement applied to its item.
func (m MovementRecord) EffectiveDelta() int64 {
	return m.Kind.Delta(m.Quantity)
}

// ReconcileReport compares an item's cached quantity with the sum of its log.
type ReconcileReport struct {
	ItemID         int64 `json:"item_id"`
	CachedQuantity int64 `json:"cached_quantity"`
	LedgerQuantity int64 `json:"ledger_quantity"`
	MovementCount  int   `json:"movement_count"`
}

// Drift is CachedQuantity − LedgerQuantity; zero for a consistent item.
func (r ReconcileReport) Drift() int64 {
	return r.CachedQuantity - r.LedgerQuantity
}

// Consistent reports whether the cached quantity matches the log.
func (r ReconcileReport) Consistent() bool {
	return r.Drift() == 0
}
