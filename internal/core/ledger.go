package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds how many times a ConcurrencyConflict is retried
// before it is surfaced to the caller.
const DefaultMaxAttempts = 3

// OpeningBalanceReference marks the movement booked for an item's opening quantity.
const OpeningBalanceReference = "opening balance"

// ApplyMovementInput is one quantity-changing event. Quantity is always a
// positive magnitude; the sign comes from Kind.
type ApplyMovementInput struct {
	ItemID    int64
	Kind      MovementKind
	Quantity  int64
	Reference string
	Notes     string
	Actor     string
}

// NewItemInput registers an item with the ledger. A non-zero OpeningQuantity
// is booked as a movement so the log explains the starting stock.
type NewItemInput struct {
	Name             string
	UnitPrice        decimal.Decimal
	ReorderThreshold *int64 // nil → DefaultReorderThreshold
	OpeningQuantity  int64
	Actor            string
}

// LedgerEngine owns item quantities and the append-only movement log.
// ApplyMovement is the only way quantities change.
type LedgerEngine interface {
	// ApplyMovement validates and atomically applies a movement, returning the
	// persisted record and the item as it stands after the change.
	ApplyMovement(ctx context.Context, in ApplyMovementInput) (*MovementRecord, *Item, error)

	CreateItem(ctx context.Context, in NewItemInput) (*Item, error)
	GetItem(ctx context.Context, itemID int64) (*Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, error)
	// DeactivateItem soft-deletes an item. History and the record stay intact.
	DeactivateItem(ctx context.Context, itemID int64) (*Item, error)
	ItemMovements(ctx context.Context, itemID int64, limit int) ([]MovementRecord, error)

	// Reconcile recomputes an item's quantity from its log.
	Reconcile(ctx context.Context, itemID int64) (*ReconcileReport, error)
	// ReconcileAll reconciles every item, active or not.
	ReconcileAll(ctx context.Context) ([]ReconcileReport, error)
}

type ledgerEngine struct {
	store        Store
	log          *zap.Logger
	maxAttempts  uint
	retryInitial time.Duration
	now          func() time.Time
}

// LedgerOption customizes NewLedgerEngine.
type LedgerOption func(*ledgerEngine)

// WithMaxAttempts sets the number of tries for a movement that hits a
// ConcurrencyConflict. Values below 1 are ignored.
func WithMaxAttempts(n int) LedgerOption {
	return func(e *ledgerEngine) {
		if n >= 1 {
			e.maxAttempts = uint(n)
		}
	}
}

// WithRetryInterval sets the initial backoff between conflict retries.
func WithRetryInterval(d time.Duration) LedgerOption {
	return func(e *ledgerEngine) {
		if d > 0 {
			e.retryInitial = d
		}
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(e *ledgerEngine) { e.now = now }
}

func NewLedgerEngine(store Store, log *zap.Logger, opts ...LedgerOption) LedgerEngine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &ledgerEngine{
		store:        store,
		log:          log.Named("ledger"),
		maxAttempts:  DefaultMaxAttempts,
		retryInitial: 10 * time.Millisecond,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// timestamp is microsecond precision, matching PostgreSQL timestamptz, so
// every store orders records identically.
func (e *ledgerEngine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Microsecond)
}

func validateMovement(in ApplyMovementInput) error {
	if !in.Kind.Valid() {
		return newLedgerError(ErrInvalidKind, "unrecognized movement kind %q", string(in.Kind))
	}
	if in.Quantity <= 0 {
		return newLedgerError(ErrInvalidMagnitude, "quantity must be a positive integer, got %d", in.Quantity)
	}
	if utf8.RuneCountInString(in.Reference) > MaxReferenceLength {
		return newLedgerError(ErrValidation, "reference must be at most %d characters", MaxReferenceLength)
	}
	return validateActor(in.Actor)
}

func validateActor(actor string) error {
	if utf8.RuneCountInString(actor) > MaxActorLength {
		return newLedgerError(ErrValidation, "actor must be at most %d characters", MaxActorLength)
	}
	return nil
}

type appliedMovement struct {
	record *MovementRecord
	item   *Item
}

func (e *ledgerEngine) ApplyMovement(ctx context.Context, in ApplyMovementInput) (*MovementRecord, *Item, error) {
	in.Reference = strings.TrimSpace(in.Reference)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validateMovement(in); err != nil {
		return nil, nil, err
	}

	delta := in.Kind.Delta(in.Quantity)
	apply := func(item *Item) (*MovementRecord, error) {
		if (delta > 0 && item.Quantity > math.MaxInt64-delta) || (delta < 0 && item.Quantity < math.MinInt64-delta) {
			return nil, newLedgerError(ErrInvalidMagnitude, "movement of %d would overflow quantity of item %d", in.Quantity, item.ID)
		}
		now := e.timestamp()
		item.Quantity += delta
		item.UpdatedAt = now
		return &MovementRecord{
			ItemID:    item.ID,
			Kind:      in.Kind,
			Quantity:  in.Quantity,
			Reference: in.Reference,
			Notes:     in.Notes,
			Actor:     in.Actor,
			CreatedAt: now,
		}, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryInitial
	b.MaxInterval = 20 * e.retryInitial

	res, err := backoff.Retry(ctx, func() (appliedMovement, error) {
		rec, item, err := e.store.ApplyToItem(ctx, in.ItemID, apply)
		if err != nil {
			if IsRetryable(err) {
				return appliedMovement{}, err
			}
			return appliedMovement{}, backoff.Permanent(err)
		}
		return appliedMovement{record: rec, item: item}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(e.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			e.log.Debug("retrying stock movement after conflict",
				zap.Int64("item_id", in.ItemID), zap.Duration("backoff", next), zap.Error(err))
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		if IsRetryable(err) {
			e.log.Warn("stock movement gave up after repeated conflicts",
				zap.Int64("item_id", in.ItemID), zap.Uint("attempts", e.maxAttempts))
		}
		return nil, nil, err
	}

	e.log.Info("stock movement applied",
		zap.Int64("movement_id", res.record.ID),
		zap.Int64("item_id", res.item.ID),
		zap.String("kind", string(res.record.Kind)),
		zap.Int64("quantity", res.record.Quantity),
		zap.Int64("on_hand", res.item.Quantity),
		zap.String("actor", res.record.Actor),
	)
	if res.item.Quantity < 0 {
		// Oversold/backordered state is allowed; flag it for review instead of failing.
		e.log.Warn("item on-hand quantity is negative",
			zap.Int64("item_id", res.item.ID), zap.Int64("on_hand", res.item.Quantity))
	}
	return res.record, res.item, nil
}

func validateNewItem(in NewItemInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return newLedgerError(ErrValidation, "item name is required")
	}
	if utf8.RuneCountInString(name) > MaxItemNameLength {
		return newLedgerError(ErrValidation, "item name must be at most %d characters", MaxItemNameLength)
	}
	if in.UnitPrice.IsNegative() {
		return newLedgerError(ErrValidation, "unit price cannot be negative, got %s", in.UnitPrice)
	}
	if !in.UnitPrice.Equal(in.UnitPrice.Truncate(UnitPricePlaces)) {
		return newLedgerError(ErrValidation, "unit price must have at most %d decimal places, got %s", UnitPricePlaces, in.UnitPrice)
	}
	if in.ReorderThreshold != nil && *in.ReorderThreshold < 0 {
		return newLedgerError(ErrValidation, "reorder threshold cannot be negative, got %d", *in.ReorderThreshold)
	}
	if in.OpeningQuantity == math.MinInt64 {
		return newLedgerError(ErrInvalidMagnitude, "opening quantity %d is out of range", in.OpeningQuantity)
	}
	return validateActor(in.Actor)
}

// openingMovement books a non-zero opening quantity as an adjustment, or as
// an outbound movement when the item starts oversold.
func openingMovement(qty int64, actor string, at time.Time) *MovementRecord {
	if qty == 0 {
		return nil
	}
	kind := Adjustment
	if qty < 0 {
		kind, qty = Outbound, -qty
	}
	return &MovementRecord{
		Kind:      kind,
		Quantity:  qty,
		Reference: OpeningBalanceReference,
		Actor:     actor,
		CreatedAt: at,
	}
}

func (e *ledgerEngine) CreateItem(ctx context.Context, in NewItemInput) (*Item, error) {
	if err := validateNewItem(in); err != nil {
		return nil, err
	}
	threshold := DefaultReorderThreshold
	if in.ReorderThreshold != nil {
		threshold = *in.ReorderThreshold
	}
	now := e.timestamp()
	// Item and opening movement are written together or not at all.
	item, opening, err := e.store.CreateItem(ctx, Item{
		Name:             strings.TrimSpace(in.Name),
		UnitPrice:        in.UnitPrice,
		Quantity:         in.OpeningQuantity,
		ReorderThreshold: threshold,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, openingMovement(in.OpeningQuantity, in.Actor, now))
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.Int64("item_id", item.ID), zap.String("name", item.Name)}
	if opening != nil {
		fields = append(fields, zap.Int64("movement_id", opening.ID), zap.Int64("on_hand", item.Quantity))
	}
	e.log.Info("item registered", fields...)
	return item, nil
}

func (e *ledgerEngine) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	return e.store.GetItem(ctx, itemID)
}

func (e *ledgerEngine) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	return e.store.ListItems(ctx, filter)
}

func (e *ledgerEngine) DeactivateItem(ctx context.Context, itemID int64) (*Item, error) {
	item, err := e.store.SetItemActive(ctx, itemID, false)
	if err != nil {
		return nil, err
	}
	e.log.Info("item deactivated", zap.Int64("item_id", itemID))
	return item, nil
}

func (e *ledgerEngine) ItemMovements(ctx context.Context, itemID int64, limit int) ([]MovementRecord, error) {
	return e.store.ItemMovements(ctx, itemID, limit)
}

func (e *ledgerEngine) Reconcile(ctx context.Context, itemID int64) (*ReconcileReport, error) {
	item, history, err := e.store.ItemLedger(ctx, itemID)
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{
		ItemID:         item.ID,
		CachedQuantity: item.Quantity,
		MovementCount:  len(history),
	}
	for _, m := range history {
		report.LedgerQuantity += m.EffectiveDelta()
	}
	if !report.Consistent() {
		e.log.Error("item quantity drifted from its movement log",
			zap.Int64("item_id", item.ID),
			zap.Int64("cached", report.CachedQuantity),
			zap.Int64("ledger", report.LedgerQuantity))
	}
	return report, nil
}

func (e *ledgerEngine) ReconcileAll(ctx context.Context) ([]ReconcileReport, error) {
	items, err := e.store.ListItems(ctx, ItemFilter{})
	if err != nil {
		return nil, err
	}
	reports := make([]ReconcileReport, 0, len(items))
	for _, it := range items {
		r, err := e.Reconcile(ctx, it.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile item %d: %w", it.ID, err)
		}
		reports = append(reports, *r)
	}
	return reports, nil
}
