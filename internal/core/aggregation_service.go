package core

import (
	"context"
	"iter"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MaxRecentLimit caps RecentMovements so one request cannot pull the whole log.
const MaxRecentLimit = 500

// DashboardRecentLimit is how many movements the dashboard shows.
const DashboardRecentLimit = 5

// ── Report types ──────────────────────────────────────────────────────────────

// DashboardSummary is the overview shown on the landing screen.
// Each field is read from its own snapshot; together they are not a single
// linearizable view.
type DashboardSummary struct {
	ActiveItemCount int              `json:"active_item_count"`
	LowStockCount   int              `json:"low_stock_count"`
	LowStockItems   []Item           `json:"low_stock_items"`
	TotalValue      decimal.Decimal  `json:"total_value"`
	RecentMovements []MovementRecord `json:"recent_movements"`
}

// ── Interface ─────────────────────────────────────────────────────────────────

// AggregationService derives read-only views from current item state and the
// movement log. It never mutates.
type AggregationService interface {
	// LowStockItems yields active items whose quantity is at or below their
	// reorder threshold. The sequence is lazy, finite and restartable over
	// the snapshot taken when the call was made.
	LowStockItems(ctx context.Context) (iter.Seq[Item], error)

	// TotalInventoryValue is Σ quantity × unit price over active items,
	// computed in exact decimal arithmetic.
	TotalInventoryValue(ctx context.Context) (decimal.Decimal, error)

	// RecentMovements returns the limit most recent records across all items,
	// newest first with ties broken by ID descending. limit <= 0 yields an
	// empty result; limit is capped at MaxRecentLimit.
	RecentMovements(ctx context.Context, limit int) ([]MovementRecord, error)

	// Dashboard assembles the overview. Parts are computed concurrently.
	Dashboard(ctx context.Context) (*DashboardSummary, error)
}

// ── Implementation ────────────────────────────────────────────────────────────

type aggregationService struct {
	store Store
}

// NewAggregationService constructs an AggregationService over the given store.
func NewAggregationService(store Store) AggregationService {
	return &aggregationService{store: store}
}

func (s *aggregationService) LowStockItems(ctx context.Context) (iter.Seq[Item], error) {
	snapshot, err := s.store.ListItems(ctx, ItemFilter{ActiveOnly: true, LowStockOnly: true})
	if err != nil {
		return nil, err
	}
	return func(yield func(Item) bool) {
		for _, it := range snapshot {
			// Re-check so a store that ignores LowStockOnly still yields the right set.
			if !it.IsActive || !it.IsLowStock() {
				continue
			}
			if !yield(it) {
				return
			}
		}
	}, nil
}

func (s *aggregationService) TotalInventoryValue(ctx context.Context) (decimal.Decimal, error) {
	if v, ok := s.store.(inventoryValuer); ok {
		return v.InventoryValue(ctx)
	}
	items, err := s.store.ListItems(ctx, ItemFilter{ActiveOnly: true})
	if err != nil {
		return decimal.Zero, err
	}
	return sumValue(items), nil
}

func sumValue(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.IsActive {
			total = total.Add(it.StockValue())
		}
	}
	return total
}

func (s *aggregationService) RecentMovements(ctx context.Context, limit int) ([]MovementRecord, error) {
	if limit <= 0 {
		return []MovementRecord{}, nil
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	return s.store.RecentMovements(ctx, limit)
}

func (s *aggregationService) Dashboard(ctx context.Context) (*DashboardSummary, error) {
	summary := &DashboardSummary{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		active, err := s.store.ListItems(gctx, ItemFilter{ActiveOnly: true})
		if err != nil {
			return err
		}
		summary.ActiveItemCount = len(active)
		return nil
	})
	g.Go(func() error {
		seq, err := s.LowStockItems(gctx)
		if err != nil {
			return err
		}
		low := []Item{}
		for it := range seq {
			low = append(low, it)
		}
		summary.LowStockItems = low
		summary.LowStockCount = len(low)
		return nil
	})
	g.Go(func() error {
		total, err := s.TotalInventoryValue(gctx)
		if err != nil {
			return err
		}
		summary.TotalValue = total
		return nil
	})
	g.Go(func() error {
		recent, err := s.RecentMovements(gctx, DashboardRecentLimit)
		if err != nil {
			return err
		}
		summary.RecentMovements = recent
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}
