package core_test

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"testing"
	"time"

	"inventory-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// steppingClock returns a strictly increasing time on every call.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func collectIDs(seq iter.Seq[core.Item]) []int64 {
	var ids []int64
	for it := range seq {
		ids = append(ids, it.ID)
	}
	return ids
}

func TestLowStockItems_AfterOutbound(t *testing.T) {
	store := core.NewMemoryStore()
	ledger := newTestLedger(t, store)
	agg := core.NewAggregationService(store)
	ctx := context.Background()

	item := mustCreateItem(t, ledger, "Gasket", "3.00", 50, 10)
	seq, err := agg.LowStockItems(ctx)
	if err != nil {
		t.Fatalf("LowStockItems failed: %v", err)
	}
	if ids := collectIDs(seq); len(ids) != 0 {
		t.Fatalf("expected no low-stock items at 50, got %v", ids)
	}

	_, updated, err := ledger.ApplyMovement(ctx, core.ApplyMovementInput{
		ItemID: item.ID, Kind: core.Outbound, Quantity: 45,
	})
	if err != nil {
		t.Fatalf("ApplyMovement failed: %v", err)
	}
	if updated.Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", updated.Quantity)
	}

	seq, err = agg.LowStockItems(ctx)
	if err != nil {
		t.Fatalf("LowStockItems failed: %v", err)
	}
	if ids := collectIDs(seq); !slices.Equal(ids, []int64{item.ID}) {
		t.Errorf("low stock = %v, want [%d]", ids, item.ID)
	}
}

func TestLowStockItems_ThresholdBoundaryAndInactive(t *testing.T) {
	store := core.NewMemoryStore()
	ledger := newTestLedger(t, store)
	agg := core.NewAggregationService(store)
	ctx := context.Background()

	atThreshold := mustCreateItem(t, ledger, "At", "1.00", 10, 10)
	mustCreateItem(t, ledger, "Above", "1.00", 11, 10)
	negative := mustCreateItem(t, ledger, "Oversold", "1.00", -3, 0)
	retired := mustCreateItem(t, ledger, "Retired", "1.00", 0, 10)
	if _, err := ledger.DeactivateItem(ctx, retired.ID); err != nil {
		t.Fatalf("DeactivateItem failed: %v", err)
	}

	seq, err := agg.LowStockItems(ctx)
	if err != nil {
		t.Fatalf("LowStockItems failed: %v", err)
	}
	want := []int64{atThreshold.ID, negative.ID}
	first := collectIDs(seq)
	slices.Sort(first)
	if !slices.Equal(first, want) {
		t.Errorf("low stock = %v, want %v", first, want)
	}

	// Restartable: ranging again over the same sequence yields the same snapshot,
	// even after the store has moved on.
	if _, _, err := ledger.ApplyMovement(ctx, core.ApplyMovementInput{
		ItemID: atThreshold.ID, Kind: core.Inbound, Quantity: 100,
	}); err != nil {
		t.Fatalf("ApplyMovement failed: %v", err)
	}
	second := collectIDs(seq)
	slices.Sort(second)
	if !slices.Equal(second, want) {
		t.Errorf("second pass = %v, want %v", second, want)
	}

	// Early break stops the iteration.
	count := 0
	for range seq {
		count++
		break
	}
	if count != 1 {
		t.Errorf("expected to stop after one item, got %d", count)
	}
}

func TestTotalInventoryValue(t *testing.T) {
	store := core.NewMemoryStore()
	ledger := newTestLedger(t, store)
	agg := core.NewAggregationService(store)
	ctx := context.Background()

	total, err := agg.TotalInventoryValue(ctx)
	if err != nil {
		t.Fatalf("TotalInventoryValue failed: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("empty store valued at %s", total)
	}

	mustCreateItem(t, ledger, "Ten", "10.00", 3, 0)
	mustCreateItem(t, ledger, "Two fifty", "2.50", 4, 0)
	retired := mustCreateItem(t, ledger, "Retired", "99.99", 7, 0)
	if _, err := ledger.DeactivateItem(ctx, retired.ID); err != nil {
		t.Fatalf("DeactivateItem failed: %v", err)
	}

	total, err = agg.TotalInventoryValue(ctx)
	if err != nil {
		t.Fatalf("TotalInventoryValue failed: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("total = %s, want 40.00", total)
	}
}

func TestTotalInventoryValue_ExactDecimal(t *testing.T) {
	store := core.NewMemoryStore()
	ledger := newTestLedger(t, store)
	agg := core.NewAggregationService(store)

	// 0.10 and 0.20 are not representable in binary floating point.
	mustCreateItem(t, ledger, "Dime", "0.10", 3, 0)
	mustCreateItem(t, ledger, "Twenty", "0.20", 1, 0)

	total, err := agg.TotalInventoryValue(context.Background())
	if err != nil {
		t.Fatalf("TotalInventoryValue failed: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("0.50")) {
		t.Errorf("total = %s, want 0.50", total)
	}
}

func TestRecentMovements_NewestFirst(t *testing.T) {
	store := core.NewMemoryStore()
	ledger := newTestLedger(t, store, core.WithClock(steppingClock()))
	agg := core.NewAggregationService(store)
	ctx := context.Background()

	item := mustCreateItem(t, ledger, "Busy", "1.00", 0, 0)
	var ids []int64
	for i := 1; i <= 7; i++ {
		rec, _, err := ledger.ApplyMovement(ctx, core.ApplyMovementInput{
			ItemID: item.ID, Kind: core.Inbound, Quantity: int64(i), Reference: fmt.Sprintf("PO-%d", i),
		})
		if err != nil {
			t.Fatalf("movement %d failed: %v", i, err)
		}
		ids = append(ids, rec.ID)
	}

	recent, err := agg.RecentMovements(ctx, 5)
	if err != nil {
		t.Fatalf("RecentMovements failed: %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("got %d movements, want 5", len(recent))
	}
	for i, m := range recent {
		want := ids[len(ids)-1-i]
		if m.ID != want {
			t.Errorf("recent[%d].ID = %d, want %d", i, m.ID, want)
		}
		if i > 0 && m.CreatedAt.After(recent[i-1].CreatedAt) {
			t.Errorf("recent[%d] is newer than recent[%d]", i, i-1)
		}
	}
}

func TestRecentMovements_TiesBrokenByID(t *testing.T) {
	store := core.NewMemoryStore()
	frozen := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := newTestLedger(t, store, core.WithClock(func() time.Time { return frozen }))
	agg := core.NewAggregationService(store)
	ctx := context.Background()

	a := mustCreateItem(t, ledger, "A", "1.00", 0, 0)
	b := mustCreateItem(t, ledger, "B", "1.00", 0, 0)
	for _, id := range []int64{a.ID, b.ID, a.ID} {
		if _, _, err := ledger.ApplyMovement(ctx, core.ApplyMovementInput{ItemID: id, Kind: core.Inbound, Quantity: 1}); err != nil {
			t.Fatalf("ApplyMovement failed: %v", err)
		}
	}

	recent, err := agg.RecentMovements(ctx, 10)
	if err != nil {
		t.Fatalf("RecentMovements failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d movements, want 3", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].ID >= recent[i-1].ID {
			t.Errorf("equal timestamps not ordered by ID desc: %d then %d", recent[i-1].ID, recent[i].ID)
		}
	}
}

func TestRecentMovements_Limits(t *testing.T) {
	store := core.NewMemoryStore()
	ledger := newTestLedger(t, store)
	agg := core.NewAggregationService(store)
	ctx := context.Background()

	mustCreateItem(t, ledger, "Seeded", "1.00", 5, 0)

	for _, limit := range []int{0, -3} {
		recent, err := agg.RecentMovements(ctx, limit)
		if err != nil {
			t.Fatalf("RecentMovements(%d) failed: %v", limit, err)
		}
		if recent == nil || len(recent) != 0 {
			t.Errorf("RecentMovements(%d) = %v, want empty", limit, recent)
		}
	}

	recent, err := agg.RecentMovements(ctx, 100)
	if err != nil {
		t.Fatalf("RecentMovements failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("got %d movements, want 1", len(recent))
	}
}

func TestRecentMovements_CappedAtMax(t *testing.T) {
	store := core.NewMemoryStore()
	ledger := newTestLedger(t, store)
	agg := core.NewAggregationService(store)
	ctx := context.Background()

	item := mustCreateItem(t, ledger, "Bulk", "1.00", 0, 0)
	for i := 0; i < core.MaxRecentLimit+20; i++ {
		if _, _, err := ledger.ApplyMovement(ctx, core.ApplyMovementInput{ItemID: item.ID, Kind: core.Inbound, Quantity: 1}); err != nil {
			t.Fatalf("ApplyMovement failed: %v", err)
		}
	}
	recent, err := agg.RecentMovements(ctx, 10_000)
	if err != nil {
		t.Fatalf("RecentMovements failed: %v", err)
	}
	if len(recent) != core.MaxRecentLimit {
		t.Errorf("got %d movements, want %d", len(recent), core.MaxRecentLimit)
	}
}

func TestDashboard(t *testing.T) {
	store := core.NewMemoryStore()
	ledger := newTestLedger(t, store, core.WithClock(steppingClock()))
	agg := core.NewAggregationService(store)
	ctx := context.Background()

	low := mustCreateItem(t, ledger, "Low", "2.00", 2, 5)
	mustCreateItem(t, ledger, "Plenty", "1.50", 40, 5)
	retired := mustCreateItem(t, ledger, "Retired", "10.00", 1, 5)
	if _, err := ledger.DeactivateItem(ctx, retired.ID); err != nil {
		t.Fatalf("DeactivateItem failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, _, err := ledger.ApplyMovement(ctx, core.ApplyMovementInput{ItemID: low.ID, Kind: core.Adjustment, Quantity: 1}); err != nil {
			t.Fatalf("ApplyMovement failed: %v", err)
		}
	}

	summary, err := agg.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if summary.ActiveItemCount != 2 {
		t.Errorf("active = %d, want 2", summary.ActiveItemCount)
	}
	if summary.LowStockCount != 0 || len(summary.LowStockItems) != 0 {
		t.Errorf("low stock = %+v, want none once Low reached 6 > 5", summary.LowStockItems)
	}
	// 6 × 2.00 + 40 × 1.50
	if !summary.TotalValue.Equal(decimal.RequireFromString("72.00")) {
		t.Errorf("total = %s, want 72.00", summary.TotalValue)
	}
	if len(summary.RecentMovements) != core.DashboardRecentLimit {
		t.Errorf("recent = %d, want %d", len(summary.RecentMovements), core.DashboardRecentLimit)
	}
}
