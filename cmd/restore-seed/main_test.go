package main

import (
	"context"
	"testing"

	"inventory-ledger/internal/core"

	"go.uber.org/zap/zaptest"
)

func TestSeedReconciles(t *testing.T) {
	ledger := core.NewLedgerEngine(core.NewMemoryStore(), zaptest.NewLogger(t))
	ids, err := seed(context.Background(), ledger)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if len(ids) != len(catalog) {
		t.Fatalf("seeded %d items, want %d", len(ids), len(catalog))
	}
	reports, err := ledger.ReconcileAll(context.Background())
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	for _, r := range reports {
		if !r.Consistent() {
			t.Errorf("seeded item %d drifted", r.ItemID)
		}
	}
}
