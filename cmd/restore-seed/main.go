// restore-seed loads a small demo catalog. Opening quantities are booked as
// movements, so the seeded data reconciles like any other.
//
// Usage: go run ./cmd/restore-seed [-reset]
//
// -reset truncates items and stock_movements first (postgres only).
package main

import (
	"context"
	"flag"
	"log"

	"inventory-ledger/internal/config"
	"inventory-ledger/internal/core"
	"inventory-ledger/internal/db"
	"inventory-ledger/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type seedItem struct {
	name      string
	price     string
	opening   int64
	threshold int64
}

var catalog = []seedItem{
	{"M8 hex bolt (box of 100)", "12.40", 35, 10},
	{"M8 nylon lock nut (box of 100)", "8.90", 6, 10},
	{"Cordless drill 18V", "129.00", 4, 2},
	{"Safety goggles", "6.75", 48, 20},
	{"Cable ties 300mm (pack of 50)", "3.20", 0, 15},
	{"Wood glue 500ml", "7.15", 22, 8},
}

// seedMovements follow the opening balances, by catalog index.
var seedMovements = []struct {
	index     int
	kind      core.MovementKind
	qty       int64
	reference string
}{
	{0, core.Outbound, 12, "SO-1001"},
	{3, core.Outbound, 30, "SO-1002"},
	{4, core.Inbound, 50, "PO-2001"},
	{2, core.Outbound, 3, "SO-1003"},
	{5, core.Adjustment, 2, "stock count"},
}

func main() {
	reset := flag.Bool("reset", false, "truncate ledger tables before seeding (postgres only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	if *reset {
		if cfg.StoreBackend != config.BackendPostgres {
			zl.Fatal("-reset is only supported with STORE_BACKEND=postgres")
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			zl.Fatal("connect", zap.Error(err))
		}
		if _, err := pool.Exec(ctx, `TRUNCATE TABLE stock_movements, items RESTART IDENTITY CASCADE`); err != nil {
			zl.Fatal("failed to reset ledger tables", zap.Error(err))
		}
		pool.Close()
		zl.Info("ledger tables cleared")
	}

	store, closeStore, err := db.OpenStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("store", zap.Error(err))
	}
	defer closeStore()

	ledger := core.NewLedgerEngine(store, zl, core.WithMaxAttempts(cfg.Ledger.MaxAttempts))
	ids, err := seed(ctx, ledger)
	if err != nil {
		zl.Fatal("seed failed", zap.Error(err))
	}
	zl.Info("seed complete", zap.Int("items", len(ids)), zap.Int("movements", len(seedMovements)))
}

func seed(ctx context.Context, ledger core.LedgerEngine) ([]int64, error) {
	ids := make([]int64, 0, len(catalog))
	for _, s := range catalog {
		threshold := s.threshold
		item, err := ledger.CreateItem(ctx, core.NewItemInput{
			Name:             s.name,
			UnitPrice:        decimal.RequireFromString(s.price),
			ReorderThreshold: &threshold,
			OpeningQuantity:  s.opening,
			Actor:            "seed",
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, item.ID)
	}
	for _, m := range seedMovements {
		if _, _, err := ledger.ApplyMovement(ctx, core.ApplyMovementInput{
			ItemID:    ids[m.index],
			Kind:      m.kind,
			Quantity:  m.qty,
			Reference: m.reference,
			Actor:     "seed",
		}); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
