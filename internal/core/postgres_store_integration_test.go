package core_test

import (
	"context"
	"os"
	"testing"

	"inventory-ledger/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database; every test truncates the ledger tables.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `TRUNCATE TABLE stock_movements, items RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("Failed to reset test database (run cmd/migrate first): %v", err)
	}
	return pool
}

func TestPostgresStore_Suite(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) core.Store {
		return core.NewPostgresStore(setupTestDB(t))
	})
}

func TestPostgresStore_MovementLogIsAppendOnly(t *testing.T) {
	pool := setupTestDB(t)
	ledger := newTestLedger(t, core.NewPostgresStore(pool))
	ctx := context.Background()

	item := mustCreateItem(t, ledger, "Audited", "1.00", 3, 0)
	if _, err := pool.Exec(ctx, `UPDATE stock_movements SET quantity = 99 WHERE item_id = $1`, item.ID); err == nil {
		t.Errorf("expected UPDATE on stock_movements to be rejected")
	}
	if _, err := pool.Exec(ctx, `DELETE FROM stock_movements WHERE item_id = $1`, item.ID); err == nil {
		t.Errorf("expected DELETE on stock_movements to be rejected")
	}
	assertReconciled(t, ledger, item.ID)
}
