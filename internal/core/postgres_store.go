package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SQLSTATE codes that indicate a transient race rather than a logical error.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

const selectItemColumns = `
	SELECT id, name, unit_price, quantity, reorder_threshold, is_active, created_at, updated_at
	FROM items`

const selectMovementColumns = `
	SELECT id, item_id, movement_type, quantity,
	       COALESCE(reference, ''), COALESCE(notes, ''), COALESCE(created_by, ''), created_at
	FROM stock_movements`

// PostgresStore keeps items and the movement log in PostgreSQL.
// Each movement runs in its own transaction holding a row lock on the item
// (SELECT ... FOR UPDATE), so writers on one item queue on that row while
// other items proceed in parallel.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var it Item
	if err := row.Scan(&it.ID, &it.Name, &it.UnitPrice, &it.Quantity, &it.ReorderThreshold,
		&it.IsActive, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

func scanMovement(row rowScanner) (*MovementRecord, error) {
	var m MovementRecord
	var kind string
	if err := row.Scan(&m.ID, &m.ItemID, &kind, &m.Quantity,
		&m.Reference, &m.Notes, &m.Actor, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Kind = MovementKind(kind)
	return &m, nil
}

func collectMovements(rows pgx.Rows) ([]MovementRecord, error) {
	defer rows.Close()
	out := []MovementRecord{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock movements: %w", err)
	}
	return out, nil
}

// classify turns serialization failures and deadlocks into ConcurrencyConflict.
func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected) {
		return conflict(err, "%s raced with a concurrent writer", op)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (s *PostgresStore) CreateItem(ctx context.Context, item Item, opening *MovementRecord) (*Item, *MovementRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := scanItem(tx.QueryRow(ctx, `
		INSERT INTO items (name, unit_price, quantity, reorder_threshold, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, name, unit_price, quantity, reorder_threshold, is_active, created_at, updated_at
	`, item.Name, item.UnitPrice, item.Quantity, item.ReorderThreshold, item.IsActive, item.CreatedAt, item.UpdatedAt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert item: %w", err)
	}

	var record *MovementRecord
	if opening != nil {
		rec := *opening
		rec.ItemID = created.ID
		if err := insertMovement(ctx, tx, &rec); err != nil {
			return nil, nil, fmt.Errorf("failed to insert opening movement: %w", err)
		}
		record = &rec
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit item: %w", err)
	}
	return created, record, nil
}

// insertMovement appends rec to the log and fills in its ID.
func insertMovement(ctx context.Context, tx pgx.Tx, rec *MovementRecord) error {
	return tx.QueryRow(ctx, `
		INSERT INTO stock_movements (item_id, movement_type, quantity, reference, notes, created_by, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7)
		RETURNING id
	`, rec.ItemID, string(rec.Kind), rec.Quantity, rec.Reference, rec.Notes, rec.Actor, rec.CreatedAt,
	).Scan(&rec.ID)
}

func (s *PostgresStore) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	item, err := scanItem(s.pool.QueryRow(ctx, selectItemColumns+" WHERE id = $1", itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itemNotFound(itemID)
		}
		return nil, fmt.Errorf("failed to fetch item %d: %w", itemID, err)
	}
	return item, nil
}

func (s *PostgresStore) SetItemActive(ctx context.Context, itemID int64, active bool) (*Item, error) {
	item, err := scanItem(s.pool.QueryRow(ctx, `
		UPDATE items SET is_active = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, name, unit_price, quantity, reorder_threshold, is_active, created_at, updated_at
	`, active, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, itemNotFound(itemID)
		}
		return nil, fmt.Errorf("failed to update item %d: %w", itemID, err)
	}
	return item, nil
}

func (s *PostgresStore) ApplyToItem(ctx context.Context, itemID int64, apply ApplyFunc) (*MovementRecord, *Item, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the item row; concurrent movements on the same item wait here.
	item, err := scanItem(tx.QueryRow(ctx, selectItemColumns+" WHERE id = $1 FOR UPDATE", itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, itemNotFound(itemID)
		}
		return nil, nil, classify(err, "lock item")
	}

	rec, err := apply(item)
	if err != nil {
		return nil, nil, err
	}
	record := *rec
	record.ItemID = itemID

	_, err = tx.Exec(ctx, `
		UPDATE items SET quantity = $1, updated_at = $2
		WHERE id = $3
	`, item.Quantity, item.UpdatedAt, itemID)
	if err != nil {
		return nil, nil, classify(err, "update item quantity")
	}

	if err := insertMovement(ctx, tx, &record); err != nil {
		return nil, nil, classify(err, "insert stock movement")
	}

	// Single commit: quantity and log entry land together or not at all.
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, classify(err, "commit stock movement")
	}
	return &record, item, nil
}

func (s *PostgresStore) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	var conditions []string
	var args []any
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = true")
	}
	if filter.LowStockOnly {
		conditions = append(conditions, "quantity <= reorder_threshold")
	}
	if filter.NameContains != "" {
		args = append(args, "%"+escapeLike(filter.NameContains)+"%")
		conditions = append(conditions, fmt.Sprintf(`name ILIKE $%d ESCAPE '\'`, len(args)))
	}
	query := selectItemColumns
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *PostgresStore) RecentMovements(ctx context.Context, limit int) ([]MovementRecord, error) {
	if limit <= 0 {
		return []MovementRecord{}, nil
	}
	rows, err := s.pool.Query(ctx, selectMovementColumns+`
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent movements: %w", err)
	}
	return collectMovements(rows)
}

func (s *PostgresStore) ItemMovements(ctx context.Context, itemID int64, limit int) ([]MovementRecord, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	query := selectMovementColumns + " WHERE item_id = $1 ORDER BY created_at DESC, id DESC"
	args := []any{itemID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements for item %d: %w", itemID, err)
	}
	return collectMovements(rows)
}

func (s *PostgresStore) ItemLedger(ctx context.Context, itemID int64) (*Item, []MovementRecord, error) {
	// REPEATABLE READ gives both queries the same snapshot.
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	item, err := scanItem(tx.QueryRow(ctx, selectItemColumns+" WHERE id = $1", itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, itemNotFound(itemID)
		}
		return nil, nil, fmt.Errorf("failed to fetch item %d: %w", itemID, err)
	}
	rows, err := tx.Query(ctx, selectMovementColumns+" WHERE item_id = $1 ORDER BY id", itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query movements for item %d: %w", itemID, err)
	}
	history, err := collectMovements(rows)
	if err != nil {
		return nil, nil, err
	}
	return item, history, nil
}

// InventoryValue sums quantity × unit_price over active items in NUMERIC,
// so no rounding happens outside the database's exact arithmetic.
func (s *PostgresStore) InventoryValue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity * unit_price), 0)
		FROM items
		WHERE is_active = true
	`).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute inventory value: %w", err)
	}
	return total, nil
}
