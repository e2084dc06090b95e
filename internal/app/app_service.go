package app

import (
	"context"
	"strings"

	"inventory-ledger/internal/core"

	"github.com/shopspring/decimal"
)

// DefaultHistoryLimit applies when a caller asks for history without a limit.
const DefaultHistoryLimit = 50

type appService struct {
	ledger  core.LedgerEngine
	reports core.AggregationService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(ledger core.LedgerEngine, reports core.AggregationService) ApplicationService {
	return &appService{
		ledger:  ledger,
		reports: reports,
	}
}

// RecordMovement parses the kind string and applies the movement.
func (s *appService) RecordMovement(ctx context.Context, req RecordMovementRequest) (*MovementResult, error) {
	kind, err := core.ParseMovementKind(req.Kind)
	if err != nil {
		return nil, err
	}
	rec, item, err := s.ledger.ApplyMovement(ctx, core.ApplyMovementInput{
		ItemID:    req.ItemID,
		Kind:      kind,
		Quantity:  req.Quantity,
		Reference: req.Reference,
		Notes:     req.Notes,
		Actor:     req.Actor,
	})
	if err != nil {
		return nil, err
	}
	return &MovementResult{Movement: rec, Item: item}, nil
}

// RegisterItem parses the price and registers the item with the ledger.
func (s *appService) RegisterItem(ctx context.Context, req RegisterItemRequest) (*ItemResult, error) {
	priceStr := strings.TrimSpace(req.UnitPrice)
	if priceStr == "" {
		priceStr = "0"
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, &core.LedgerError{Kind: core.ErrValidation, Reason: "unit price must be a decimal number, got " + req.UnitPrice}
	}
	item, err := s.ledger.CreateItem(ctx, core.NewItemInput{
		Name:             req.Name,
		UnitPrice:        price,
		ReorderThreshold: req.ReorderThreshold,
		OpeningQuantity:  req.OpeningQuantity,
		Actor:            req.Actor,
	})
	if err != nil {
		return nil, err
	}
	return &ItemResult{Item: item}, nil
}

func (s *appService) GetItem(ctx context.Context, itemID int64) (*ItemResult, error) {
	item, err := s.ledger.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &ItemResult{Item: item}, nil
}

func (s *appService) ListItems(ctx context.Context, req ListItemsRequest) (*ItemListResult, error) {
	items, err := s.ledger.ListItems(ctx, core.ItemFilter{
		ActiveOnly:   !req.IncludeInactive,
		LowStockOnly: req.LowStockOnly,
		NameContains: strings.TrimSpace(req.Search),
	})
	if err != nil {
		return nil, err
	}
	return &ItemListResult{Items: items}, nil
}

func (s *appService) DeactivateItem(ctx context.Context, itemID int64) (*ItemResult, error) {
	item, err := s.ledger.DeactivateItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &ItemResult{Item: item}, nil
}

func (s *appService) GetItemHistory(ctx context.Context, itemID int64, limit int) (*MovementListResult, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	movements, err := s.ledger.ItemMovements(ctx, itemID, limit)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{Movements: movements}, nil
}

// GetLowStock drains the low-stock sequence into a list for presentation.
func (s *appService) GetLowStock(ctx context.Context) (*ItemListResult, error) {
	seq, err := s.reports.LowStockItems(ctx)
	if err != nil {
		return nil, err
	}
	items := []core.Item{}
	for it := range seq {
		items = append(items, it)
	}
	return &ItemListResult{Items: items}, nil
}

func (s *appService) GetInventoryValue(ctx context.Context) (*InventoryValueResult, error) {
	total, err := s.reports.TotalInventoryValue(ctx)
	if err != nil {
		return nil, err
	}
	return &InventoryValueResult{TotalValue: total}, nil
}

func (s *appService) GetRecentMovements(ctx context.Context, limit int) (*MovementListResult, error) {
	movements, err := s.reports.RecentMovements(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &MovementListResult{Movements: movements}, nil
}

func (s *appService) GetDashboard(ctx context.Context) (*core.DashboardSummary, error) {
	return s.reports.Dashboard(ctx)
}

func (s *appService) ReconcileItem(ctx context.Context, itemID int64) (*ReconcileResult, error) {
	report, err := s.ledger.Reconcile(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return newReconcileResult([]core.ReconcileReport{*report}), nil
}

func (s *appService) ReconcileAll(ctx context.Context) (*ReconcileResult, error) {
	reports, err := s.ledger.ReconcileAll(ctx)
	if err != nil {
		return nil, err
	}
	return newReconcileResult(reports), nil
}

func newReconcileResult(reports []core.ReconcileReport) *ReconcileResult {
	res := &ReconcileResult{Reports: reports}
	for _, r := range reports {
		if !r.Consistent() {
			res.Drifted++
		}
	}
	return res
}
