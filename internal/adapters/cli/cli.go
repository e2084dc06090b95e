package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"inventory-ledger/internal/app"
	"inventory-ledger/internal/core"
)

// Usage lists the available one-shot commands.
const Usage = `Available commands:
  items [search]                      list active items
  items-all [search]                  list items including deactivated ones
  add <name> <price> [qty] [reorder]  register an item with an opening quantity
  show <id>                           show one item
  move <id> <kind> <qty> [reference]  record a movement (kind: IN, OUT, ADJUSTMENT)
  history <id> [limit]                an item's movements, newest first
  deactivate <id>                     soft-delete an item
  low                                 items at or below their reorder threshold
  value                               total value of active stock
  recent [limit]                      most recent movements across all items
  dashboard                           overview as JSON
  reconcile [id]                      check cached quantities against the log`

// Run executes a one-shot CLI command, writing human-readable output to out.
// args is os.Args[1:]; the first element is the subcommand name. actor is
// recorded on any movement the command books.
func Run(ctx context.Context, svc app.ApplicationService, actor string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", Usage)
	}

	switch args[0] {
	case "items", "ls":
		result, err := svc.ListItems(ctx, app.ListItemsRequest{Search: optionalArg(args, 1)})
		if err != nil {
			return err
		}
		printItems(out, "ITEMS", result.Items)

	case "items-all":
		result, err := svc.ListItems(ctx, app.ListItemsRequest{Search: optionalArg(args, 1), IncludeInactive: true})
		if err != nil {
			return err
		}
		printItems(out, "ALL ITEMS", result.Items)

	case "add":
		if len(args) < 3 {
			return fmt.Errorf("usage: app add <name> <price> [qty] [reorder]")
		}
		req := app.RegisterItemRequest{Name: args[1], UnitPrice: args[2], Actor: actor}
		if len(args) > 3 {
			qty, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid opening quantity %q", args[3])
			}
			req.OpeningQuantity = qty
		}
		if len(args) > 4 {
			reorder, err := strconv.ParseInt(args[4], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid reorder threshold %q", args[4])
			}
			req.ReorderThreshold = &reorder
		}
		result, err := svc.RegisterItem(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Registered item %d: %s (on hand %d)\n", result.Item.ID, result.Item.Name, result.Item.Quantity)

	case "show":
		id, err := idArg(args, "show <id>")
		if err != nil {
			return err
		}
		result, err := svc.GetItem(ctx, id)
		if err != nil {
			return err
		}
		printItems(out, "ITEM", []core.Item{*result.Item})

	case "move", "mv":
		if len(args) < 4 {
			return fmt.Errorf("usage: app move <id> <kind> <qty> [reference]")
		}
		id, err := idArg(args, "move <id> <kind> <qty> [reference]")
		if err != nil {
			return err
		}
		qty, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[3])
		}
		result, err := svc.RecordMovement(ctx, app.RecordMovementRequest{
			ItemID:    id,
			Kind:      args[2],
			Quantity:  qty,
			Reference: optionalArg(args, 4),
			Actor:     actor,
		})
		if err != nil {
			return err
		}
		m := result.Movement
		fmt.Fprintf(out, "Movement %d: %s %d on item %d, on hand now %d\n",
			m.ID, m.Kind.Label(), m.Quantity, m.ItemID, result.Item.Quantity)

	case "history":
		id, err := idArg(args, "history <id> [limit]")
		if err != nil {
			return err
		}
		limit, err := intArg(args, 2, 0)
		if err != nil {
			return err
		}
		result, err := svc.GetItemHistory(ctx, id, limit)
		if err != nil {
			return err
		}
		printMovements(out, fmt.Sprintf("HISTORY OF ITEM %d", id), result.Movements)

	case "deactivate":
		id, err := idArg(args, "deactivate <id>")
		if err != nil {
			return err
		}
		result, err := svc.DeactivateItem(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Item %d (%s) deactivated.\n", result.Item.ID, result.Item.Name)

	case "low":
		result, err := svc.GetLowStock(ctx)
		if err != nil {
			return err
		}
		printItems(out, "LOW STOCK", result.Items)

	case "value":
		result, err := svc.GetInventoryValue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Total inventory value: %s\n", result.TotalValue.StringFixed(2))

	case "recent":
		limit, err := intArg(args, 1, 10)
		if err != nil {
			return err
		}
		result, err := svc.GetRecentMovements(ctx, limit)
		if err != nil {
			return err
		}
		printMovements(out, "RECENT MOVEMENTS", result.Movements)

	case "dashboard":
		summary, err := svc.GetDashboard(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)

	case "reconcile":
		var (
			result *app.ReconcileResult
			err    error
		)
		if len(args) > 1 {
			id, perr := idArg(args, "reconcile [id]")
			if perr != nil {
				return perr
			}
			result, err = svc.ReconcileItem(ctx, id)
		} else {
			result, err = svc.ReconcileAll(ctx)
		}
		if err != nil {
			return err
		}
		printReconcile(out, result)
		if !result.Consistent() {
			return fmt.Errorf("%d item(s) drifted from their movement log", result.Drifted)
		}

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], Usage)
	}
	return nil
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func idArg(args []string, usage string) (int64, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: app %s", usage)
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", args[1])
	}
	return id, nil
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[i])
	}
	return v, nil
}

func printItems(out io.Writer, title string, items []core.Item) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 78))
	fmt.Fprintf(out, "  %s\n", title)
	fmt.Fprintln(out, strings.Repeat("=", 78))
	fmt.Fprintf(out, "  %-6s %-32s %10s %8s %8s %6s\n", "ID", "NAME", "PRICE", "ON HAND", "REORDER", "ACTIVE")
	fmt.Fprintln(out, strings.Repeat("-", 78))
	for _, it := range items {
		flag := ""
		if it.IsLowStock() {
			flag = " !"
		}
		fmt.Fprintf(out, "  %-6d %-32s %10s %8d %8d %6t%s\n",
			it.ID, truncate(it.Name, 32), it.UnitPrice.StringFixed(2), it.Quantity, it.ReorderThreshold, it.IsActive, flag)
	}
	fmt.Fprintln(out, strings.Repeat("=", 78))
}

func printMovements(out io.Writer, title string, movements []core.MovementRecord) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 78))
	fmt.Fprintf(out, "  %s\n", title)
	fmt.Fprintln(out, strings.Repeat("=", 78))
	fmt.Fprintf(out, "  %-6s %-6s %-10s %6s %-20s %s\n", "ID", "ITEM", "KIND", "QTY", "WHEN", "REFERENCE")
	fmt.Fprintln(out, strings.Repeat("-", 78))
	for _, m := range movements {
		fmt.Fprintf(out, "  %-6d %-6d %-10s %6d %-20s %s\n",
			m.ID, m.ItemID, m.Kind.Label(), m.Quantity, m.CreatedAt.Format("2006-01-02 15:04:05"), m.Reference)
	}
	fmt.Fprintln(out, strings.Repeat("=", 78))
}

func printReconcile(out io.Writer, result *app.ReconcileResult) {
	fmt.Fprintf(out, "  %-6s %10s %10s %10s %8s\n", "ITEM", "CACHED", "LEDGER", "DRIFT", "RECORDS")
	for _, r := range result.Reports {
		fmt.Fprintf(out, "  %-6d %10d %10d %10d %8d\n", r.ItemID, r.CachedQuantity, r.LedgerQuantity, r.Drift(), r.MovementCount)
	}
	fmt.Fprintf(out, "%d item(s) checked, %d drifted.\n", len(result.Reports), result.Drifted)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
