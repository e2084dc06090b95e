// app is the one-shot inventory CLI.
//
// Usage: go run ./cmd/app <command> [args]
//
//	go run ./cmd/app token <actor> [role]   prints a signed API token
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/user"
	"time"

	"inventory-ledger/internal/adapters/cli"
	webAdapter "inventory-ledger/internal/adapters/web"
	"inventory-ledger/internal/app"
	"inventory-ledger/internal/config"
	"inventory-ledger/internal/core"
	"inventory-ledger/internal/db"
	"inventory-ledger/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, cli.Usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if os.Args[1] == "token" {
		if len(os.Args) < 3 {
			log.Fatal("Usage: app token <actor> [role]")
		}
		role := ""
		if len(os.Args) > 3 {
			role = os.Args[3]
		}
		token, err := webAdapter.IssueToken(cfg.JWTSecret, os.Args[2], role, 12*time.Hour)
		if err != nil {
			log.Fatalf("token: %v", err)
		}
		fmt.Println(token)
		return
	}

	// Keep CLI output clean: only warnings and errors reach stderr.
	zl, err := logger.New(cfg.Env, "warn")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	store, closeStore, err := db.OpenStore(ctx, cfg, zl)
	if err != nil {
		log.Fatalf("Unable to open store: %v", err)
	}
	defer closeStore()

	ledger := core.NewLedgerEngine(store, zl, core.WithMaxAttempts(cfg.Ledger.MaxAttempts))
	svc := app.NewAppService(ledger, core.NewAggregationService(store))

	if err := cli.Run(ctx, svc, currentActor(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", core.Reason(err))
		closeStore()
		os.Exit(1)
	}
}

// currentActor identifies the operator for movements booked from the shell.
func currentActor() string {
	if a := os.Getenv("LEDGER_ACTOR"); a != "" {
		return a
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "cli"
}
