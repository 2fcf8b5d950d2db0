// Command sweep reconciles blob store contents against metadata rows and
// prints a report of orphaned blobs and dangling rows. It is read-only
// and meant to run out-of-band, not on the request path.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/tsi-mlops/mldata/pkg/mldata/admin"
	"github.com/tsi-mlops/mldata/pkg/mldata/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Sweep failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	_, repo, stores, pool, err := cfg.BuildService(ctx)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	reports, err := admin.NewSweeper(repo, stores).Sweep(ctx)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(reports)
}
