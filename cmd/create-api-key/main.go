// Command create-api-key provisions an API credential and prints the
// key/secret pair. The secret is only shown once; the database stores a
// bcrypt hash.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/tsi-mlops/mldata/pkg/mldata"
	"github.com/tsi-mlops/mldata/pkg/mldata/auth"
	"github.com/tsi-mlops/mldata/pkg/mldata/config"
)

func main() {
	name := flag.String("name", "", "friendly name for the credential")
	flag.Parse()

	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: create-api-key -name <friendly-name>")
		os.Exit(2)
	}

	if err := run(*name); err != nil {
		slog.Error("Failed to create API key", "error", err)
		os.Exit(1)
	}
}

func run(name string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.UsesPostgres() {
		return fmt.Errorf("DATABASE_URL must point at postgres to provision credentials")
	}

	repo, pool, err := cfg.BuildRepository(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	apiKey, err := auth.GenerateToken(15)
	if err != nil {
		return err
	}
	apiSecret, err := auth.GenerateToken(24)
	if err != nil {
		return err
	}

	secretHash, err := auth.HashSecret(apiSecret)
	if err != nil {
		return err
	}

	cred := &mldata.Credential{
		ID:           uuid.New(),
		FriendlyName: name,
		APIKey:       apiKey,
		SecretHash:   secretHash,
	}
	if err := repo.CreateCredential(ctx, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	fmt.Printf("friendly_name: %s\napi_key:       %s\napi_secret:    %s\n", name, apiKey, apiSecret)
	fmt.Println("Store the secret now; it cannot be recovered later.")
	return nil
}
