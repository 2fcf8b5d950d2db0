// Package config loads server configuration from the environment and
// wires the service together.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsi-mlops/mldata/pkg/mldata"
	"github.com/tsi-mlops/mldata/pkg/mldata/inference"
	memoryrepo "github.com/tsi-mlops/mldata/pkg/mldata/repo/memory"
	postgresrepo "github.com/tsi-mlops/mldata/pkg/mldata/repo/postgres"
	fsstorage "github.com/tsi-mlops/mldata/pkg/mldata/storage/fs"
	memorystorage "github.com/tsi-mlops/mldata/pkg/mldata/storage/memory"
	s3storage "github.com/tsi-mlops/mldata/pkg/mldata/storage/s3"
)

// ServerConfig is the full environment-driven configuration.
//
// STORAGE_TYPE selects the blob backend for both stores: "memory",
// "fs", or "s3". DATABASE_URL empty or "memory" selects the in-memory
// repository.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	DatabaseURL string `env:"DATABASE_URL" env-default:""`

	StorageType string `env:"STORAGE_TYPE" env-default:"memory"`
	FSBaseDir   string `env:"FS_BASE_DIR" env-default:"./data"`

	S3 S3Config

	// Detection service endpoint; empty disables inference.
	InferenceURL string `env:"INFERENCE_URL" env-default:""`
}

// S3Config holds the shared S3 settings plus the two bucket names.
type S3Config struct {
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:""`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	CreateBuckets   bool   `env:"AWS_S3_CREATE_BUCKETS" env-default:"false"`

	DatasetBucket string `env:"DATASET_S3_BUCKET" env-default:"dataset-bucket"`
	ModelBucket   string `env:"MLMODEL_S3_BUCKET" env-default:"mlmodel-bucket"`
}

// Load reads the configuration from the environment.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.StorageType {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	if c.DatabaseURL != "" && c.DatabaseURL != "memory" &&
		!strings.HasPrefix(c.DatabaseURL, "postgres://") &&
		!strings.HasPrefix(c.DatabaseURL, "postgresql://") {
		return fmt.Errorf("unsupported DATABASE_URL format (use 'memory' or 'postgresql://...')")
	}

	return nil
}

// UsesPostgres reports whether the configuration selects the postgres
// repository.
func (c *ServerConfig) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// BuildRepository creates the configured Repository. The returned pool
// is nil for the in-memory repository; callers own closing it.
func (c *ServerConfig) BuildRepository(ctx context.Context) (mldata.Repository, *pgxpool.Pool, error) {
	if !c.UsesPostgres() {
		return memoryrepo.New(), nil, nil
	}

	pool, err := pgxpool.New(ctx, c.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	return postgresrepo.NewWithPool(pool), pool, nil
}

// BuildBlobStores creates one BlobStore per store name.
func (c *ServerConfig) BuildBlobStores() (map[string]mldata.BlobStore, error) {
	stores := make(map[string]mldata.BlobStore)

	switch c.StorageType {
	case "memory":
		stores[mldata.StoreDataset] = memorystorage.New()
		stores[mldata.StoreModels] = memorystorage.New()

	case "fs":
		for name, subdir := range map[string]string{
			mldata.StoreDataset: "dataset",
			mldata.StoreModels:  "models",
		} {
			backend, err := fsstorage.New(fsstorage.Config{
				BaseDir: c.FSBaseDir + "/" + subdir,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to build fs store %q: %w", name, err)
			}
			stores[name] = backend
		}

	case "s3":
		for name, bucket := range map[string]string{
			mldata.StoreDataset: c.S3.DatasetBucket,
			mldata.StoreModels:  c.S3.ModelBucket,
		} {
			backend, err := s3storage.New(s3storage.Config{
				Region:                 c.S3.Region,
				Bucket:                 bucket,
				AccessKeyID:            c.S3.AccessKeyID,
				SecretAccessKey:        c.S3.SecretAccessKey,
				Endpoint:               c.S3.Endpoint,
				UsePathStyle:           c.S3.UsePathStyle,
				CreateBucketIfNotExist: c.S3.CreateBuckets,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to build s3 store %q: %w", name, err)
			}
			stores[name] = backend
		}

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.StorageType)
	}

	return stores, nil
}

// BuildDetector creates the configured inference Detector.
func (c *ServerConfig) BuildDetector() mldata.Detector {
	if c.InferenceURL == "" {
		return inference.NewNoopDetector()
	}
	return inference.NewHTTPDetector(c.InferenceURL)
}

// BuildService assembles a Service from the configuration. It also
// returns the repository and blob stores for components that need direct
// access (auth, maintenance tooling), plus the pgx pool when postgres is
// configured.
func (c *ServerConfig) BuildService(ctx context.Context) (mldata.Service, mldata.Repository, map[string]mldata.BlobStore, *pgxpool.Pool, error) {
	repo, pool, err := c.BuildRepository(ctx)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to build repository: %w", err)
	}

	stores, err := c.BuildBlobStores()
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nil, nil, nil, fmt.Errorf("failed to build blob stores: %w", err)
	}

	options := []mldata.Option{
		mldata.WithRepository(repo),
		mldata.WithDetector(c.BuildDetector()),
	}
	for name, store := range stores {
		options = append(options, mldata.WithBlobStore(name, store))
	}

	svc, err := mldata.New(options...)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, nil, nil, nil, err
	}

	return svc, repo, stores, pool, nil
}
