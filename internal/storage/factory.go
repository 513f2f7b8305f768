package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/models"
)

// Open returns the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemoryStore(), nil
	case config.DriverSQLite, "":
		return NewSQLiteStore(cfg.DatabasePath)
	case config.DriverPostgres:
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres url is required: %w", models.ErrInvalidArgument)
		}
		return NewPostgresStore(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
	case config.DriverRedis:
		return NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	case config.DriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			return nil, fmt.Errorf("firestore project id is required: %w", models.ErrInvalidArgument)
		}
		return NewFirestoreStore(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q: %w", cfg.Driver, models.ErrInvalidArgument)
	}
}
