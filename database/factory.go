package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/gaborage/go-datasource/cache"
	"github.com/gaborage/go-datasource/cache/memory"
	"github.com/gaborage/go-datasource/cache/redis"
	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database/internal/tracking"
	"github.com/gaborage/go-datasource/database/oracle"
	"github.com/gaborage/go-datasource/database/postgresql"
	"github.com/gaborage/go-datasource/database/types"
	"github.com/gaborage/go-datasource/logger"
)

// Opener opens a pool for cfg and returns the dialect that drives it.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*sql.DB, types.Dialect, error)

// OpenPool opens a pool with the driver selected by cfg.Type.
func OpenPool(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*sql.DB, types.Dialect, error) {
	switch cfg.Type {
	case PostgreSQL:
		db, err := postgresql.Open(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return db, postgresql.NewDialect(cfg), nil
	case Oracle:
		db, err := oracle.Open(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return db, oracle.NewDialect(), nil
	default:
		return nil, nil, ValidateDatabaseType(cfg.Type)
	}
}

// Open validates cfg, opens a pool dedicated to the returned connection and pins one
// session from it. Closing the connection closes the pool and any metadata cache
// opened for it.
func Open(ctx context.Context, name string, cfg *config.DatabaseConfig, log logger.Logger, opts ...Option) (*Connection, error) {
	return openWith(ctx, OpenPool, name, cfg, log, opts...)
}

func openWith(ctx context.Context, opener Opener, name string, cfg *config.DatabaseConfig, log logger.Logger, opts ...Option) (*Connection, error) {
	if cfg == nil {
		return nil, fmt.Errorf("datasource %s: %w", name, config.NewNotConfiguredError("datasources."+name, "", "datasources."+name))
	}
	dsCfg := *cfg
	if err := config.ValidateDatabase(name, &dsCfg); err != nil {
		return nil, fmt.Errorf("datasource %s: %w", name, err)
	}

	db, dialect, err := opener(ctx, &dsCfg, log)
	if err != nil {
		return nil, fmt.Errorf("datasource %s: %w", name, err)
	}

	metaCache, err := newMetadataCache(ctx, &dsCfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datasource %s: %w", name, err)
	}

	unregister := tracking.RegisterConnectionPoolMetrics(db.Stats, name, dsCfg.Type)
	release := func() error {
		unregister()
		var errs []error
		if metaCache != nil {
			errs = append(errs, metaCache.Close())
		}
		errs = append(errs, db.Close())
		return errors.Join(errs...)
	}

	base := []Option{WithLogger(log), withRelease(release)}
	if metaCache != nil {
		base = append(base, WithMetadataCache(metaCache))
	}
	conn, err := NewConnection(ctx, db, name, &dsCfg, dialect, append(base, opts...)...)
	if err != nil {
		_ = release()
		return nil, err
	}
	return conn, nil
}

// newMetadataCache builds the cache selected by cfg.Cache.Metadata, or nil when caching is off.
func newMetadataCache(ctx context.Context, cfg *config.DatabaseConfig) (cache.Cache, error) {
	switch cfg.Cache.Metadata {
	case "":
		return nil, nil
	case config.CacheMemory:
		return memory.New(), nil
	case config.CacheRedis:
		client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, config.NewInvalidFieldError("cache.metadata", fmt.Sprintf("invalid value %q", cfg.Cache.Metadata),
			[]string{config.CacheMemory, config.CacheRedis})
	}
}

// ValidateDatabaseType returns nil if dbType is one of the supported database types.
func ValidateDatabaseType(dbType string) error {
	supported := SupportedDatabaseTypes()
	if !slices.Contains(supported, dbType) {
		return fmt.Errorf("unsupported database type: %s (supported: %v)", dbType, supported)
	}
	return nil
}

// SupportedDatabaseTypes returns the vendors Open can connect to.
func SupportedDatabaseTypes() []string {
	return []string{PostgreSQL, Oracle}
}
