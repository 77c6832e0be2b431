package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-datasource/cache/memory"
	"github.com/gaborage/go-datasource/cache/redis"
	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database/postgresql"
	"github.com/gaborage/go-datasource/database/schema"
	"github.com/gaborage/go-datasource/database/types"
	"github.com/gaborage/go-datasource/logger"
)

const errUnsupportedDatabaseType = "unsupported database type"

func validPostgresConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Type:     config.PostgreSQL,
		Host:     "localhost",
		Port:     5432,
		Database: "app",
		Username: "app",
	}
}

// stubOpener hands out sqlmock pools and remembers them.
type stubOpener struct {
	calls int
	dbs   []*sql.DB
	err   error
}

func (s *stubOpener) open(_ context.Context, cfg *config.DatabaseConfig, _ logger.Logger) (*sql.DB, types.Dialect, error) {
	s.calls++
	if s.err != nil {
		return nil, nil, s.err
	}
	db, _, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	s.dbs = append(s.dbs, db)
	return db, postgresql.NewDialect(cfg), nil
}

func isClosed(db *sql.DB) bool {
	return db.PingContext(context.Background()) != nil
}

func TestValidateDatabaseTypeSuccess(t *testing.T) {
	for _, dbType := range []string{"postgresql", "oracle"} {
		t.Run(dbType, func(t *testing.T) {
			assert.NoError(t, ValidateDatabaseType(dbType))
		})
	}
}

func TestValidateDatabaseTypeFailure(t *testing.T) {
	tests := []struct {
		name   string
		dbType string
	}{
		{name: "unsupported_mysql", dbType: "mysql"},
		{name: "unsupported_sqlite", dbType: "sqlite"},
		{name: "empty", dbType: ""},
		{name: "case_sensitive", dbType: "PostgreSQL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseType(tt.dbType)
			require.Error(t, err)
			assert.Contains(t, err.Error(), errUnsupportedDatabaseType+": "+tt.dbType)
		})
	}
}

func TestSupportedDatabaseTypes(t *testing.T) {
	assert.Equal(t, []string{PostgreSQL, Oracle}, SupportedDatabaseTypes())
}

func TestOpenPoolRejectsUnknownVendor(t *testing.T) {
	_, _, err := OpenPool(context.Background(), &config.DatabaseConfig{Type: "mysql"}, logger.New("disabled", false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), errUnsupportedDatabaseType)
}

func TestOpenWithNilConfig(t *testing.T) {
	opener := &stubOpener{}
	_, err := openWith(context.Background(), opener.open, "main", nil, logger.New("disabled", false))
	require.Error(t, err)
	assert.True(t, config.IsNotConfigured(err))
	assert.Zero(t, opener.calls)
}

func TestOpenWithInvalidConfig(t *testing.T) {
	opener := &stubOpener{}
	cfg := validPostgresConfig()
	cfg.Host = ""

	_, err := openWith(context.Background(), opener.open, "main", cfg, logger.New("disabled", false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datasources.main.host")
	assert.Zero(t, opener.calls)
}

func TestOpenWithOpenerFailure(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	opener := &stubOpener{err: boom}

	_, err := openWith(context.Background(), opener.open, "main", validPostgresConfig(), logger.New("disabled", false))
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "datasource main")
}

func TestOpenWithOwnsPool(t *testing.T) {
	opener := &stubOpener{}
	cfg := validPostgresConfig()

	conn, err := openWith(context.Background(), opener.open, "main", cfg, logger.New("disabled", false))
	require.NoError(t, err)
	require.Len(t, opener.dbs, 1)

	assert.Equal(t, "main", conn.ConfigName())
	assert.Equal(t, types.PostgreSQL, conn.Vendor())
	assert.EqualValues(t, 25, conn.cfg.Pool.Max.Connections, "defaults applied to the session copy")
	assert.Zero(t, cfg.Pool.Max.Connections, "caller config untouched")
	assert.IsType(t, &schema.Collection{}, conn.SchemaCollection())

	assert.False(t, isClosed(opener.dbs[0]))
	require.NoError(t, conn.Close())
	assert.True(t, isClosed(opener.dbs[0]))
}

func TestOpenWithMemoryMetadataCache(t *testing.T) {
	opener := &stubOpener{}
	cfg := validPostgresConfig()
	cfg.Cache.Metadata = config.CacheMemory

	conn, err := openWith(context.Background(), opener.open, "main", cfg, logger.New("disabled", false))
	require.NoError(t, err)
	defer conn.Close()

	assert.IsType(t, &memory.Cache{}, conn.metaCache)
	cached, ok := conn.SchemaCollection().(*schema.CachedCollection)
	require.True(t, ok)
	assert.Equal(t, "dbmeta_4:main:users", cached.CacheKey("users"))
}

func TestOpenWithRedisMetadataCache(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	opener := &stubOpener{}
	cfg := validPostgresConfig()
	cfg.Cache.Metadata = config.CacheRedis
	cfg.Cache.Redis = config.RedisConfig{Host: mr.Host(), Port: port}

	conn, err := openWith(context.Background(), opener.open, "main", cfg, logger.New("disabled", false))
	require.NoError(t, err)

	client, ok := conn.metaCache.(*redis.Client)
	require.True(t, ok)
	require.NoError(t, client.Health(context.Background()))

	require.NoError(t, conn.Close())
	assert.Error(t, client.Health(context.Background()), "cache closed with the connection")
}

func TestOpenWithUnreachableRedisClosesPool(t *testing.T) {
	opener := &stubOpener{}
	cfg := validPostgresConfig()
	cfg.Cache.Metadata = config.CacheRedis
	cfg.Cache.Redis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

	_, err := openWith(context.Background(), opener.open, "main", cfg, logger.New("disabled", false))
	require.Error(t, err)
	require.Len(t, opener.dbs, 1)
	assert.True(t, isClosed(opener.dbs[0]))
}

func TestNewMetadataCacheDisabled(t *testing.T) {
	c, err := newMetadataCache(context.Background(), validPostgresConfig())
	require.NoError(t, err)
	assert.Nil(t, c)
}
