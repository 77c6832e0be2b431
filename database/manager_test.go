package database_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database"
	"github.com/gaborage/go-datasource/database/postgresql"
	"github.com/gaborage/go-datasource/database/schema"
	"github.com/gaborage/go-datasource/database/types"
	"github.com/gaborage/go-datasource/logger"
)

// poolRecorder is an Opener backed by sqlmock that remembers every pool it opened.
type poolRecorder struct {
	mu    sync.Mutex
	pools map[string][]*sql.DB
	err   error
	delay time.Duration
}

func newPoolRecorder() *poolRecorder {
	return &poolRecorder{pools: make(map[string][]*sql.DB)}
}

func (r *poolRecorder) open(_ context.Context, cfg *config.DatabaseConfig, _ logger.Logger) (*sql.DB, types.Dialect, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.err != nil {
		return nil, nil, r.err
	}
	db, _, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	r.mu.Lock()
	r.pools[cfg.Database] = append(r.pools[cfg.Database], db)
	r.mu.Unlock()
	return db, postgresql.NewDialect(cfg), nil
}

func (r *poolRecorder) opened(database string) []*sql.DB {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*sql.DB(nil), r.pools[database]...)
}

func poolClosed(db *sql.DB) bool {
	return db.PingContext(context.Background()) != nil
}

func managerConfig(names ...string) *config.Config {
	cfg := &config.Config{Datasources: make(map[string]config.DatabaseConfig, len(names))}
	for _, name := range names {
		cfg.Datasources[name] = config.DatabaseConfig{
			Type:     config.PostgreSQL,
			Host:     "localhost",
			Port:     5432,
			Database: name,
			Username: "app",
		}
	}
	return cfg
}

func newTestManager(t *testing.T, cfg *config.Config, opts database.ManagerOptions) *database.Manager {
	t.Helper()
	m := database.NewManager(cfg, logger.New("disabled", false), opts)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerReusesPoolForSameDatasource(t *testing.T) {
	rec := newPoolRecorder()
	m := newTestManager(t, managerConfig("main"), database.ManagerOptions{Opener: rec.open})
	ctx := context.Background()

	first, err := m.Connect(ctx, "main")
	require.NoError(t, err)
	second, err := m.Connect(ctx, "main")
	require.NoError(t, err)

	assert.NotSame(t, first, second, "each Connect pins its own session")
	assert.Len(t, rec.opened("main"), 1)
	assert.Equal(t, 1, m.Size())
	assert.Equal(t, "main", first.ConfigName())
	assert.Equal(t, types.PostgreSQL, first.Vendor())

	require.NoError(t, first.Close())
	require.NoError(t, second.Close())
	assert.False(t, poolClosed(rec.opened("main")[0]), "closing a session keeps the shared pool")
}

func TestManagerConcurrentConnectOpensOnce(t *testing.T) {
	rec := newPoolRecorder()
	rec.delay = 20 * time.Millisecond
	m := newTestManager(t, managerConfig("main"), database.ManagerOptions{Opener: rec.open})

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := m.Connect(context.Background(), "main")
			if err != nil {
				errs <- err
				return
			}
			errs <- conn.Close()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, rec.opened("main"), 1)
}

func TestManagerUnknownDatasource(t *testing.T) {
	rec := newPoolRecorder()
	m := newTestManager(t, managerConfig("main"), database.ManagerOptions{Opener: rec.open})

	_, err := m.Connect(context.Background(), "reporting")
	require.Error(t, err)
	assert.True(t, config.IsNotConfigured(err))
	assert.Equal(t, 0, m.Size())
}

func TestManagerInvalidDatasource(t *testing.T) {
	rec := newPoolRecorder()
	cfg := managerConfig("main")
	ds := cfg.Datasources["main"]
	ds.Username = ""
	cfg.Datasources["main"] = ds

	m := newTestManager(t, cfg, database.ManagerOptions{Opener: rec.open})
	_, err := m.Connect(context.Background(), "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datasources.main.username")
	assert.Empty(t, rec.opened("main"))
}

func TestManagerOpenerFailure(t *testing.T) {
	rec := newPoolRecorder()
	rec.err = errors.New("connection refused")
	m := newTestManager(t, managerConfig("main"), database.ManagerOptions{Opener: rec.open})

	_, err := m.Connect(context.Background(), "main")
	require.ErrorIs(t, err, rec.err)
	assert.Equal(t, 0, m.Size())
}

func TestManagerEvictsLeastRecentlyUsedIdlePool(t *testing.T) {
	rec := newPoolRecorder()
	m := newTestManager(t, managerConfig("a", "b", "c"), database.ManagerOptions{MaxSize: 2, Opener: rec.open})
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		conn, err := m.Connect(ctx, name)
		require.NoError(t, err)
		require.NoError(t, conn.Close())
	}

	// touch a so b becomes the eviction candidate
	conn, err := m.Connect(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	conn, err = m.Connect(ctx, "c")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	assert.Equal(t, 2, m.Size())
	assert.True(t, poolClosed(rec.opened("b")[0]))
	assert.False(t, poolClosed(rec.opened("a")[0]))
}

func TestManagerNeverEvictsPoolsWithSessions(t *testing.T) {
	rec := newPoolRecorder()
	m := newTestManager(t, managerConfig("a", "b"), database.ManagerOptions{MaxSize: 1, Opener: rec.open})
	ctx := context.Background()

	held, err := m.Connect(ctx, "a")
	require.NoError(t, err)

	other, err := m.Connect(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, 2, m.Size(), "limit is soft while sessions are checked out")
	assert.False(t, poolClosed(rec.opened("a")[0]))

	require.NoError(t, held.Close())
	require.NoError(t, other.Close())
}

func TestManagerClosesIdlePools(t *testing.T) {
	rec := newPoolRecorder()
	m := newTestManager(t, managerConfig("idle", "busy"), database.ManagerOptions{
		IdleTTL: 10 * time.Millisecond,
		Opener:  rec.open,
	})
	ctx := context.Background()

	conn, err := m.Connect(ctx, "idle")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	busy, err := m.Connect(ctx, "busy")
	require.NoError(t, err)
	defer busy.Close()

	m.StartCleanup(5 * time.Millisecond)
	m.StartCleanup(5 * time.Millisecond)
	defer m.StopCleanup()

	assert.Eventually(t, func() bool { return m.Size() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, poolClosed(rec.opened("idle")[0]))
	assert.False(t, poolClosed(rec.opened("busy")[0]))
}

func TestManagerClose(t *testing.T) {
	rec := newPoolRecorder()
	m := database.NewManager(managerConfig("a", "b"), logger.New("disabled", false), database.ManagerOptions{Opener: rec.open})
	ctx := context.Background()

	for _, name := range []string{"a", "b"} {
		conn, err := m.Connect(ctx, name)
		require.NoError(t, err)
		require.NoError(t, conn.Close())
	}

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 0, m.Size())
	assert.True(t, poolClosed(rec.opened("a")[0]))
	assert.True(t, poolClosed(rec.opened("b")[0]))

	_, err := m.Connect(ctx, "a")
	assert.ErrorIs(t, err, database.ErrManagerClosed)
}

func TestManagerSessionsShareMetadataCache(t *testing.T) {
	rec := newPoolRecorder()
	cfg := managerConfig("main")
	ds := cfg.Datasources["main"]
	ds.Cache.Metadata = config.CacheMemory
	cfg.Datasources["main"] = ds

	m := newTestManager(t, cfg, database.ManagerOptions{Opener: rec.open})
	conn, err := m.Connect(context.Background(), "main")
	require.NoError(t, err)
	defer conn.Close()

	cached, ok := conn.SchemaCollection().(*schema.CachedCollection)
	require.True(t, ok)
	assert.Equal(t, "dbmeta_4:main:orders", cached.CacheKey("orders"))
}

func TestManagerStats(t *testing.T) {
	rec := newPoolRecorder()
	m := newTestManager(t, managerConfig("main"), database.ManagerOptions{MaxSize: 4, IdleTTL: time.Minute, Opener: rec.open})

	conn, err := m.Connect(context.Background(), "main")
	require.NoError(t, err)

	stats := m.Stats()
	assert.Equal(t, 1, stats["open_pools"])
	assert.Equal(t, 4, stats["max_pools"])
	assert.Equal(t, 60, stats["idle_ttl_seconds"])

	pools, ok := stats["pools"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, pools, 1)
	assert.Equal(t, "main", pools[0]["datasource"])
	assert.Equal(t, config.PostgreSQL, pools[0]["type"])
	assert.Equal(t, 1, pools[0]["sessions"])

	require.NoError(t, conn.Close())
	pools = m.Stats()["pools"].([]map[string]any)
	assert.Equal(t, 0, pools[0]["sessions"])
}
