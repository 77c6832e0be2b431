package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-datasource/cache"
	"github.com/gaborage/go-datasource/config"
)

// setupTestRedis creates a miniredis server and client for testing.
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := &config.RedisConfig{
		Host:     mr.Host(),
		Port:     mr.Server().Addr().Port,
		PoolSize: 4,
	}

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "localhost:6379", Address(&config.RedisConfig{}))
	assert.Equal(t, "cache:6380", Address(&config.RedisConfig{Host: "cache", Port: 6380}))
}

func TestNewClientConnectionFailed(t *testing.T) {
	mr := miniredis.RunT(t)
	port := mr.Server().Addr().Port
	mr.Close()

	client, err := NewClient(context.Background(), &config.RedisConfig{
		Host:        "127.0.0.1",
		Port:        port,
		DialTimeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Nil(t, client)

	var connErr *cache.ConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.Equal(t, "ping", connErr.Op)
}

func TestSetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "main_users", []byte("schema"), time.Minute))

	got, err := client.Get(ctx, "main_users")
	require.NoError(t, err)
	assert.Equal(t, []byte("schema"), got)
	assert.Equal(t, time.Minute, mr.TTL("main_users"))

	_, err = client.Get(ctx, "absent")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestSetWithoutTTL(t *testing.T) {
	client, mr := setupTestRedis(t)

	require.NoError(t, client.Set(context.Background(), "k", []byte("v"), 0))
	assert.Zero(t, mr.TTL("k"))
}

func TestExpiration(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, err := client.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestSetInvalidTTL(t *testing.T) {
	client, _ := setupTestRedis(t)
	assert.ErrorIs(t, client.Set(context.Background(), "k", nil, -time.Second), cache.ErrInvalidTTL)
}

func TestDelete(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("k", "v"))
	require.NoError(t, client.Delete(ctx, "k"))
	require.NoError(t, client.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestDeletePrefix(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"main_users", "main_orders", "main_[x]", "mainline", "reports_users"} {
		require.NoError(t, mr.Set(k, "v"))
	}

	n, err := client.DeletePrefix(ctx, "main_")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, mr.Exists("mainline"))
	assert.True(t, mr.Exists("reports_users"))

	n, err = client.DeletePrefix(ctx, "main_")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeletePrefixEscapesGlob(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("a*b_users", "v"))
	require.NoError(t, mr.Set("axb_users", "v"))

	n, err := client.DeletePrefix(ctx, "a*b_")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mr.Exists("axb_users"))
}

func TestEscapePattern(t *testing.T) {
	assert.Equal(t, `plain`, escapePattern("plain"))
	assert.Equal(t, `a\*b\?c\[d\]e\\f`, escapePattern(`a*b?c[d]e\f`))
}

func TestHealth(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	mr.SetError("LOADING")
	err := client.Health(ctx)
	require.Error(t, err)
	var connErr *cache.ConnectionError
	assert.ErrorAs(t, err, &connErr)
	mr.SetError("")
}

func TestGetServerError(t *testing.T) {
	client, mr := setupTestRedis(t)

	mr.SetError("ERR boom")
	defer mr.SetError("")

	_, err := client.Get(context.Background(), "k")
	require.Error(t, err)
	var opErr *cache.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "get", opErr.Op)
}

func TestClose(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Close(), cache.ErrClosed)

	_, err := client.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrClosed)
	assert.ErrorIs(t, client.Set(ctx, "k", nil, 0), cache.ErrClosed)
	assert.ErrorIs(t, client.Delete(ctx, "k"), cache.ErrClosed)
	_, err = client.DeletePrefix(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrClosed)
	assert.ErrorIs(t, client.Health(ctx), cache.ErrClosed)
}
