package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-datasource/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now)), clock
}

func TestSetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestValuesAreCopied(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'y'
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestExpiration(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, c.Set(ctx, "forever", []byte("2"), 0))

	clock.Advance(time.Second)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, cache.ErrNotFound)
	assert.Equal(t, 1, c.Len(), "expired entry purged on read")

	got, err := c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), got)
}

func TestNegativeTTL(t *testing.T) {
	c, _ := newTestCache(t)
	assert.ErrorIs(t, c.Set(context.Background(), "k", nil, -time.Second), cache.ErrInvalidTTL)
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestDeletePrefix(t *testing.T) {
	c, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "main_users", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "main_orders", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "main_stale", []byte("3"), time.Second))
	require.NoError(t, c.Set(ctx, "reports_users", []byte("4"), 0))
	clock.Advance(2 * time.Second)

	n, err := c.DeletePrefix(ctx, "main_")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	_, err = c.Get(ctx, "reports_users")
	assert.NoError(t, err)
}

func TestClose(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Health(ctx))
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Close(), cache.ErrClosed)
	assert.ErrorIs(t, c.Health(ctx), cache.ErrClosed)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), cache.ErrClosed)
	assert.ErrorIs(t, c.Delete(ctx, "k"), cache.ErrClosed)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, cache.ErrClosed)
	_, err = c.DeletePrefix(ctx, "")
	assert.ErrorIs(t, err, cache.ErrClosed)
	assert.Zero(t, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			for range 100 {
				_ = c.Set(ctx, key, []byte{byte(i)}, time.Minute)
				_, _ = c.Get(ctx, key)
				_, _ = c.DeletePrefix(ctx, "nope")
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 4)
}
