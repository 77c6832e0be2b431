package schema

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gaborage/go-datasource/cache"
	"github.com/gaborage/go-datasource/database/types"
	"github.com/gaborage/go-datasource/logger"
)

// tablesKey is appended to the key prefix for the cached table list. The leading
// character cannot start an unquoted identifier, so it never collides with a table entry.
const tablesKey = "#tables"

// CachedCollection decorates a SchemaCollection with a metadata cache. Entries are
// CBOR-encoded under keyPrefix+table. Cache failures are logged and fall through to
// the wrapped collection.
type CachedCollection struct {
	inner     types.SchemaCollection
	cache     cache.Cache
	keyPrefix string
	ttl       time.Duration
	log       logger.Logger
}

// KeyPrefix returns the key prefix of one datasource's entries. The name is stored with
// its length so no datasource's prefix is a prefix of another's ("main" vs "main_x").
func KeyPrefix(prefix, datasource string) string {
	return prefix + strconv.Itoa(len(datasource)) + ":" + datasource + ":"
}

// NewCached wraps inner. keyPrefix is usually built with KeyPrefix; ttl zero caches
// without expiration. log may be nil.
func NewCached(inner types.SchemaCollection, c cache.Cache, keyPrefix string, ttl time.Duration, log logger.Logger) *CachedCollection {
	return &CachedCollection{inner: inner, cache: c, keyPrefix: keyPrefix, ttl: ttl, log: log}
}

// CacheKey returns the cache key used for table.
func (c *CachedCollection) CacheKey(table string) string {
	return c.keyPrefix + table
}

// Inner returns the wrapped collection.
func (c *CachedCollection) Inner() types.SchemaCollection {
	return c.inner
}

// ListTables returns the cached table list, loading it on a miss.
func (c *CachedCollection) ListTables(ctx context.Context) ([]string, error) {
	key := c.keyPrefix + tablesKey
	if tables, ok := load[[]string](ctx, c, key); ok {
		return tables, nil
	}
	tables, err := c.inner.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, tables)
	return tables, nil
}

// Describe returns the cached schema of table, loading it on a miss.
// Not-found results are not cached.
func (c *CachedCollection) Describe(ctx context.Context, table string) (*types.TableSchema, error) {
	key := c.CacheKey(table)
	if schema, ok := load[*types.TableSchema](ctx, c, key); ok && schema != nil {
		return schema, nil
	}
	schema, err := c.inner.Describe(ctx, table)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, schema)
	return schema, nil
}

// ClearTable drops the cached entry of one table.
func (c *CachedCollection) ClearTable(ctx context.Context, table string) error {
	return c.cache.Delete(ctx, c.CacheKey(table))
}

// Clear drops every entry under the key prefix and returns how many were removed.
func (c *CachedCollection) Clear(ctx context.Context) (int, error) {
	return c.cache.DeletePrefix(ctx, c.keyPrefix)
}

func load[T any](ctx context.Context, c *CachedCollection, key string) (T, bool) {
	var zero T
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.warn(err, key, "Metadata cache read failed")
		}
		return zero, false
	}
	v, err := cache.Unmarshal[T](data)
	if err != nil {
		c.warn(err, key, "Discarding undecodable metadata cache entry")
		_ = c.cache.Delete(ctx, key)
		return zero, false
	}
	return v, true
}

func (c *CachedCollection) store(ctx context.Context, key string, v any) {
	data, err := cache.Marshal(v)
	if err != nil {
		c.warn(err, key, "Metadata cache encode failed")
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.warn(err, key, "Metadata cache write failed")
	}
}

func (c *CachedCollection) warn(err error, key, msg string) {
	if c.log == nil {
		return
	}
	c.log.Warn().Err(err).Str("key", key).Msg(msg)
}

var _ types.SchemaCollection = (*CachedCollection)(nil)
