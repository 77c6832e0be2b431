// Package redis implements cache.Cache on Redis so table metadata can be shared
// between processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaborage/go-datasource/cache"
	"github.com/gaborage/go-datasource/cache/internal/tracking"
	"github.com/gaborage/go-datasource/config"
)

const (
	defaultHost        = "localhost"
	defaultPort        = 6379
	defaultPingTimeout = 5 * time.Second
	scanBatch          = 500
)

// Client implements cache.Cache using Redis as the backend.
type Client struct {
	client  *redis.Client
	address string
	closed  atomic.Bool
}

// Address returns host:port for cfg, filling in localhost:6379 defaults.
func Address(cfg *config.RedisConfig) string {
	host, port := cfg.Host, cfg.Port
	if host == "" {
		host = defaultHost
	}
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// NewClient creates a Redis client and verifies the server answers PING.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	if cfg == nil {
		cfg = &config.RedisConfig{}
	}
	address := Address(cfg)

	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, cache.NewConnectionError("ping", address, err)
	}

	return &Client{client: client, address: address}, nil
}

// Get retrieves a value. Returns cache.ErrNotFound on a miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, cache.ErrClosed
	}

	start := time.Now()
	result, err := c.client.Get(ctx, key).Bytes()
	duration := time.Since(start)

	if errors.Is(err, redis.Nil) {
		tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpGet, duration, false, nil)
		return nil, cache.ErrNotFound
	}
	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpGet, duration, err == nil, err)

	if err != nil {
		return nil, cache.NewOperationError("get", key, err)
	}
	return result, nil
}

// Set stores a value. A zero ttl means no expiration.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}
	if ttl < 0 {
		return cache.ErrInvalidTTL
	}

	start := time.Now()
	err := c.client.Set(ctx, key, value, ttl).Err()
	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpSet, time.Since(start), false, err)

	if err != nil {
		return cache.NewOperationError("set", key, err)
	}
	return nil
}

// Delete removes a key. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	start := time.Now()
	err := c.client.Del(ctx, key).Err()
	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpDelete, time.Since(start), false, err)

	if err != nil {
		return cache.NewOperationError("delete", key, err)
	}
	return nil
}

// DeletePrefix walks the keyspace with SCAN and deletes matches in batches.
// Keys written concurrently with the walk may survive.
func (c *Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if c.closed.Load() {
		return 0, cache.ErrClosed
	}

	start := time.Now()
	removed, err := c.deletePrefix(ctx, prefix)
	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpDeletePrefix, time.Since(start), false, err)

	if err != nil {
		return removed, cache.NewOperationError("scan", prefix+"*", err)
	}
	return removed, nil
}

func (c *Client) deletePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := escapePattern(prefix) + "*"
	removed := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// escapePattern quotes glob metacharacters so prefix matches literally in SCAN MATCH.
func escapePattern(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix))
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	start := time.Now()
	err := c.client.Ping(ctx).Err()
	tracking.RecordCacheOperation(ctx, tracking.SystemRedis, tracking.OpHealth, time.Since(start), false, err)

	if err != nil {
		return cache.NewConnectionError("ping", c.address, err)
	}
	return nil
}

// Close closes the client. A second Close returns cache.ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("closing redis client: %w", err)
	}
	return nil
}

var _ cache.Cache = (*Client)(nil)
