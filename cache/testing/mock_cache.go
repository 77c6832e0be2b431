package testing

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-datasource/cache"
)

// Operation names accepted by OperationCount.
const (
	OpGet          = "Get"
	OpSet          = "Set"
	OpDelete       = "Delete"
	OpDeletePrefix = "DeletePrefix"
	OpHealth       = "Health"
	OpClose        = "Close"
)

// MockCache is a thread-safe cache.Cache kept in memory. Configured failures are
// returned before the store is touched.
type MockCache struct {
	mu      sync.Mutex
	entries map[string]mockEntry
	now     func() time.Time
	closed  atomic.Bool

	delay           time.Duration
	getErr          error
	setErr          error
	deleteErr       error
	deletePrefixErr error
	healthErr       error
	closeErr        error

	calls map[string]*atomic.Int64
}

type mockEntry struct {
	value   []byte
	expires time.Time // zero never expires
}

var _ cache.Cache = (*MockCache)(nil)

// NewMockCache returns an empty MockCache.
func NewMockCache() *MockCache {
	m := &MockCache{
		entries: make(map[string]mockEntry),
		now:     time.Now,
		calls:   make(map[string]*atomic.Int64),
	}
	for _, op := range []string{OpGet, OpSet, OpDelete, OpDeletePrefix, OpHealth, OpClose} {
		m.calls[op] = new(atomic.Int64)
	}
	return m
}

// WithClock replaces the clock used for expiry.
func (m *MockCache) WithClock(now func() time.Time) *MockCache {
	m.now = now
	return m
}

// WithDelay holds every operation for delay or until its context is done.
func (m *MockCache) WithDelay(delay time.Duration) *MockCache {
	m.delay = delay
	return m
}

func (m *MockCache) WithGetFailure(err error) *MockCache {
	m.getErr = err
	return m
}

func (m *MockCache) WithSetFailure(err error) *MockCache {
	m.setErr = err
	return m
}

func (m *MockCache) WithDeleteFailure(err error) *MockCache {
	m.deleteErr = err
	return m
}

func (m *MockCache) WithDeletePrefixFailure(err error) *MockCache {
	m.deletePrefixErr = err
	return m
}

func (m *MockCache) WithHealthFailure(err error) *MockCache {
	m.healthErr = err
	return m
}

func (m *MockCache) WithCloseFailure(err error) *MockCache {
	m.closeErr = err
	return m
}

// begin counts op and applies the delay, closed state and configured failure.
func (m *MockCache) begin(ctx context.Context, op string, failure error) error {
	m.calls[op].Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.closed.Load() {
		return cache.ErrClosed
	}
	return failure
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.begin(ctx, OpGet, m.getErr); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, cache.ErrNotFound
	}
	return slices.Clone(e.value), nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.begin(ctx, OpSet, m.setErr); err != nil {
		return err
	}
	if ttl < 0 {
		return cache.ErrInvalidTTL
	}
	e := mockEntry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if err := m.begin(ctx, OpDelete, m.deleteErr); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *MockCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := m.begin(ctx, OpDeletePrefix, m.deletePrefixErr); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (m *MockCache) Health(ctx context.Context) error {
	return m.begin(ctx, OpHealth, m.healthErr)
}

// Close drops every entry. A configured close failure leaves the cache open.
func (m *MockCache) Close() error {
	m.calls[OpClose].Add(1)
	if m.closeErr != nil {
		return m.closeErr
	}
	if !m.closed.CompareAndSwap(false, true) {
		return cache.ErrClosed
	}
	m.mu.Lock()
	clear(m.entries)
	m.mu.Unlock()
	return nil
}

// OperationCount returns how often op was called, failed calls included.
func (m *MockCache) OperationCount(op string) int64 {
	if n, ok := m.calls[op]; ok {
		return n.Load()
	}
	return 0
}

// ResetCounters zeroes every operation counter.
func (m *MockCache) ResetCounters() {
	for _, n := range m.calls {
		n.Store(0)
	}
}

func (m *MockCache) IsClosed() bool {
	return m.closed.Load()
}

// Has reports whether key is stored, ignoring expiry.
func (m *MockCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

// Keys returns the stored keys in sorted order, expired ones included.
func (m *MockCache) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Dump renders the contents for failure messages.
func (m *MockCache) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MockCache closed=%v\n", m.closed.Load())
	keys := m.Keys()
	if len(keys) == 0 {
		b.WriteString("  (empty)\n")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		e := m.entries[k]
		expires := "never"
		if !e.expires.IsZero() {
			expires = e.expires.Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "  %s: %d bytes (expires %s)\n", k, len(e.value), expires)
	}
	return b.String()
}
