package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/gaborage/go-datasource/cache"
)

// AssertCacheHit fails the test unless key can be read from c.
func AssertCacheHit(t *testing.T, c cache.Cache, key string) {
	t.Helper()
	if _, err := c.Get(context.Background(), key); err != nil {
		t.Errorf("expected cache hit for key %q, got error: %v", key, err)
	}
}

// AssertCacheMiss fails the test unless reading key from c returns cache.ErrNotFound.
func AssertCacheMiss(t *testing.T, c cache.Cache, key string) {
	t.Helper()
	if _, err := c.Get(context.Background(), key); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("expected cache miss (ErrNotFound) for key %q, got: %v", key, err)
	}
}

// AssertOperationCount fails the test unless op was called expected times.
func AssertOperationCount(t *testing.T, mock *MockCache, op string, expected int64) {
	t.Helper()
	if actual := mock.OperationCount(op); actual != expected {
		t.Errorf("expected %d %s operations, got %d", expected, op, actual)
	}
}

// AssertKeyExists checks storage directly, so expired entries still count.
func AssertKeyExists(t *testing.T, mock *MockCache, key string) {
	t.Helper()
	if !mock.Has(key) {
		t.Errorf("expected key %q in cache storage\n%s", key, mock.Dump())
	}
}

func AssertKeyNotExists(t *testing.T, mock *MockCache, key string) {
	t.Helper()
	if mock.Has(key) {
		t.Errorf("expected key %q to be absent from cache storage\n%s", key, mock.Dump())
	}
}

// AssertCacheKeys fails the test unless the stored keys are exactly keys, in sorted order.
func AssertCacheKeys(t *testing.T, mock *MockCache, keys ...string) {
	t.Helper()
	actual := mock.Keys()
	if len(actual) != len(keys) {
		t.Errorf("expected keys %v, got %v\n%s", keys, actual, mock.Dump())
		return
	}
	for i := range keys {
		if actual[i] != keys[i] {
			t.Errorf("expected keys %v, got %v\n%s", keys, actual, mock.Dump())
			return
		}
	}
}
