// Package testing provides an in-memory cache.Cache with failure injection and operation
// counters, plus assertions, for testing code that caches table metadata without Redis.
//
//	mc := cachetest.NewMockCache().WithGetFailure(errors.New("unreachable"))
//	collection := schema.NewCached(inner, mc, "meta_", time.Minute, log)
//	// ... describe tables ...
//	cachetest.AssertOperationCount(t, mc, cachetest.OpSet, 1)
//
// For Redis semantics use cache/redis against miniredis.
package testing
