package logger

import (
	"context"
	"sync/atomic"
	"time"
)

type dbStatsKey struct{}

// DBStats accumulates the database work done under one context, typically one CLI run
// or one unit of work. It is safe for concurrent use.
type DBStats struct {
	ops     atomic.Int64
	elapsed atomic.Int64
}

// Operations returns how many statements were recorded.
func (s *DBStats) Operations() int64 {
	if s == nil {
		return 0
	}
	return s.ops.Load()
}

// Elapsed returns the summed statement time.
func (s *DBStats) Elapsed() time.Duration {
	if s == nil {
		return 0
	}
	return time.Duration(s.elapsed.Load())
}

// WithDBStats returns ctx carrying a fresh DBStats, and the stats themselves.
func WithDBStats(ctx context.Context) (context.Context, *DBStats) {
	s := &DBStats{}
	return context.WithValue(ctx, dbStatsKey{}, s), s
}

// DBStatsFrom returns the stats carried by ctx, or nil.
func DBStatsFrom(ctx context.Context) *DBStats {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(dbStatsKey{}).(*DBStats)
	return s
}

// RecordDBOperation adds one statement taking d to the stats in ctx, if any.
func RecordDBOperation(ctx context.Context, d time.Duration) {
	if s := DBStatsFrom(ctx); s != nil {
		s.ops.Add(1)
		s.elapsed.Add(int64(d))
	}
}
