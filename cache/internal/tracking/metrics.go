// Package tracking records OpenTelemetry metrics for metadata cache backends.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	cacheMeterName = "go-datasource/cache"

	metricCacheOperationDuration = "cache.operation.duration"
	metricCacheHit               = "cache.hit"
	metricCacheMiss              = "cache.miss"

	attrCacheSystem    = "cache.system"
	attrCacheOperation = "cache.operation.name"
	attrErrorType      = "error.type"
)

// Backend identifiers reported as cache.system.
const (
	SystemMemory = "memory"
	SystemRedis  = "redis"
)

// Cache operation names
const (
	OpGet          = "get"
	OpSet          = "set"
	OpDelete       = "delete"
	OpDeletePrefix = "delete_prefix"
	OpHealth       = "ping"
)

type cacheInstruments struct {
	duration metric.Float64Histogram
	hits     metric.Int64Counter
	misses   metric.Int64Counter
}

var (
	instrumentsMu sync.Mutex
	instrumentsMP metric.MeterProvider
	instruments   *cacheInstruments
)

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize cache metric %s: %v\n", metricName, err)
	}
}

func getInstruments() *cacheInstruments {
	mp := otel.GetMeterProvider()

	instrumentsMu.Lock()
	defer instrumentsMu.Unlock()
	if instruments != nil && instrumentsMP == mp {
		return instruments
	}

	meter := mp.Meter(cacheMeterName)
	inst := &cacheInstruments{}
	var err error
	inst.duration, err = meter.Float64Histogram(metricCacheOperationDuration,
		metric.WithDescription("Duration of metadata cache operations"),
		metric.WithUnit("s"))
	logMetricError(metricCacheOperationDuration, err)

	inst.hits, err = meter.Int64Counter(metricCacheHit,
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"))
	logMetricError(metricCacheHit, err)

	inst.misses, err = meter.Int64Counter(metricCacheMiss,
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"))
	logMetricError(metricCacheMiss, err)

	instruments, instrumentsMP = inst, mp
	return inst
}

// RecordCacheOperation records the duration of one operation and, for gets, a hit or miss.
// A get that failed with an error other than a miss counts as neither.
func RecordCacheOperation(ctx context.Context, system, operation string, duration time.Duration, hit bool, err error) {
	inst := getInstruments()

	attrs := []attribute.KeyValue{
		attribute.String(attrCacheSystem, system),
		attribute.String(attrCacheOperation, operation),
	}
	if err != nil {
		attrs = append(attrs, attribute.String(attrErrorType, classifyError(err)))
	}

	if inst.duration != nil {
		inst.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}

	if operation != OpGet || err != nil {
		return
	}
	counter := inst.misses
	if hit {
		counter = inst.hits
	}
	if counter != nil {
		counter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func classifyError(err error) string {
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "closed"):
		return "closed"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "connect"):
		return "connection_error"
	default:
		return "error"
	}
}
