package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	dbMeterName = "go-datasource/database"

	metricDBCalls      = "db.client.calls"
	metricDBDuration   = "db.client.operation.duration"
	metricRowsAffected = "db.rows.affected"

	metricPoolActive = "db.connection.pool.active"
	metricPoolIdle   = "db.connection.pool.idle"
	metricPoolTotal  = "db.connection.pool.total"
	metricPoolWait   = "db.connection.pool.wait_count"

	attrDBSystem     = "db.system.name"
	attrDBOperation  = "db.operation.name"
	attrDBTable      = "db.collection.name"
	attrDBDatasource = "db.datasource"

	unknownTable = "unknown"
)

type dbInstruments struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	rows     metric.Int64Counter
}

var (
	instrumentsMu sync.Mutex
	instrumentsMP metric.MeterProvider
	instruments   *dbInstruments
)

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

// getInstruments returns the operation instruments for the current global meter provider,
// recreating them when the provider has been swapped.
func getInstruments() *dbInstruments {
	mp := otel.GetMeterProvider()

	instrumentsMu.Lock()
	defer instrumentsMu.Unlock()
	if instruments != nil && instrumentsMP == mp {
		return instruments
	}

	meter := mp.Meter(dbMeterName)
	inst := &dbInstruments{}
	var err error
	inst.calls, err = meter.Int64Counter(metricDBCalls,
		metric.WithDescription("Total number of database client calls"))
	logMetricError(metricDBCalls, err)

	inst.duration, err = meter.Float64Histogram(metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"))
	logMetricError(metricDBDuration, err)

	inst.rows, err = meter.Int64Counter(metricRowsAffected,
		metric.WithDescription("Number of rows affected by database operations"))
	logMetricError(metricRowsAffected, err)

	instruments, instrumentsMP = inst, mp
	return inst
}

// recordDBMetrics records the call counter, the duration histogram and, for successful
// writes, the rows-affected counter. sql.ErrNoRows does not count as an error.
func recordDBMetrics(ctx context.Context, tc *Context, query string, duration time.Duration, rowsAffected int64, err error) {
	inst := getInstruments()
	isError := err != nil && !errors.Is(err, sql.ErrNoRows)

	commonAttrs := []attribute.KeyValue{
		attribute.String(attrDBSystem, normalizeDBVendor(tc.Vendor)),
		attribute.String(attrDBOperation, extractDBOperation(query)),
		attribute.String(attrDBTable, extractTableName(query)),
		attribute.String(attrDBDatasource, tc.ConfigName),
	}

	if inst.calls != nil {
		counterAttrs := append(commonAttrs[:len(commonAttrs):len(commonAttrs)], attribute.Bool("error", isError))
		inst.calls.Add(ctx, 1, metric.WithAttributes(counterAttrs...))
	}
	if inst.duration != nil {
		inst.duration.Record(ctx, float64(duration.Nanoseconds())/1e6, metric.WithAttributes(commonAttrs...))
	}
	if inst.rows != nil && rowsAffected > 0 && !isError {
		inst.rows.Add(ctx, rowsAffected, metric.WithAttributes(commonAttrs...))
	}
}

var (
	selectTableRegex = regexp.MustCompile("(?i)FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	insertTableRegex = regexp.MustCompile("(?i)INSERT\\s+INTO\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	updateTableRegex = regexp.MustCompile("(?i)UPDATE\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")
	deleteTableRegex = regexp.MustCompile("(?i)DELETE\\s+FROM\\s+(?:[`\"']?\\w+[`\"']?\\.)?[`\"']?(\\w+)[`\"']?")

	tablePatterns = map[string]*regexp.Regexp{
		"select": selectTableRegex,
		"insert": insertTableRegex,
		"update": updateTableRegex,
		"delete": deleteTableRegex,
	}
)

// extractTableName returns the first table named by a DML statement, lowercased,
// or "unknown" when it cannot tell. Not a SQL parser; JOINs report the first table.
func extractTableName(query string) string {
	pattern, ok := tablePatterns[extractDBOperation(query)]
	if !ok {
		return unknownTable
	}
	if matches := pattern.FindStringSubmatch(query); len(matches) > 1 {
		return strings.ToLower(matches[1])
	}
	return unknownTable
}

// RegisterConnectionPoolMetrics registers observable gauges fed by stats, typically
// (*sql.DB).Stats. It returns a function that unregisters the callback.
//
// Gauges:
//   - db.connection.pool.active: connections in use
//   - db.connection.pool.idle: idle connections
//   - db.connection.pool.total: configured maximum
//   - db.connection.pool.wait_count: total waits for a free connection
func RegisterConnectionPoolMetrics(stats func() sql.DBStats, configName, vendor string) func() {
	noop := func() {}
	if stats == nil {
		return noop
	}

	meter := otel.GetMeterProvider().Meter(dbMeterName)
	attrs := metric.WithAttributes(
		attribute.String(attrDBSystem, normalizeDBVendor(vendor)),
		attribute.String(attrDBDatasource, configName),
	)

	active := createGauge(meter, metricPoolActive, "Number of active database connections")
	idle := createGauge(meter, metricPoolIdle, "Number of idle database connections")
	total := createGauge(meter, metricPoolTotal, "Maximum number of database connections configured")
	wait := createGauge(meter, metricPoolWait, "Total number of connections waited for")

	var observables []metric.Observable
	for _, g := range []metric.Int64ObservableGauge{active, idle, total, wait} {
		if g != nil {
			observables = append(observables, g)
		}
	}
	if len(observables) == 0 {
		return noop
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		observe(o, active, int64(s.InUse), attrs)
		observe(o, idle, int64(s.Idle), attrs)
		observe(o, total, int64(s.MaxOpenConnections), attrs)
		observe(o, wait, s.WaitCount, attrs)
		return nil
	}, observables...)
	if err != nil {
		logMetricError("pool_metrics_callback", err)
		return noop
	}

	return func() {
		if err := registration.Unregister(); err != nil {
			logMetricError("pool_metrics_unregister", err)
		}
	}
}

func createGauge(meter metric.Meter, name, description string) metric.Int64ObservableGauge {
	gauge, err := meter.Int64ObservableGauge(name, metric.WithDescription(description))
	logMetricError(name, err)
	return gauge
}

func observe(o metric.Observer, g metric.Int64ObservableGauge, v int64, opts ...metric.ObserveOption) {
	if g != nil {
		o.ObserveInt64(g, v, opts...)
	}
}
