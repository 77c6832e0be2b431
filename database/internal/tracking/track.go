package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-datasource/database/internal/sqllex"
	"github.com/gaborage/go-datasource/logger"
	correlation "github.com/gaborage/go-datasource/trace"
)

const (
	defaultOperation = "query"

	dbVendorPostgreSQL = "postgresql"
	dbVendorOracle     = "oracle"

	dbTracerName      = "go-datasource/database"
	maxDBQueryAttrLen = 2000
)

// Context carries what TrackDBOperation needs about the session that ran a query.
type Context struct {
	ConfigName string
	Vendor     string
	Logger     logger.Logger
	Settings   Settings
}

// TrackDBOperation records metrics, a client span and a log event for a completed
// database operation.
//
// It is a no-op if tc or its Logger is nil. Errors are logged at error level except
// sql.ErrNoRows, which is logged at debug. Successful operations slower than the
// configured threshold are logged as warnings. rowsAffected is 0 for reads.
func TrackDBOperation(ctx context.Context, tc *Context, query string, args []any, start time.Time, rowsAffected int64, err error) {
	if tc == nil || tc.Logger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	elapsed := time.Since(start)

	logger.RecordDBOperation(ctx, elapsed)

	createDBSpan(ctx, tc, query, start, err)
	recordDBMetrics(ctx, tc, query, elapsed, rowsAffected, err)

	fields := map[string]any{
		"datasource":  tc.ConfigName,
		"vendor":      tc.Vendor,
		"duration_ms": elapsed.Milliseconds(),
		"duration_ns": elapsed.Nanoseconds(),
		"query":       TruncateString(query, tc.Settings.MaxQueryLength()),
	}
	if rowsAffected > 0 {
		fields["rows"] = rowsAffected
	}
	if tc.Settings.LogQueryParameters() && len(args) > 0 {
		fields["args"] = SanitizeArgs(args, tc.Settings.MaxQueryLength())
	}
	for k, v := range correlation.LogFields(ctx) {
		fields[k] = v
	}
	logEvent := tc.Logger.WithContext(ctx).WithFields(fields)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		logEvent.Debug().Msg("Database operation returned no rows")
	case err != nil:
		logEvent.Error().Err(err).Msg("Database operation error")
	case elapsed > tc.Settings.SlowQueryThreshold():
		logEvent.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		logEvent.Debug().Msg("Database operation executed")
	}
}

// TruncateString truncates value to at most maxLen runes, ending in "..." when
// maxLen leaves room for it. maxLen <= 0 disables truncation.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SanitizeArgs returns a copy of args safe to log. Strings are truncated, byte slices
// become "<bytes len=N>" and nil stays nil. Everything else is formatted with %v.
func SanitizeArgs(args []any, maxLen int) []any {
	if len(args) == 0 {
		return nil
	}
	sanitized := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case nil:
			sanitized[i] = nil
		case string:
			sanitized[i] = TruncateString(v, maxLen)
		case []byte:
			sanitized[i] = fmt.Sprintf("<bytes len=%d>", len(v))
		default:
			sanitized[i] = TruncateString(fmt.Sprintf("%v", v), maxLen)
		}
	}
	return sanitized
}

// createDBSpan emits a client span starting at start and ending now.
func createDBSpan(ctx context.Context, tc *Context, query string, start time.Time, err error) {
	operation := extractDBOperation(query)

	_, span := otel.Tracer(dbTracerName).Start(ctx, "db."+operation,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	attrs := []attribute.KeyValue{
		semconv.DBSystemNameKey.String(normalizeDBVendor(tc.Vendor)),
		semconv.DBQueryText(TruncateString(query, maxDBQueryAttrLen)),
	}
	if operation != defaultOperation {
		attrs = append(attrs, semconv.DBOperationName(operation))
	}
	if table := extractTableName(query); table != unknownTable {
		attrs = append(attrs, semconv.DBCollectionName(table))
	}
	if ns := tc.Settings.namespace; ns != "" {
		attrs = append(attrs, semconv.DBNamespace(ns))
	}
	if tc.Settings.serverAddress != "" {
		attrs = append(attrs, semconv.ServerAddress(tc.Settings.serverAddress))
		if tc.Settings.serverPort > 0 {
			attrs = append(attrs, semconv.ServerPort(tc.Settings.serverPort))
		}
	}
	span.SetAttributes(attrs...)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// extractDBOperation returns the lowercased leading keyword for well-known statements
// and "query" for everything else.
func extractDBOperation(query string) string {
	switch op := sqllex.Operation(query); op {
	case "select", "insert", "update", "delete", "merge", "create", "drop", "alter", "truncate",
		"with", "begin", "commit", "rollback", "savepoint", "release", "set":
		return op
	default:
		return defaultOperation
	}
}

// normalizeDBVendor maps vendor aliases onto OpenTelemetry db.system.name values.
func normalizeDBVendor(vendor string) string {
	switch v := strings.ToLower(vendor); v {
	case "postgres", "pgx", dbVendorPostgreSQL:
		return semconv.DBSystemNamePostgreSQL.Value.AsString()
	case dbVendorOracle, "oracledb":
		return semconv.DBSystemNameOracleDB.Value.AsString()
	default:
		return v
	}
}
