package database

import (
	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database/internal/tracking"
	"github.com/gaborage/go-datasource/logger"
)

// QueryLogger is the default structured query logger: slow query warnings, truncated
// SQL, optional sanitized parameters, an OpenTelemetry span and db.client metrics per query.
type QueryLogger = tracking.QueryLogger

// Defaults applied when a datasource leaves the query settings empty.
const (
	DefaultSlowQueryThreshold = tracking.DefaultSlowQueryThreshold
	DefaultMaxQueryLength     = tracking.DefaultMaxQueryLength
)

// NewQueryLogger builds the default query logger for cfg, writing through log.
func NewQueryLogger(log logger.Logger, cfg *config.DatabaseConfig) *QueryLogger {
	return tracking.NewQueryLogger(log, tracking.NewSettings(cfg))
}
