// Package tracking provides query logging for database sessions.
// It implements the default query logger with slow query detection, structured
// logging, OpenTelemetry spans and metrics, and a logging statement wrapper.
package tracking

import (
	"time"

	"github.com/gaborage/go-datasource/config"
)

const (
	// DefaultSlowQueryThreshold defines the default threshold for slow query detection
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	// DefaultMaxQueryLength defines the default maximum query length for logging
	DefaultMaxQueryLength = 1000
)

// Settings holds configuration for query tracking and logging.
type Settings struct {
	slowQueryThreshold time.Duration
	maxQueryLength     int
	logQueryParameters bool

	serverAddress string
	serverPort    int
	namespace     string
}

// NewSettings creates Settings populated from the provided datasource configuration.
// If cfg is nil or a numeric field is non-positive, DefaultSlowQueryThreshold and
// DefaultMaxQueryLength are used. Server address, port and database name feed span attributes.
func NewSettings(cfg *config.DatabaseConfig) Settings {
	settings := Settings{
		slowQueryThreshold: DefaultSlowQueryThreshold,
		maxQueryLength:     DefaultMaxQueryLength,
	}

	if cfg == nil {
		return settings
	}

	if cfg.Query.Slow.Threshold > 0 {
		settings.slowQueryThreshold = cfg.Query.Slow.Threshold
	}
	if cfg.Query.Log.MaxLength > 0 {
		settings.maxQueryLength = cfg.Query.Log.MaxLength
	}
	settings.logQueryParameters = cfg.Query.Log.Parameters

	settings.serverAddress = cfg.Host
	settings.serverPort = cfg.Port
	settings.namespace = cfg.Database
	if settings.namespace == "" {
		settings.namespace = cfg.Oracle.Service.Name
	}

	return settings
}

// SlowQueryThreshold returns the threshold for slow query detection
func (s Settings) SlowQueryThreshold() time.Duration {
	return s.slowQueryThreshold
}

// MaxQueryLength returns the maximum query length for logging
func (s Settings) MaxQueryLength() int {
	return s.maxQueryLength
}

// LogQueryParameters returns whether query parameters should be logged
func (s Settings) LogQueryParameters() bool {
	return s.logQueryParameters
}
