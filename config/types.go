package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration: logging plus a set of named datasources.
// The koanf instance is kept for callers that need keys outside the typed structure.
type Config struct {
	Log         LogConfig                 `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
	Datasources map[string]DatabaseConfig `koanf:"datasources" json:"datasources" yaml:"datasources" mapstructure:"datasources" validate:"dive"`

	k *koanf.Koanf `json:"-" yaml:"-" mapstructure:"-"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// DatabaseConfig holds the settings of one named datasource.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" mapstructure:"type" validate:"omitempty,oneof=postgresql oracle"`
	Host     string `koanf:"host" json:"host" yaml:"host" mapstructure:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Database string `koanf:"database" json:"database" yaml:"database" mapstructure:"database"`
	Username string `koanf:"username" json:"username" yaml:"username" mapstructure:"username"`
	Password string `koanf:"password" json:"password" yaml:"password" mapstructure:"password"`

	ConnectionString string `koanf:"connectionstring" json:"connectionstring" yaml:"connectionstring" mapstructure:"connectionstring"`

	// LogQueries turns query logging on for every connection opened from this datasource.
	LogQueries bool `koanf:"logqueries" json:"logqueries" yaml:"logqueries" mapstructure:"logqueries"`

	Pool  PoolConfig  `koanf:"pool" json:"pool" yaml:"pool" mapstructure:"pool"`
	Query QueryConfig `koanf:"query" json:"query" yaml:"query" mapstructure:"query"`
	Cache CacheConfig `koanf:"cache" json:"cache" yaml:"cache" mapstructure:"cache"`

	PostgreSQL PostgreSQLConfig `koanf:"postgresql" json:"postgresql" yaml:"postgresql" mapstructure:"postgresql"`
	Oracle     OracleConfig     `koanf:"oracle" json:"oracle" yaml:"oracle" mapstructure:"oracle"`
}

// PoolConfig holds database/sql pool settings.
// Defaults applied by Validate:
//   - Max.Connections: 25
//   - Idle.Connections: 2
//   - Idle.Time: 5m
//   - Lifetime.Max: 30m
type PoolConfig struct {
	Max      PoolMaxConfig  `koanf:"max" json:"max" yaml:"max" mapstructure:"max"`
	Idle     PoolIdleConfig `koanf:"idle" json:"idle" yaml:"idle" mapstructure:"idle"`
	Lifetime LifetimeConfig `koanf:"lifetime" json:"lifetime" yaml:"lifetime" mapstructure:"lifetime"`
}

// PoolMaxConfig holds maximum connections settings.
type PoolMaxConfig struct {
	Connections int32 `koanf:"connections" json:"connections" yaml:"connections" mapstructure:"connections" validate:"gte=0"`
}

// PoolIdleConfig holds idle connections settings.
type PoolIdleConfig struct {
	Connections int32         `koanf:"connections" json:"connections" yaml:"connections" mapstructure:"connections" validate:"gte=0"`
	Time        time.Duration `koanf:"time" json:"time" yaml:"time" mapstructure:"time" validate:"gte=0"`
}

// LifetimeConfig holds the maximum reuse duration of a pooled connection.
type LifetimeConfig struct {
	Max time.Duration `koanf:"max" json:"max" yaml:"max" mapstructure:"max" validate:"gte=0"`
}

// QueryConfig holds settings related to query logging and slow query detection.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow" mapstructure:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log" mapstructure:"log"`
}

// SlowQueryConfig holds settings for slow query detection.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" mapstructure:"threshold" validate:"gte=0"`
	Enabled   bool          `koanf:"enabled" json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// QueryLogConfig holds settings for query logging.
type QueryLogConfig struct {
	// Parameters includes bound values in query logs. Off by default; values are sanitized.
	Parameters bool `koanf:"parameters" json:"parameters" yaml:"parameters" mapstructure:"parameters"`
	MaxLength  int  `koanf:"max" json:"max" yaml:"max" mapstructure:"max" validate:"gte=0"`
}

// CacheConfig controls caching of introspected table metadata.
type CacheConfig struct {
	// Metadata selects the cache backend: empty (no caching), "memory" or "redis".
	Metadata string        `koanf:"metadata" json:"metadata" yaml:"metadata" mapstructure:"metadata" validate:"omitempty,oneof=memory redis"`
	Prefix   string        `koanf:"prefix" json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	TTL      time.Duration `koanf:"ttl" json:"ttl" yaml:"ttl" mapstructure:"ttl" validate:"gte=0"`
	Redis    RedisConfig   `koanf:"redis" json:"redis" yaml:"redis" mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings for the metadata cache.
type RedisConfig struct {
	Host         string        `koanf:"host" json:"host" yaml:"host" mapstructure:"host"`
	Port         int           `koanf:"port" json:"port" yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Password     string        `koanf:"password" json:"password" yaml:"password" mapstructure:"password"`
	Database     int           `koanf:"database" json:"database" yaml:"database" mapstructure:"database" validate:"gte=0"`
	PoolSize     int           `koanf:"poolsize" json:"poolsize" yaml:"poolsize" mapstructure:"poolsize" validate:"gte=0"`
	DialTimeout  time.Duration `koanf:"dialtimeout" json:"dialtimeout" yaml:"dialtimeout" mapstructure:"dialtimeout"`
	ReadTimeout  time.Duration `koanf:"readtimeout" json:"readtimeout" yaml:"readtimeout" mapstructure:"readtimeout"`
	WriteTimeout time.Duration `koanf:"writetimeout" json:"writetimeout" yaml:"writetimeout" mapstructure:"writetimeout"`
}

// PostgreSQLConfig holds PostgreSQL-specific settings.
type PostgreSQLConfig struct {
	Schema string `koanf:"schema" json:"schema" yaml:"schema" mapstructure:"schema"`
	// Constraints selects how DisableConstraints suppresses checks: "deferred" (default) or "replica".
	Constraints string `koanf:"constraints" json:"constraints" yaml:"constraints" mapstructure:"constraints" validate:"omitempty,oneof=deferred replica"`
}

// OracleConfig holds Oracle-specific settings.
type OracleConfig struct {
	Service ServiceConfig `koanf:"service" json:"service" yaml:"service" mapstructure:"service"`
}

// ServiceConfig holds Oracle service connection settings. Name and SID are mutually exclusive.
type ServiceConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" mapstructure:"name"`
	SID  string `koanf:"sid" json:"sid" yaml:"sid" mapstructure:"sid"`
}
