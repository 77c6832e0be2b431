package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	defaultMaxConnections     = 25
	defaultIdleConnections    = 2
	defaultIdleTime           = 5 * time.Minute
	defaultConnLifetime       = 30 * time.Minute
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultMaxQueryLength     = 1000
	defaultCachePrefix        = "dbmeta_"
	defaultCacheTTL           = time.Hour
	defaultRedisPort          = 6379
)

// Database type constants
const (
	PostgreSQL = "postgresql"
	Oracle     = "oracle"
)

// PostgreSQL constraint suppression modes
const (
	ConstraintsDeferred = "deferred"
	ConstraintsReplica  = "replica"
)

// Metadata cache backends
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg and applies defaults to every datasource in place.
func Validate(cfg *Config) error {
	if err := validateStruct("", cfg); err != nil {
		return err
	}

	for _, name := range cfg.DatasourceNames() {
		ds := cfg.Datasources[name]
		if err := ValidateDatabase(name, &ds); err != nil {
			return fmt.Errorf("datasource %s: %w", name, err)
		}
		cfg.Datasources[name] = ds
	}

	return nil
}

// ValidateDatabase checks a single datasource and applies pool, query and cache defaults.
// name is only used to build field paths in errors.
func ValidateDatabase(name string, cfg *DatabaseConfig) error {
	prefix := "datasources." + name + "."

	if err := validateStruct(prefix, cfg); err != nil {
		return err
	}

	if cfg.Type == "" {
		return NewMissingFieldError(prefix+"type", envKey(name, "TYPE"), prefix+"type")
	}

	if cfg.ConnectionString == "" {
		if err := validateDatabaseCoreFields(name, cfg); err != nil {
			return err
		}
	}

	if err := validateVendorSpecificFields(name, cfg); err != nil {
		return err
	}

	applyDatabasePoolDefaults(cfg)
	applyCacheDefaults(cfg)

	return nil
}

func validateStruct(prefix string, v any) error {
	err := structValidator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return fromValidationError(prefix, verrs[0])
	}
	return err
}

// fromValidationError converts the first failing rule into a ConfigError with a koanf-style field path.
func fromValidationError(prefix string, fe validator.FieldError) *ConfigError {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	field = prefix + strings.NewReplacer("[", ".", "]", "").Replace(field)

	switch fe.Tag() {
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "gte", "lte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param()), nil)
	default:
		return NewValidationError(field, fmt.Sprintf("failed %s validation", fe.Tag()))
	}
}

func validateDatabaseCoreFields(name string, cfg *DatabaseConfig) error {
	prefix := "datasources." + name + "."

	if cfg.Host == "" {
		return NewMissingFieldError(prefix+"host", envKey(name, "HOST"), prefix+"host")
	}
	if cfg.Port == 0 {
		return NewMissingFieldError(prefix+"port", envKey(name, "PORT"), prefix+"port")
	}
	if cfg.Type == PostgreSQL && cfg.Database == "" {
		return NewMissingFieldError(prefix+"database", envKey(name, "DATABASE"), prefix+"database")
	}
	if cfg.Username == "" {
		return NewMissingFieldError(prefix+"username", envKey(name, "USERNAME"), prefix+"username")
	}
	return nil
}

func validateVendorSpecificFields(name string, cfg *DatabaseConfig) error {
	prefix := "datasources." + name + "."

	switch cfg.Type {
	case Oracle:
		svc := cfg.Oracle.Service
		if svc.Name != "" && svc.SID != "" {
			return NewValidationError(prefix+"oracle.service", "name and sid are mutually exclusive")
		}
		if cfg.ConnectionString == "" && svc.Name == "" && svc.SID == "" && cfg.Database == "" {
			return NewInvalidFieldError(prefix+"oracle.service",
				"one of service name, sid or database is required",
				[]string{prefix + "oracle.service.name", prefix + "oracle.service.sid", prefix + "database"})
		}
	case PostgreSQL:
		if cfg.PostgreSQL.Constraints == "" {
			cfg.PostgreSQL.Constraints = ConstraintsDeferred
		}
	}

	if cfg.Cache.Metadata == CacheRedis && cfg.Cache.Redis.Host == "" {
		return NewMissingFieldError(prefix+"cache.redis.host", envKey(name, "CACHE_REDIS_HOST"), prefix+"cache.redis.host")
	}
	return nil
}

// applyDatabasePoolDefaults fills zero pool and query settings with production defaults.
func applyDatabasePoolDefaults(cfg *DatabaseConfig) {
	if cfg.Pool.Max.Connections == 0 {
		cfg.Pool.Max.Connections = defaultMaxConnections
	}
	if cfg.Pool.Idle.Connections == 0 {
		cfg.Pool.Idle.Connections = defaultIdleConnections
	}
	if cfg.Pool.Idle.Time == 0 {
		cfg.Pool.Idle.Time = defaultIdleTime
	}
	if cfg.Pool.Lifetime.Max == 0 {
		cfg.Pool.Lifetime.Max = defaultConnLifetime
	}
	if cfg.Query.Log.MaxLength == 0 {
		cfg.Query.Log.MaxLength = defaultMaxQueryLength
	}
	if cfg.Query.Slow.Threshold == 0 {
		cfg.Query.Slow.Threshold = defaultSlowQueryThreshold
	}
}

func applyCacheDefaults(cfg *DatabaseConfig) {
	if cfg.Cache.Metadata == "" {
		return
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = defaultCachePrefix
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = defaultCacheTTL
	}
	if cfg.Cache.Metadata == CacheRedis && cfg.Cache.Redis.Port == 0 {
		cfg.Cache.Redis.Port = defaultRedisPort
	}
}

// SupportedTypes lists the datasource types accepted by Validate.
func SupportedTypes() []string {
	return slices.Clone(supportedTypes)
}

var supportedTypes = []string{PostgreSQL, Oracle}
