package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is read when Load is called without an explicit path and the file exists.
const DefaultFile = "config.yaml"

// Environment variables with these prefixes override file values.
// DATASOURCES_DEFAULT_HOST maps to datasources.default.host.
var envPrefixes = []string{"DATASOURCES_", "LOG_"}

type loadOptions struct {
	environ func() []string
}

// Option customizes Load.
type Option func(*loadOptions)

// WithEnviron replaces os.Environ as the source of environment overrides.
func WithEnviron(environ func() []string) Option {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. The YAML file at path (DefaultFile when path is empty and the file exists)
// 3. Default values (lowest priority)
func Load(path string, opts ...Option) (*Config, error) {
	o := loadOptions{environ: os.Environ}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadFile(k, path); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(".", env.Opt{
		EnvironFunc:   o.environ,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"log.level":  "info",
		"log.pretty": false,
	}
	return k.Load(confmap.Provider(defaults, "."), nil)
}

func loadFile(k *koanf.Koanf, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// transformEnv converts UPPER_CASE to lower.case for koanf and drops unrelated variables.
func transformEnv(key, value string) (string, any) {
	for _, prefix := range envPrefixes {
		if strings.HasPrefix(key, prefix) {
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		}
	}
	return "", nil
}

// Datasource returns a copy of the named datasource configuration.
func (c *Config) Datasource(name string) (DatabaseConfig, error) {
	if c == nil {
		return DatabaseConfig{}, NewNotConfiguredError("datasources."+name,
			envKey(name, "TYPE"), "datasources."+name+".type")
	}
	ds, ok := c.Datasources[name]
	if !ok {
		return DatabaseConfig{}, NewNotConfiguredError("datasources."+name,
			envKey(name, "TYPE"), "datasources."+name+".type")
	}
	return ds, nil
}

// DatasourceNames lists the configured datasource names in sorted order.
func (c *Config) DatasourceNames() []string {
	names := make([]string, 0, len(c.Datasources))
	for name := range c.Datasources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// String returns the raw value at a dot-separated key path, or "" when absent.
func (c *Config) String(path string) string {
	if c == nil || c.k == nil {
		return ""
	}
	return c.k.String(path)
}

func envKey(name, field string) string {
	return "DATASOURCES_" + strings.ToUpper(name) + "_" + field
}

// EnvVar returns the environment variable overriding the key path of datasource name,
// e.g. EnvVar("main", "pool.max.connections") is DATASOURCES_MAIN_POOL_MAX_CONNECTIONS.
func EnvVar(name, path string) string {
	return envKey(name, strings.ToUpper(strings.ReplaceAll(path, ".", "_")))
}
