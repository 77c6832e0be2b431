package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConfigured marks an optional datasource or feature that was left out of the
// configuration. It is matched with errors.Is through any *ConfigError of that category.
var ErrNotConfigured = errors.New("not configured")

// Category groups configuration errors.
type Category string

const (
	CategoryMissing       Category = "missing"
	CategoryInvalid       Category = "invalid"
	CategoryNotConfigured Category = "not_configured"
	CategoryConnection    Category = "connection"
)

// ConfigError is a configuration problem together with what to do about it.
// Messages are lowercase so they compose inside wrapped errors.
//
//nolint:revive // exported as config.ConfigError
type ConfigError struct {
	Category Category
	Field    string // key path, e.g. "datasources.default.host"
	Message  string
	Action   string   // what the operator should change
	Details  []string // troubleshooting hints
	Err      error    // underlying cause, if any
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, 6)
	if e.Category != "" {
		parts = append(parts, "config_"+string(e.Category)+":")
	}
	for _, s := range []string{e.Field, e.Message, e.Action} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(e.Details) > 0 {
		parts = append(parts, strings.Join(e.Details, "; "))
	}
	return strings.Join(parts, " ")
}

// Unwrap exposes the cause, or ErrNotConfigured for the not_configured category.
func (e *ConfigError) Unwrap() error {
	if e.Err == nil && e.Category == CategoryNotConfigured {
		return ErrNotConfigured
	}
	return e.Err
}

// NewMissingFieldError reports a required key that has no value.
func NewMissingFieldError(field, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to config.yaml", envVar, yamlPath),
	}
}

// NewInvalidFieldError reports a value outside the accepted set.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{Category: CategoryInvalid, Field: field, Message: message}
	if len(validOptions) > 0 {
		err.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return err
}

// NewNotConfiguredError reports a datasource that is not declared.
func NewNotConfiguredError(feature, envVar, yamlPath string) *ConfigError {
	action := fmt.Sprintf("to enable: add %s to config.yaml", yamlPath)
	if envVar != "" {
		action = fmt.Sprintf("to enable: set %s env var or add %s to config.yaml", envVar, yamlPath)
	}
	return &ConfigError{
		Category: CategoryNotConfigured,
		Field:    feature,
		Message:  "(optional)",
		Action:   action,
	}
}

// NewConnectionError reports a configured server that could not be reached. cause stays
// reachable through errors.Is and errors.As.
func NewConnectionError(resource, message string, cause error, troubleshooting ...string) *ConfigError {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &ConfigError{
		Category: CategoryConnection,
		Field:    resource,
		Message:  message,
		Details:  troubleshooting,
		Err:      cause,
	}
}

// NewValidationError reports a value that fails a rule without a fixed option list.
func NewValidationError(field, message string) *ConfigError {
	return &ConfigError{Category: CategoryInvalid, Field: field, Message: message}
}

// IsNotConfigured reports whether err means a datasource or feature was left unconfigured.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// IsConnectionError reports whether err carries a connection ConfigError.
func IsConnectionError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce) && ce.Category == CategoryConnection
}
