package config

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigErrorFormatting(t *testing.T) {
	err := NewMissingFieldError("datasources.default.host", "DATASOURCES_DEFAULT_HOST", "datasources.default.host")
	assert.Equal(t,
		"config_missing: datasources.default.host required set DATASOURCES_DEFAULT_HOST env var or add datasources.default.host to config.yaml",
		err.Error())

	invalid := NewInvalidFieldError("datasources.default.type", `invalid value "mysql"`, []string{"postgresql", "oracle"})
	assert.Equal(t,
		`config_invalid: datasources.default.type invalid value "mysql" must be one of: postgresql, oracle`,
		invalid.Error())

	notConfigured := NewNotConfiguredError("datasources.x", "", "datasources.x")
	assert.Equal(t, "config_not_configured: datasources.x (optional) to enable: add datasources.x to config.yaml", notConfigured.Error())
}

func TestIsNotConfigured(t *testing.T) {
	assert.False(t, IsNotConfigured(nil))
	assert.True(t, IsNotConfigured(ErrNotConfigured))
	assert.True(t, IsNotConfigured(fmt.Errorf("wrap: %w", NewNotConfiguredError("datasources.x", "X", "x"))))
	assert.False(t, IsNotConfigured(NewValidationError("log.level", "bad")))
	assert.False(t, IsNotConfigured(NewConnectionError("postgresql", "refused", nil)))
}

func TestConnectionErrorKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connection refused")
	err := fmt.Errorf("datasource main: %w",
		NewConnectionError("postgresql db:5432", "ping failed", cause, "check host and port", "check credentials"))

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsConnectionError(err))
	assert.False(t, IsConnectionError(cause))
	assert.Equal(t,
		"datasource main: config_connection: postgresql db:5432 ping failed: dial tcp 10.0.0.1:5432: connection refused check host and port; check credentials",
		err.Error())
}
