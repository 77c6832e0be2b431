package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	return out
}

func TestNewWithWriterWritesJSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", false)

	log.Info().
		Str("vendor", "postgresql").
		Int("port", 5432).
		Int64("rows", 7).
		Bool("logging", true).
		Dur("took", 15*time.Millisecond).
		Err(errors.New("boom")).
		Msg("query executed")

	line := decodeLine(t, &buf)
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "postgresql", line["vendor"])
	assert.EqualValues(t, 5432, line["port"])
	assert.EqualValues(t, 7, line["rows"])
	assert.Equal(t, true, line["logging"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "query executed", line["message"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", false)

	log.Debug().Msg("hidden")
	log.Info().Msg("hidden too")
	assert.Zero(t, buf.Len())

	log.Warn().Msgf("slow query (%s)", "250ms")
	line := decodeLine(t, &buf)
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "slow query (250ms)", line["message"])
}

func TestDisabledLevelProducesNothing(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "disabled", false)
	log.Error().Str("a", "b").Msg("nothing")
	assert.Zero(t, buf.Len())
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "verbose", false)
	log.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	log.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestWithFieldsMasksSensitiveValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", false).WithFields(map[string]any{
		"host":     "db.internal",
		"password": "hunter2",
	})
	log.Info().Str("connectionstring", "postgres://app:hunter2@db:5432/app").Msg("connected")

	line := decodeLine(t, &buf)
	assert.Equal(t, "db.internal", line["host"])
	assert.Equal(t, DefaultMaskValue, line["password"])
	assert.Equal(t, "postgres://app:***@db:5432/app", line["connectionstring"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestInterfaceMasksNestedConfig(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", false)
	log.Info().Interface("config", map[string]any{
		"type":     "oracle",
		"password": "tiger",
		"pool":     map[string]any{"max": 10},
	}).Msg("config loaded")

	line := decodeLine(t, &buf)
	cfg, ok := line["config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, DefaultMaskValue, cfg["password"])
	assert.Equal(t, "oracle", cfg["type"])
}

func TestWithContextWithoutZerologReturnsSameLogger(t *testing.T) {
	log := NewWithWriter(&bytes.Buffer{}, "info", false)
	assert.Same(t, log, log.WithContext(context.Background()))
	assert.Same(t, log, log.WithContext("not a context"))
}
