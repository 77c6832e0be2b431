package types

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionalParams(t *testing.T) {
	values := []any{42, "alice"}
	p := Positional(values...)
	values[0] = 0

	assert.False(t, p.IsNamed())
	assert.Equal(t, 2, p.Len())
	v, ok := p.At(0)
	require.True(t, ok)
	assert.Equal(t, 42, v)
	_, ok = p.At(2)
	assert.False(t, ok)
}

func TestNamedParams(t *testing.T) {
	p := Named(map[string]any{"id": 1, "name": "bob"})

	assert.True(t, p.IsNamed())
	assert.Equal(t, []string{"id", "name"}, p.Names())
	v, ok := p.Lookup("name")
	require.True(t, ok)
	assert.Equal(t, "bob", v)
	_, ok = p.Lookup("missing")
	assert.False(t, ok)
}

func TestZeroParamsAreEmpty(t *testing.T) {
	var p Params
	assert.True(t, p.IsEmpty())
	assert.False(t, p.IsNamed())
	assert.Zero(t, p.Len())
}

func TestTypesIndexesPositionally(t *testing.T) {
	tm := Types("integer", "", "datetime")

	assert.Equal(t, "integer", tm.ForIndex(0))
	assert.Empty(t, tm.ForIndex(1))
	assert.Equal(t, "datetime", tm.ForIndex(2))
	assert.Len(t, tm, 2)
}

func TestSQLSourceVariants(t *testing.T) {
	var src SQLSource = RawSQL("SELECT 1")
	_, isRaw := src.(RawSQL)
	assert.True(t, isRaw)

	src = Builder(squirrel.Select("1"))
	b, ok := src.(BuilderSource)
	require.True(t, ok)
	assert.NotNil(t, b.Sqlizer)
}
