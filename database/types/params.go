//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"maps"
	"slices"
	"strconv"

	"github.com/Masterminds/squirrel"
)

// Params holds values bound to a statement, either positionally or by name.
// The zero value binds nothing.
type Params struct {
	positional []any
	named      map[string]any
}

// Positional binds values to "?" placeholders in order.
func Positional(values ...any) Params {
	return Params{positional: slices.Clone(values)}
}

// Named binds values to ":name" placeholders.
func Named(values map[string]any) Params {
	return Params{named: maps.Clone(values)}
}

// IsNamed reports whether the params bind by name.
func (p Params) IsNamed() bool {
	return p.named != nil
}

// IsEmpty reports whether no values are bound.
func (p Params) IsEmpty() bool {
	return len(p.positional) == 0 && len(p.named) == 0
}

// Len returns the number of bound values.
func (p Params) Len() int {
	if p.named != nil {
		return len(p.named)
	}
	return len(p.positional)
}

// At returns the positional value at index i.
func (p Params) At(i int) (any, bool) {
	if i < 0 || i >= len(p.positional) {
		return nil, false
	}
	return p.positional[i], true
}

// Lookup returns the named value for name.
func (p Params) Lookup(name string) (any, bool) {
	v, ok := p.named[name]
	return v, ok
}

// Values returns a copy of the positional values.
func (p Params) Values() []any {
	return slices.Clone(p.positional)
}

// Names returns the bound names in sorted order.
func (p Params) Names() []string {
	return slices.Sorted(maps.Keys(p.named))
}

// TypeMap maps a parameter name, or a positional index rendered in decimal, to a type
// name understood by the type caster (for example "integer" or "datetime").
type TypeMap map[string]string

// Types builds a TypeMap for positional parameters: the i-th name applies to the i-th value.
// Empty names leave the value uncast.
func Types(names ...string) TypeMap {
	tm := make(TypeMap, len(names))
	for i, name := range names {
		if name != "" {
			tm[strconv.Itoa(i)] = name
		}
	}
	return tm
}

// ForIndex returns the type hint for the positional parameter i.
func (t TypeMap) ForIndex(i int) string {
	return t[strconv.Itoa(i)]
}

// ForName returns the type hint for the named parameter name.
func (t TypeMap) ForName(name string) string {
	return t[name]
}

// SQLSource is the input accepted by Connection.Prepare: RawSQL or a Builder.
type SQLSource interface {
	sqlSource()
}

// RawSQL is SQL text using "?" positional or ":name" named placeholders.
type RawSQL string

func (RawSQL) sqlSource() {}

// BuilderSource wraps a squirrel builder; its arguments are pre-bound on Prepare.
type BuilderSource struct {
	Sqlizer squirrel.Sqlizer
}

func (BuilderSource) sqlSource() {}

// Builder returns an SQLSource for a squirrel builder.
func Builder(b squirrel.Sqlizer) SQLSource {
	return BuilderSource{Sqlizer: b}
}
