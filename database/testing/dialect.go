package testing

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-datasource/database/types"
)

// FakeDialect is a configurable types.Dialect. Constraint toggling is simulated in
// memory and counted, so guard lifecycles can be asserted without vendor SQL.
type FakeDialect struct {
	Name               types.Vendor
	Format             squirrel.PlaceholderFormat
	Savepoints         bool
	DynamicConstraints bool

	// DisableErr fails DisableConstraints; ReleaseErr fails every guard Release.
	DisableErr error
	ReleaseErr error
	// Kinds maps driver errors onto kinds for ClassifyError.
	Kinds map[error]types.ErrorKind

	Tables  []string
	Schemas map[string]*types.TableSchema

	mu       sync.Mutex
	disabled int
	released int
}

var _ types.Dialect = (*FakeDialect)(nil)

// NewFakeDialect returns a dialect with "?" placeholders, savepoints and dynamic constraints.
func NewFakeDialect() *FakeDialect {
	return &FakeDialect{
		Name:               "fake",
		Format:             squirrel.Question,
		Savepoints:         true,
		DynamicConstraints: true,
	}
}

func (d *FakeDialect) Vendor() types.Vendor { return d.Name }

func (d *FakeDialect) PlaceholderFormat() squirrel.PlaceholderFormat {
	if d.Format == nil {
		return squirrel.Question
	}
	return d.Format
}

func (d *FakeDialect) QuoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (d *FakeDialect) Paginate(query squirrel.SelectBuilder, limit, offset uint64) squirrel.SelectBuilder {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

func (d *FakeDialect) BooleanValue(v bool) any { return v }

func (d *FakeDialect) SupportsSavepoints() bool { return d.Savepoints }

func (d *FakeDialect) SavepointSQL(name string) string { return "SAVEPOINT " + name }

func (d *FakeDialect) RollbackSavepointSQL(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (d *FakeDialect) ReleaseSavepointSQL(name string) string { return "RELEASE SAVEPOINT " + name }

func (d *FakeDialect) SupportsDynamicConstraints() bool { return d.DynamicConstraints }

func (d *FakeDialect) DisableConstraints(context.Context, types.Connection) (types.ConstraintGuard, error) {
	if d.DisableErr != nil {
		return nil, d.DisableErr
	}
	d.mu.Lock()
	d.disabled++
	d.mu.Unlock()
	return fakeGuard{d}, nil
}

// Disabled reports how many guards were acquired.
func (d *FakeDialect) Disabled() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disabled
}

// Released reports how many guards were released.
func (d *FakeDialect) Released() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

type fakeGuard struct{ d *FakeDialect }

func (g fakeGuard) Release(context.Context) error {
	g.d.mu.Lock()
	g.d.released++
	g.d.mu.Unlock()
	return g.d.ReleaseErr
}

func (d *FakeDialect) ListTables(context.Context, types.Connection) ([]string, error) {
	return append([]string(nil), d.Tables...), nil
}

func (d *FakeDialect) DescribeTable(_ context.Context, _ types.Connection, table string) (*types.TableSchema, error) {
	if s, ok := d.Schemas[table]; ok {
		return s, nil
	}
	return nil, types.ErrTableNotFound
}

func (d *FakeDialect) ClassifyError(err error) types.ErrorKind {
	for target, kind := range d.Kinds {
		if errors.Is(err, target) {
			return kind
		}
	}
	return types.KindUnknown
}
