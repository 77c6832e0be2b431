package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-datasource/database/internal/introspect"
	"github.com/gaborage/go-datasource/database/internal/sqllex"
	"github.com/gaborage/go-datasource/database/types"
)

// Dialect implements types.Dialect for Oracle 12c and later.
type Dialect struct{}

// NewDialect returns the Oracle dialect.
func NewDialect() *Dialect { return &Dialect{} }

var _ types.Dialect = (*Dialect)(nil)

func (d *Dialect) Vendor() types.Vendor { return types.Oracle }

func (d *Dialect) PlaceholderFormat() squirrel.PlaceholderFormat { return squirrel.Colon }

// QuoteIdentifier quotes each dot-separated part that needs it. Reserved words are
// upper-cased and quoted to match Oracle's default case; names with characters outside
// [A-Za-z0-9_$#] or a leading digit are quoted as written. Others stay unquoted.
func (d *Dialect) QuoteIdentifier(identifier string) string {
	trimmed := strings.TrimSpace(identifier)
	if strings.Contains(trimmed, ".") {
		parts := strings.Split(trimmed, ".")
		for i, part := range parts {
			parts[i] = d.QuoteIdentifier(part)
		}
		return strings.Join(parts, ".")
	}

	switch {
	case trimmed == "":
		return trimmed
	case len(trimmed) >= 2 && trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"':
		return trimmed
	case sqllex.IsOracleReservedWord(trimmed):
		return `"` + strings.ToUpper(trimmed) + `"`
	case needsQuoting(trimmed):
		return `"` + strings.ReplaceAll(trimmed, `"`, `""`) + `"`
	default:
		return trimmed
	}
}

func needsQuoting(identifier string) bool {
	if identifier[0] >= '0' && identifier[0] <= '9' {
		return true
	}
	for _, r := range identifier {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '$' || r == '#' {
			continue
		}
		return true
	}
	return false
}

// Paginate appends OFFSET ... ROWS FETCH NEXT ... ROWS ONLY.
func (d *Dialect) Paginate(query squirrel.SelectBuilder, limit, offset uint64) squirrel.SelectBuilder {
	parts := make([]string, 0, 2)
	if offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET %d ROWS", offset))
	}
	if limit > 0 {
		parts = append(parts, fmt.Sprintf("FETCH NEXT %d ROWS ONLY", limit))
	}
	if len(parts) == 0 {
		return query
	}
	return query.Suffix(strings.Join(parts, " "))
}

// BooleanValue maps booleans onto NUMBER(1).
func (d *Dialect) BooleanValue(v bool) any {
	if v {
		return 1
	}
	return 0
}

func (d *Dialect) SupportsSavepoints() bool { return true }

func (d *Dialect) SavepointSQL(name string) string { return "SAVEPOINT " + name }

func (d *Dialect) RollbackSavepointSQL(name string) string { return "ROLLBACK TO SAVEPOINT " + name }

// ReleaseSavepointSQL returns "": Oracle has no RELEASE SAVEPOINT.
func (d *Dialect) ReleaseSavepointSQL(string) string { return "" }

func (d *Dialect) SupportsDynamicConstraints() bool { return true }

const enabledForeignKeysQuery = `SELECT table_name, constraint_name
FROM user_constraints
WHERE constraint_type = 'R' AND status = 'ENABLED'
ORDER BY table_name, constraint_name`

// DisableConstraints disables every enabled foreign key owned by the current user. Release
// re-enables exactly those. ALTER TABLE is DDL, so Oracle commits any open transaction.
func (d *Dialect) DisableConstraints(ctx context.Context, conn types.Connection) (types.ConstraintGuard, error) {
	rows, err := introspect.Query(ctx, conn, enabledForeignKeysQuery, types.Params{})
	if err != nil {
		return nil, err
	}

	guard := &constraintGuard{conn: conn}
	for _, r := range rows {
		fk := foreignKeyRef{table: r.String("table_name"), name: r.String("constraint_name")}
		if err := exec(ctx, conn, fk.alter("DISABLE")); err != nil {
			if rerr := guard.Release(ctx); rerr != nil {
				return nil, errors.Join(err, rerr)
			}
			return nil, err
		}
		guard.disabled = append(guard.disabled, fk)
	}
	return guard, nil
}

type foreignKeyRef struct {
	table string
	name  string
}

func (fk foreignKeyRef) alter(action string) string {
	return fmt.Sprintf(`ALTER TABLE "%s" %s CONSTRAINT "%s"`,
		strings.ReplaceAll(fk.table, `"`, `""`), action, strings.ReplaceAll(fk.name, `"`, `""`))
}

type constraintGuard struct {
	conn     types.Connection
	disabled []foreignKeyRef
}

// Release re-enables every disabled constraint, attempting all of them even when some fail.
func (g *constraintGuard) Release(ctx context.Context) error {
	var errs []error
	for _, fk := range g.disabled {
		if err := exec(ctx, g.conn, fk.alter("ENABLE")); err != nil {
			errs = append(errs, fmt.Errorf("enable %s.%s: %w", fk.table, fk.name, err))
		}
	}
	g.disabled = nil
	return errors.Join(errs...)
}

func exec(ctx context.Context, conn types.Connection, query string) error {
	stmt, err := conn.Execute(ctx, query, types.Params{}, nil)
	if err != nil {
		return err
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close statement: %w", err)
	}
	return nil
}
