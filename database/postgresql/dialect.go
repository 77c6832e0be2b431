package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database/types"
)

// Dialect implements types.Dialect for PostgreSQL.
type Dialect struct {
	constraints string
}

// NewDialect returns a dialect using the constraint mode from cfg ("deferred" when unset).
func NewDialect(cfg *config.DatabaseConfig) *Dialect {
	mode := config.ConstraintsDeferred
	if cfg != nil && cfg.PostgreSQL.Constraints != "" {
		mode = cfg.PostgreSQL.Constraints
	}
	return &Dialect{constraints: mode}
}

var _ types.Dialect = (*Dialect)(nil)

func (d *Dialect) Vendor() types.Vendor { return types.PostgreSQL }

func (d *Dialect) PlaceholderFormat() squirrel.PlaceholderFormat { return squirrel.Dollar }

// QuoteIdentifier double-quotes every dot-separated part of identifier. Parts that are
// already quoted are kept as they are.
func (d *Dialect) QuoteIdentifier(identifier string) string {
	parts := strings.Split(strings.TrimSpace(identifier), ".")
	quoted := make([]string, len(parts))
	for i, part := range parts {
		if len(part) >= 2 && part[0] == '"' && part[len(part)-1] == '"' {
			quoted[i] = part
			continue
		}
		quoted[i] = pgx.Identifier{part}.Sanitize()
	}
	return strings.Join(quoted, ".")
}

func (d *Dialect) Paginate(query squirrel.SelectBuilder, limit, offset uint64) squirrel.SelectBuilder {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

func (d *Dialect) BooleanValue(v bool) any { return v }

func (d *Dialect) SupportsSavepoints() bool { return true }

func (d *Dialect) SavepointSQL(name string) string { return "SAVEPOINT " + name }

func (d *Dialect) RollbackSavepointSQL(name string) string { return "ROLLBACK TO SAVEPOINT " + name }

func (d *Dialect) ReleaseSavepointSQL(name string) string { return "RELEASE SAVEPOINT " + name }

func (d *Dialect) SupportsDynamicConstraints() bool { return true }

// DisableConstraints suppresses constraint checks on the session behind conn.
//
// In deferred mode every deferrable constraint is deferred until Release switches them back
// to IMMEDIATE, which also validates the pending rows. Outside a transaction this has no
// effect. In replica mode triggers, including foreign key triggers, are skipped until Release
// restores the default replication role; this requires superuser rights.
func (d *Dialect) DisableConstraints(ctx context.Context, conn types.Connection) (types.ConstraintGuard, error) {
	disable, restore := "SET CONSTRAINTS ALL DEFERRED", "SET CONSTRAINTS ALL IMMEDIATE"
	if d.constraints == config.ConstraintsReplica {
		disable, restore = "SET session_replication_role = replica", "SET session_replication_role = DEFAULT"
	}
	if err := exec(ctx, conn, disable); err != nil {
		return nil, err
	}
	return &constraintGuard{conn: conn, restore: restore}, nil
}

type constraintGuard struct {
	conn    types.Connection
	restore string
}

func (g *constraintGuard) Release(ctx context.Context) error {
	return exec(ctx, g.conn, g.restore)
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
