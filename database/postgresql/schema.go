package postgresql

import (
	"context"
	"strings"

	"github.com/gaborage/go-datasource/database/internal/introspect"
	"github.com/gaborage/go-datasource/database/types"
)

const (
	listTablesQuery = `SELECT table_name
FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`

	describeColumnsQuery = `SELECT column_name, data_type, is_nullable, column_default,
       character_maximum_length, numeric_precision, numeric_scale, ordinal_position
FROM information_schema.columns
WHERE table_schema = COALESCE(NULLIF(:schema, ''), current_schema()) AND table_name = :table
ORDER BY ordinal_position`

	primaryKeyQuery = `SELECT a.attname AS column_name
FROM pg_index i
JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
WHERE i.indrelid = CAST(:relation AS regclass) AND i.indisprimary
ORDER BY array_position(i.indkey::smallint[], a.attnum)`

	foreignKeysQuery = `SELECT c.conname AS constraint_name, a.attname AS column_name,
       rc.relname AS referenced_table, af.attname AS referenced_column
FROM pg_constraint c
JOIN pg_class rc ON rc.oid = c.confrelid
CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, fattnum, ord)
JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
JOIN pg_attribute af ON af.attrelid = c.confrelid AND af.attnum = k.fattnum
WHERE c.conrelid = CAST(:relation AS regclass) AND c.contype = 'f'
ORDER BY c.conname, k.ord`
)

// ListTables returns the base tables of the current schema, sorted by name.
func (d *Dialect) ListTables(ctx context.Context, conn types.Connection) ([]string, error) {
	rows, err := introspect.Query(ctx, conn, listTablesQuery, types.Params{})
	if err != nil {
		return nil, err
	}
	tables := make([]string, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, r.String("table_name"))
	}
	return tables, nil
}

// DescribeTable reads columns from information_schema and keys from pg_index and
// pg_constraint. table may be schema-qualified; unquoted parts fold to lower case the
// way PostgreSQL folds unquoted identifiers.
func (d *Dialect) DescribeTable(ctx context.Context, conn types.Connection, table string) (*types.TableSchema, error) {
	schemaName, tableName := introspect.SplitQualifiedFunc(table, strings.ToLower)

	rows, err := introspect.Query(ctx, conn, describeColumnsQuery,
		types.Named(map[string]any{"schema": schemaName, "table": tableName}))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, introspect.NotFound(table)
	}

	ts := &types.TableSchema{Name: tableName, Columns: make([]types.ColumnSchema, 0, len(rows))}
	for _, r := range rows {
		ts.Columns = append(ts.Columns, types.ColumnSchema{
			Name:      r.String("column_name"),
			Type:      r.String("data_type"),
			Nullable:  r.Bool("is_nullable"),
			Default:   r.StringPtr("column_default"),
			Length:    r.Int64Ptr("character_maximum_length"),
			Precision: r.Int64Ptr("numeric_precision"),
			Scale:     r.Int64Ptr("numeric_scale"),
			Position:  r.Int("ordinal_position"),
		})
	}

	relation := d.QuoteIdentifier(tableName)
	if schemaName != "" {
		relation = d.QuoteIdentifier(schemaName) + "." + relation
	}
	byRelation := types.Named(map[string]any{"relation": relation})

	pkRows, err := introspect.Query(ctx, conn, primaryKeyQuery, byRelation)
	if err != nil {
		return nil, err
	}
	for _, r := range pkRows {
		ts.PrimaryKey = append(ts.PrimaryKey, r.String("column_name"))
	}

	fkRows, err := introspect.Query(ctx, conn, foreignKeysQuery, byRelation)
	if err != nil {
		return nil, err
	}
	ts.ForeignKeys = groupForeignKeys(fkRows)

	return ts, nil
}

// groupForeignKeys folds one-row-per-column results into one ForeignKey per constraint,
// keeping the order rows arrive in.
func groupForeignKeys(rows []introspect.Row) []types.ForeignKey {
	var fks []types.ForeignKey
	index := make(map[string]int)
	for _, r := range rows {
		name := r.String("constraint_name")
		i, ok := index[name]
		if !ok {
			fks = append(fks, types.ForeignKey{Name: name, ReferencedTable: r.String("referenced_table")})
			i = len(fks) - 1
			index[name] = i
		}
		fks[i].Columns = append(fks[i].Columns, r.String("column_name"))
		fks[i].ReferencedColumns = append(fks[i].ReferencedColumns, r.String("referenced_column"))
	}
	return fks
}
