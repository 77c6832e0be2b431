package oracle

import (
	"context"
	"strings"

	"github.com/gaborage/go-datasource/database/internal/introspect"
	"github.com/gaborage/go-datasource/database/types"
)

const (
	listTablesQuery = `SELECT table_name FROM user_tables ORDER BY table_name`

	describeColumnsQuery = `SELECT column_name, data_type, nullable, data_default,
       char_length, data_precision, data_scale, column_id
FROM all_tab_columns
WHERE owner = NVL(:owner, USER) AND table_name = :table_name
ORDER BY column_id`

	primaryKeyQuery = `SELECT cc.column_name
FROM all_constraints c
JOIN all_cons_columns cc ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
WHERE c.owner = NVL(:owner, USER) AND c.table_name = :table_name AND c.constraint_type = 'P'
ORDER BY cc.position`

	foreignKeysQuery = `SELECT c.constraint_name, cc.column_name,
       rc.table_name AS referenced_table, rcc.column_name AS referenced_column
FROM all_constraints c
JOIN all_cons_columns cc ON cc.owner = c.owner AND cc.constraint_name = c.constraint_name
JOIN all_constraints rc ON rc.owner = c.r_owner AND rc.constraint_name = c.r_constraint_name
JOIN all_cons_columns rcc ON rcc.owner = rc.owner AND rcc.constraint_name = rc.constraint_name
 AND rcc.position = cc.position
WHERE c.owner = NVL(:owner, USER) AND c.table_name = :table_name AND c.constraint_type = 'R'
ORDER BY c.constraint_name, cc.position`
)

// ListTables returns the tables owned by the current user.
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

// DescribeTable reads the data dictionary for table. Unquoted names are upper-cased the way
// Oracle stores them; an owner prefix selects another schema.
func (d *Dialect) DescribeTable(ctx context.Context, conn types.Connection, table string) (*types.TableSchema, error) {
	owner, name := introspect.SplitQualifiedFunc(table, strings.ToUpper)
	params := types.Named(map[string]any{"owner": owner, "table_name": name})

	rows, err := introspect.Query(ctx, conn, describeColumnsQuery, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, introspect.NotFound(table)
	}

	ts := &types.TableSchema{Name: name, Columns: make([]types.ColumnSchema, 0, len(rows))}
	for _, r := range rows {
		col := types.ColumnSchema{
			Name:      r.String("column_name"),
			Type:      r.String("data_type"),
			Nullable:  r.Bool("nullable"),
			Precision: r.Int64Ptr("data_precision"),
			Scale:     r.Int64Ptr("data_scale"),
			Position:  r.Int("column_id"),
		}
		if n := r.Int64Ptr("char_length"); n != nil && *n > 0 {
			col.Length = n
		}
		if def := r.StringPtr("data_default"); def != nil {
			trimmed := strings.TrimSpace(*def)
			col.Default = &trimmed
		}
		ts.Columns = append(ts.Columns, col)
	}

	pkRows, err := introspect.Query(ctx, conn, primaryKeyQuery, params)
	if err != nil {
		return nil, err
	}
	for _, r := range pkRows {
		ts.PrimaryKey = append(ts.PrimaryKey, r.String("column_name"))
	}

	fkRows, err := introspect.Query(ctx, conn, foreignKeysQuery, params)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	for _, r := range fkRows {
		cname := r.String("constraint_name")
		i, ok := index[cname]
		if !ok {
			ts.ForeignKeys = append(ts.ForeignKeys, types.ForeignKey{Name: cname, ReferencedTable: r.String("referenced_table")})
			i = len(ts.ForeignKeys) - 1
			index[cname] = i
		}
		ts.ForeignKeys[i].Columns = append(ts.ForeignKeys[i].Columns, r.String("column_name"))
		ts.ForeignKeys[i].ReferencedColumns = append(ts.ForeignKeys[i].ReferencedColumns, r.String("referenced_column"))
	}

	return ts, nil
}
