package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-datasource/database"
	"github.com/gaborage/go-datasource/database/types"
)

type execOptions struct {
	named         []string
	hints         []string
	tx            bool
	noConstraints bool
}

// resultSet is what an exec run hands back to the printer after the session work is done.
type resultSet struct {
	columns  []string
	rows     [][]any
	affected int64
}

func newExecCommand(opts *Options) *cobra.Command {
	eo := &execOptions{}

	cmd := &cobra.Command{
		Use:   "exec <sql> [values...]",
		Short: "Run a statement and print its rows or affected count",
		Long: `Run one SQL statement. Placeholders are "?" filled from the trailing values, or
":name" filled from --param flags. Type hints convert the textual values before binding.`,
		Example: `  dbconn exec "SELECT * FROM users WHERE id = ?" 42 --type integer
  dbconn exec "UPDATE users SET active = :active WHERE id = :id" -p id=42 -p active=true -t active=boolean
  dbconn exec --tx --no-constraints "DELETE FROM users WHERE id = ?" 42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, hints, err := eo.bindings(args[1:])
			if err != nil {
				return err
			}
			return opts.withSession(cmd, func(ctx context.Context, conn types.Connection) error {
				rs, err := eo.run(ctx, conn, args[0], params, hints)
				if err != nil {
					return err
				}
				return writeResult(cmd.OutOrStdout(), rs)
			})
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&eo.named, "param", "p", nil, "Named parameter as name=value (repeatable)")
	f.StringArrayVarP(&eo.hints, "type", "t", nil, "Type hint: a bare type applies to the next positional value, name=type to a named one")
	f.BoolVar(&eo.tx, "tx", false, "Run inside a transaction")
	f.BoolVar(&eo.noConstraints, "no-constraints", false, "Suspend foreign key checks while the statement runs")
	return cmd
}

// bindings turns the textual command line values into Params and a TypeMap.
func (eo *execOptions) bindings(positional []string) (types.Params, types.TypeMap, error) {
	if len(eo.named) > 0 && len(positional) > 0 {
		return types.Params{}, nil, errors.New("use either trailing values or --param, not both")
	}

	hints := types.TypeMap{}
	next := 0
	for _, h := range eo.hints {
		if name, typ, ok := strings.Cut(h, "="); ok {
			if name == "" || typ == "" {
				return types.Params{}, nil, fmt.Errorf("invalid type hint %q", h)
			}
			hints[name] = typ
			continue
		}
		hints[strconv.Itoa(next)] = h
		next++
	}

	if len(eo.named) == 0 {
		values := make([]any, len(positional))
		for i, v := range positional {
			values[i] = v
		}
		return types.Positional(values...), hints, nil
	}

	named := make(map[string]any, len(eo.named))
	for _, p := range eo.named {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return types.Params{}, nil, fmt.Errorf("invalid parameter %q (want name=value)", p)
		}
		named[name] = value
	}
	return types.Named(named), hints, nil
}

func (eo *execOptions) run(ctx context.Context, conn types.Connection, query string, params types.Params, hints types.TypeMap) (*resultSet, error) {
	op := func(ctx context.Context, conn types.Connection) (*resultSet, error) {
		return executeAndCollect(ctx, conn, query, params, hints)
	}
	if eo.noConstraints {
		inner := op
		op = func(ctx context.Context, conn types.Connection) (*resultSet, error) {
			v, err := conn.DisableConstraints(ctx, func(ctx context.Context, conn types.Connection) (any, error) {
				return inner(ctx, conn)
			})
			rs, _ := v.(*resultSet)
			return rs, err
		}
	}
	if eo.tx {
		return database.Transactional(ctx, conn, op)
	}
	return op(ctx, conn)
}

func executeAndCollect(ctx context.Context, conn types.Connection, query string, params types.Params, hints types.TypeMap) (*resultSet, error) {
	stmt, err := conn.Execute(ctx, query, params, hints)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	cols, err := stmt.Columns()
	if errors.Is(err, types.ErrNoResultSet) {
		return &resultSet{affected: stmt.RowCount()}, nil
	}
	if err != nil {
		return nil, err
	}

	rs := &resultSet{columns: cols}
	for stmt.Next() {
		row := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := stmt.Scan(dest...); err != nil {
			return nil, err
		}
		rs.rows = append(rs.rows, row)
	}
	if err := stmt.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

func writeResult(w io.Writer, rs *resultSet) error {
	if rs.columns == nil {
		_, err := fmt.Fprintf(w, "%d rows affected\n", rs.affected)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(rs.columns, "\t"))
	for _, row := range rs.rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(rs.rows))
	return err
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
