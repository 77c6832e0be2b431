package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gaborage/go-datasource/database/types"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func newDescribeCommand(opts *Options) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "describe <table>",
		Short: "Describe the columns and keys of a table",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(_ *cobra.Command, _ []string) error {
			return validateFormat(format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, func(ctx context.Context, conn types.Connection) error {
				ts, err := conn.SchemaCollection().Describe(ctx, args[0])
				if err != nil {
					return err
				}
				return writeSchema(cmd.OutOrStdout(), ts, format)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "Output format (table|json|yaml)")
	return cmd
}

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (must be table, json or yaml)", format)
	}
}

func writeSchema(w io.Writer, ts *types.TableSchema, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ts)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(ts); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeSchemaTable(w, ts)
	}
}

func writeSchemaTable(w io.Writer, ts *types.TableSchema) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Table: %s\n\n", ts.Name)
	fmt.Fprintln(tw, "#\tCOLUMN\tTYPE\tNULL\tDEFAULT")
	for _, c := range ts.Columns {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.Position, c.Name, columnType(c), yesNo(c.Nullable), deref(c.Default))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(ts.PrimaryKey) > 0 {
		fmt.Fprintf(w, "\nPrimary key: %s\n", strings.Join(ts.PrimaryKey, ", "))
	}
	if len(ts.ForeignKeys) > 0 {
		fmt.Fprintln(w, "\nForeign keys:")
		for _, fk := range ts.ForeignKeys {
			fmt.Fprintf(w, "  %s (%s) -> %s (%s)\n", fk.Name, strings.Join(fk.Columns, ", "),
				fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", "))
		}
	}
	return nil
}

func columnType(c types.ColumnSchema) string {
	switch {
	case c.Length != nil:
		return fmt.Sprintf("%s(%d)", c.Type, *c.Length)
	case c.Precision != nil && c.Scale != nil && *c.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", c.Type, *c.Precision, *c.Scale)
	default:
		return c.Type
	}
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
