package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-datasource/database/types"
)

func newTablesCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables of the datasource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, func(ctx context.Context, conn types.Connection) error {
				tables, err := conn.SchemaCollection().ListTables(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, t := range tables {
					fmt.Fprintln(out, t)
				}
				return nil
			})
		},
	}
}
