package commands

import (
	"fmt"
	"reflect"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/validation"
)

// newKeysCommand lists every datasource setting with the variable that overrides it.
// It needs no connection.
func newKeysCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List datasource configuration keys and environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tENV\tTYPE\tRULES")
			prefix := "datasources." + opts.Datasource + "."
			for _, f := range validation.Describe(reflect.TypeOf(config.DatabaseConfig{})) {
				rules := f.Rules()
				if f.Optional && rules != "" {
					rules = "optional," + rules
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", prefix+f.Path, config.EnvVar(opts.Datasource, f.Path), f.Type, rules)
			}
			return tw.Flush()
		},
	}
}
