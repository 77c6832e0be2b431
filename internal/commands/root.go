// Package commands implements the dbconn command line tool.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database"
	"github.com/gaborage/go-datasource/database/types"
	"github.com/gaborage/go-datasource/logger"
	"github.com/gaborage/go-datasource/observability"
	"github.com/gaborage/go-datasource/trace"
)

// DefaultDatasource is used when --datasource is not given.
const DefaultDatasource = "default"

// Options holds the global flags shared by every command.
type Options struct {
	ConfigPath string
	Datasource string
	LogQueries bool
	Trace      bool

	version string
	connect Connector
}

// Connector opens a session on the datasource selected by opts.
type Connector func(ctx context.Context, opts *Options) (types.Connection, error)

// NewRootCommand creates the dbconn command tree.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(&Options{version: version, connect: openDatasource})
}

func newRootCommand(opts *Options) *cobra.Command {
	root := &cobra.Command{
		Use:   "dbconn",
		Short: "Inspect and query configured datasources",
		Long: `dbconn opens a session on a datasource from config.yaml (or DATASOURCES_* environment
variables) and lists tables, describes them or runs SQL.`,
		Example: `  # List tables of the default datasource
  dbconn tables

  # Describe a table of the reporting datasource as YAML
  dbconn -d reporting describe orders --format yaml

  # Run a write inside a transaction with foreign keys suspended
  dbconn exec --tx --no-constraints "INSERT INTO orders (user_id) VALUES (?)" 42 --type integer`,
		Version:       opts.version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "Configuration file (default config.yaml when present)")
	pf.StringVarP(&opts.Datasource, "datasource", "d", DefaultDatasource, "Datasource name")
	pf.BoolVar(&opts.LogQueries, "log-queries", false, "Log every statement to stderr")
	pf.BoolVar(&opts.Trace, "trace", false, "Print OpenTelemetry spans to stderr (implies --log-queries)")

	root.AddCommand(
		newTablesCommand(opts),
		newDescribeCommand(opts),
		newExecCommand(opts),
		newKeysCommand(opts),
		newVersionCommand(opts.version),
	)
	return root
}

// withSession opens a session, runs fn and closes the session, joining every error.
func (o *Options) withSession(cmd *cobra.Command, fn func(ctx context.Context, conn types.Connection) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, _ = trace.EnsureCorrelationID(ctx)
	ctx, stats := logger.WithDBStats(ctx)

	if o.Trace {
		provider, perr := observability.NewProvider(observability.Config{
			ServiceName:    "dbconn",
			ServiceVersion: o.version,
			Writer:         cmd.ErrOrStderr(),
			Pretty:         true,
		})
		if perr != nil {
			return perr
		}
		defer func() {
			err = errors.Join(err, observability.Shutdown(provider, 0))
		}()
	}

	conn, err := o.connect(ctx, o)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, conn.Close())
	}()

	if o.LogQueries || o.Trace {
		conn.LogQueries(types.LogEnable)
		defer func() {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d statements in %s\n", stats.Operations(), stats.Elapsed())
		}()
	}
	return fn(ctx, conn)
}

func openDatasource(ctx context.Context, opts *Options) (types.Connection, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	ds, err := cfg.Datasource(opts.Datasource)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if opts.LogQueries || opts.Trace {
		level = "debug"
	}
	log := logger.NewWithWriter(os.Stderr, level, cfg.Log.Pretty)

	return database.Open(ctx, opts.Datasource, &ds, log)
}
