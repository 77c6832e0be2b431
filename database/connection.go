// Package database implements the datasource Connection contract over database/sql.
//
// A Connection pins one session from a pool and routes every statement through it, so
// transactions, savepoints and constraint toggles stay coherent across calls:
//
//	conn, err := database.Open(ctx, "main", cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	stmt, err := conn.Execute(ctx, "SELECT * FROM users WHERE id = ?",
//	    types.Positional(42), types.Types("integer"))
//	if err != nil {
//	    return err
//	}
//	defer stmt.Close()
//
// Close also closes any result set its statements left open.
package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/gaborage/go-datasource/cache"
	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database/internal/tracking"
	"github.com/gaborage/go-datasource/database/schema"
	"github.com/gaborage/go-datasource/database/types"
	"github.com/gaborage/go-datasource/logger"
)

// Connection is a live session bound to one named datasource configuration.
// It is not safe for concurrent use.
type Connection struct {
	name     string
	cfg      config.DatabaseConfig
	snapshot map[string]any
	dialect  types.Dialect
	conn     *sql.Conn
	log      logger.Logger

	metaCache cache.Cache
	// release runs after the session is returned; Open uses it to close the pool it owns.
	release func() error

	logging     bool
	queryLogger types.QueryLogger
	schema      types.SchemaCollection

	tx           *sql.Tx
	txDepth      int
	rollbackOnly bool

	constraintDepth int
	guard           types.ConstraintGuard

	// open holds statements whose result sets still pin the session.
	open map[*Statement]struct{}

	closed bool
}

var _ types.Connection = (*Connection)(nil)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the application logger used by the default query logger and for
// cleanup failures.
func WithLogger(log logger.Logger) Option {
	return func(c *Connection) {
		if log != nil {
			c.log = log
		}
	}
}

// WithQueryLogger attaches a query logger up front.
func WithQueryLogger(l types.QueryLogger) Option {
	return func(c *Connection) {
		c.queryLogger = l
	}
}

// WithSchemaCollection attaches a schema collection up front.
func WithSchemaCollection(sc types.SchemaCollection) Option {
	return func(c *Connection) {
		c.schema = sc
	}
}

// WithMetadataCache makes the default schema collection cache table metadata in mc.
// The connection does not close mc.
func WithMetadataCache(mc cache.Cache) Option {
	return func(c *Connection) {
		c.metaCache = mc
	}
}

func withRelease(fn func() error) Option {
	return func(c *Connection) {
		c.release = fn
	}
}

// NewConnection pins a session from db. cfg is copied; later changes to it are not seen.
func NewConnection(ctx context.Context, db *sql.DB, name string, cfg *config.DatabaseConfig, dialect types.Dialect, opts ...Option) (*Connection, error) {
	if cfg == nil {
		cfg = &config.DatabaseConfig{}
	}
	c := &Connection{
		name:     name,
		cfg:      *cfg,
		snapshot: config.Snapshot(cfg),
		dialect:  dialect,
		log:      logger.NewWithWriter(io.Discard, "disabled", false),
		logging:  cfg.LogQueries,
		open:     make(map[*Statement]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, &types.DriverError{Op: "connect", Vendor: dialect.Vendor(), Kind: types.KindConnection, Err: err}
	}
	c.conn = conn
	return c, nil
}

// ConfigName returns the datasource name this connection was opened for.
func (c *Connection) ConfigName() string {
	return c.name
}

// Config returns a deep copy of the datasource configuration keyed by koanf names.
func (c *Connection) Config() map[string]any {
	return config.CopySnapshot(c.snapshot)
}

// Vendor returns the dialect vendor.
func (c *Connection) Vendor() types.Vendor {
	return c.dialect.Vendor()
}

// Dialect returns the vendor adapter.
func (c *Connection) Dialect() types.Dialect {
	return c.dialect
}

func (c *Connection) SupportsDynamicConstraints() bool {
	return c.dialect.SupportsDynamicConstraints()
}

func (c *Connection) InTransaction() bool {
	return c.txDepth > 0
}

// LogQueries reads or toggles query logging and returns the state after the call.
func (c *Connection) LogQueries(mode types.QueryLogging) bool {
	switch mode {
	case types.LogEnable:
		c.logging = true
	case types.LogDisable:
		c.logging = false
	}
	return c.logging
}

func (c *Connection) SetLogger(l types.QueryLogger) types.Connection {
	c.queryLogger = l
	return c
}

// Logger returns the attached query logger, creating the default structured logger on
// first use.
func (c *Connection) Logger() types.QueryLogger {
	if c.queryLogger == nil {
		c.queryLogger = tracking.NewQueryLogger(c.log, tracking.NewSettings(&c.cfg))
	}
	return c.queryLogger
}

// SchemaCollection returns the attached collection, creating one that introspects through
// this connection on first use. With a metadata cache it is wrapped in a CachedCollection.
func (c *Connection) SchemaCollection() types.SchemaCollection {
	if c.schema != nil {
		return c.schema
	}
	var sc types.SchemaCollection = schema.New(c, c.dialect)
	if c.metaCache != nil {
		sc = schema.NewCached(sc, c.metaCache, schema.KeyPrefix(c.cfg.Cache.Prefix, c.name), c.cfg.Cache.TTL, c.log)
	}
	c.schema = sc
	return sc
}

func (c *Connection) SetSchemaCollection(sc types.SchemaCollection) types.Connection {
	c.schema = sc
	return c
}

// NewQuery returns squirrel builders configured for the dialect.
func (c *Connection) NewQuery() types.Query {
	return newQuery(c)
}

// Prepare parses src and renders it in the dialect placeholder format. Builder sources
// come bound with their own arguments.
func (c *Connection) Prepare(_ context.Context, src types.SQLSource) (types.Statement, error) {
	return c.prepare(src)
}

func (c *Connection) prepare(src types.SQLSource) (*Statement, error) {
	if c.closed {
		return nil, c.closedError("prepare")
	}

	var (
		query string
		args  []any
	)
	switch s := src.(type) {
	case types.RawSQL:
		query = string(s)
	case types.BuilderSource:
		if s.Sqlizer == nil {
			return nil, types.NewDriverError("prepare", c.Vendor(), "", types.KindSyntax, types.ErrUnsupportedSource)
		}
		var err error
		query, args, err = s.Sqlizer.ToSql()
		if err != nil {
			return nil, types.NewDriverError("prepare", c.Vendor(), "", types.KindSyntax, err)
		}
	default:
		return nil, types.NewDriverError("prepare", c.Vendor(), "", types.KindSyntax, types.ErrUnsupportedSource)
	}

	stmt, err := newStatement(c, query)
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		if err := stmt.Bind(types.Positional(args...), nil); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// Execute prepares, binds and runs query. On failure no statement is returned.
func (c *Connection) Execute(ctx context.Context, query string, params types.Params, hints types.TypeMap) (types.Statement, error) {
	stmt, err := c.prepare(types.RawSQL(query))
	if err != nil {
		return nil, err
	}
	if err := stmt.Bind(params, hints); err != nil {
		return nil, err
	}
	if err := stmt.Execute(ctx); err != nil {
		_ = stmt.Close()
		return nil, err
	}
	return stmt, nil
}

// Close closes result sets still open on the session, rolls back an open transaction,
// returns the session to its pool and runs the release hook. Closing twice is a no-op.
func (c *Connection) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	// database/sql waits for every open result set before releasing the session.
	for stmt := range c.open {
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
		c.tx, c.txDepth, c.rollbackOnly = nil, 0, false
	}
	if err := c.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.release != nil {
		if err := c.release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// executor returns the active transaction, or the pinned session outside one.
func (c *Connection) executor() types.Executor {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

func (c *Connection) closedError(op string) error {
	return &types.DriverError{Op: op, Vendor: c.Vendor(), Kind: types.KindConnection, Err: types.ErrConnectionClosed}
}

func (c *Connection) driverError(op, query string, err error) error {
	return types.NewDriverError(op, c.Vendor(), query, c.dialect.ClassifyError(err), err)
}

func (c *Connection) track(s *Statement) {
	c.open[s] = struct{}{}
}

func (c *Connection) untrack(s *Statement) {
	delete(c.open, s)
}

// logQuery hands one executed command to the query logger when logging is on.
func (c *Connection) logQuery(ctx context.Context, query string, args []any, took time.Duration, rows int64, err error) {
	if !c.logging {
		return
	}
	c.emitQuery(ctx, query, args, took, rows, err)
}

func (c *Connection) emitQuery(ctx context.Context, query string, args []any, took time.Duration, rows int64, err error) {
	c.Logger().LogQuery(ctx, types.LoggedQuery{
		ConfigName: c.name,
		Vendor:     c.Vendor(),
		Query:      query,
		Params:     args,
		Took:       took,
		NumRows:    rows,
		Err:        err,
	})
}
