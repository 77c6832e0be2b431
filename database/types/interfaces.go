// Package types contains the core database interface definitions for go-datasource.
// These interfaces are separate from the main database package to avoid import cycles
// and to make them easily accessible for mocking and testing.
//
//nolint:revive // Package name "types" is intentionally generic to avoid circular imports
package types

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
)

// Database vendor identifiers shared across the database packages.
type Vendor = string

const (
	PostgreSQL Vendor = "postgresql"
	Oracle     Vendor = "oracle"
)

// Connection is a live database session bound to one named configuration.
//
// A Connection pins a single session from its pool, so transactions and constraint
// toggles apply to every statement issued through it. It is not safe for concurrent use.
type Connection interface {
	// ConfigName returns the name of the configuration this connection was built from.
	ConfigName() string
	// Config returns a deep copy of the connection configuration.
	Config() map[string]any
	// Vendor returns the database vendor identifier.
	Vendor() Vendor

	// Transactional runs op inside a transaction. op returning an error or exactly false
	// rolls back; any other result commits. op errors are returned unchanged.
	Transactional(ctx context.Context, op Operation) (TxResult, error)
	// DisableConstraints runs op with foreign key checks suppressed and restores them on
	// every exit path.
	DisableConstraints(ctx context.Context, op Operation) (any, error)
	// SupportsDynamicConstraints reports whether constraints can be toggled at runtime.
	SupportsDynamicConstraints() bool
	// InTransaction reports whether a Transactional block is active.
	InTransaction() bool

	// LogQueries reads or toggles query logging and returns the resulting state.
	LogQueries(mode QueryLogging) bool
	SetLogger(logger QueryLogger) Connection
	Logger() QueryLogger

	SchemaCollection() SchemaCollection
	SetSchemaCollection(collection SchemaCollection) Connection

	// NewQuery returns a query builder bound to this connection's dialect.
	NewQuery() Query
	// Prepare compiles raw SQL or a builder into a statement ready for binding.
	Prepare(ctx context.Context, src SQLSource) (Statement, error)
	// Execute prepares, binds and runs query, returning the executed statement.
	Execute(ctx context.Context, query string, params Params, types TypeMap) (Statement, error)

	// Close returns the pinned session to its pool.
	Close() error
}

// Operation is a unit of work run by Transactional or DisableConstraints.
type Operation func(ctx context.Context, conn Connection) (any, error)

// Statement is a prepared or executed statement. Callers own its lifecycle.
type Statement interface {
	// SQL returns the dialect SQL sent to the driver.
	SQL() string
	// Bind replaces the bound values. types holds optional per-parameter type hints.
	Bind(params Params, types TypeMap) error
	// Execute runs the statement with its bound values.
	Execute(ctx context.Context) error

	// Next advances to the next result row.
	Next() bool
	Scan(dest ...any) error
	// FetchAssoc returns the next row keyed by column name, or nil when exhausted.
	FetchAssoc() (map[string]any, error)
	// FetchAll returns all remaining rows keyed by column name.
	FetchAll() ([]map[string]any, error)
	Columns() ([]string, error)

	// RowCount is rows affected for writes and rows fetched so far for queries.
	RowCount() int64
	LastInsertID() (int64, error)
	Err() error
	Close() error
}

// Query exposes squirrel builders configured for a connection's dialect.
type Query interface {
	Select(columns ...string) squirrel.SelectBuilder
	Insert(table string) squirrel.InsertBuilder
	Update(table string) squirrel.UpdateBuilder
	Delete(table string) squirrel.DeleteBuilder

	// EscapeIdentifier quotes identifier when the dialect requires it.
	EscapeIdentifier(identifier string) string
	// Paginate applies limit/offset using the dialect's syntax. Zero values are ignored.
	Paginate(query squirrel.SelectBuilder, limit, offset uint64) squirrel.SelectBuilder
	// Execute prepares and runs q on the bound connection.
	Execute(ctx context.Context, q squirrel.Sqlizer) (Statement, error)
}

// QueryLogger receives a record of every query run while logging is enabled.
type QueryLogger interface {
	LogQuery(ctx context.Context, q LoggedQuery)
}

// LoggedQuery describes one executed query.
type LoggedQuery struct {
	ConfigName string
	Vendor     Vendor
	Query      string
	Params     []any
	Took       time.Duration
	NumRows    int64
	Err        error
}

// SchemaCollection provides introspected table metadata.
type SchemaCollection interface {
	ListTables(ctx context.Context) ([]string, error)
	Describe(ctx context.Context, table string) (*TableSchema, error)
}

// TableSchema describes a table's columns and keys.
type TableSchema struct {
	Name        string         `json:"name" cbor:"name" yaml:"name"`
	Columns     []ColumnSchema `json:"columns" cbor:"columns" yaml:"columns"`
	PrimaryKey  []string       `json:"primaryKey,omitempty" cbor:"primaryKey,omitempty" yaml:"primaryKey,omitempty"`
	ForeignKeys []ForeignKey   `json:"foreignKeys,omitempty" cbor:"foreignKeys,omitempty" yaml:"foreignKeys,omitempty"`
}

// Column returns the named column, matched case-insensitively.
func (t *TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// ColumnSchema describes one column.
type ColumnSchema struct {
	Name      string  `json:"name" cbor:"name" yaml:"name"`
	Type      string  `json:"type" cbor:"type" yaml:"type"`
	Nullable  bool    `json:"nullable" cbor:"nullable" yaml:"nullable"`
	Default   *string `json:"default,omitempty" cbor:"default,omitempty" yaml:"default,omitempty"`
	Length    *int64  `json:"length,omitempty" cbor:"length,omitempty" yaml:"length,omitempty"`
	Precision *int64  `json:"precision,omitempty" cbor:"precision,omitempty" yaml:"precision,omitempty"`
	Scale     *int64  `json:"scale,omitempty" cbor:"scale,omitempty" yaml:"scale,omitempty"`
	Position  int     `json:"position" cbor:"position" yaml:"position"`
}

// ForeignKey describes a referential constraint.
type ForeignKey struct {
	Name              string   `json:"name" cbor:"name" yaml:"name"`
	Columns           []string `json:"columns" cbor:"columns" yaml:"columns"`
	ReferencedTable   string   `json:"referencedTable" cbor:"referencedTable" yaml:"referencedTable"`
	ReferencedColumns []string `json:"referencedColumns" cbor:"referencedColumns" yaml:"referencedColumns"`
}

// Executor is the subset of *sql.Conn and *sql.Tx used to run statements.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// ConstraintGuard holds suppressed constraints until Release restores them.
type ConstraintGuard interface {
	Release(ctx context.Context) error
}

// Dialect adapts a database vendor to the Connection contract.
type Dialect interface {
	Vendor() Vendor

	// PlaceholderFormat rewrites "?" placeholders into the vendor format.
	PlaceholderFormat() squirrel.PlaceholderFormat
	QuoteIdentifier(identifier string) string
	// Paginate applies limit/offset to a select builder.
	Paginate(query squirrel.SelectBuilder, limit, offset uint64) squirrel.SelectBuilder
	// BooleanValue converts a Go bool into the vendor representation.
	BooleanValue(v bool) any

	SupportsSavepoints() bool
	SavepointSQL(name string) string
	RollbackSavepointSQL(name string) string
	// ReleaseSavepointSQL returns "" when the vendor has no release statement.
	ReleaseSavepointSQL(name string) string

	SupportsDynamicConstraints() bool
	// DisableConstraints suppresses constraint checks on the session behind conn.
	DisableConstraints(ctx context.Context, conn Connection) (ConstraintGuard, error)

	ListTables(ctx context.Context, conn Connection) ([]string, error)
	DescribeTable(ctx context.Context, conn Connection, table string) (*TableSchema, error)

	// ClassifyError maps a driver error onto an ErrorKind.
	ClassifyError(err error) ErrorKind
}
