// Package schema provides SchemaCollection implementations: a live collection that
// introspects through a connection and a cached decorator backed by cache.Cache.
package schema

import (
	"context"
	"strings"

	"github.com/gaborage/go-datasource/database/types"
)

// Introspector runs vendor catalog queries. types.Dialect satisfies it.
type Introspector interface {
	ListTables(ctx context.Context, conn types.Connection) ([]string, error)
	DescribeTable(ctx context.Context, conn types.Connection, table string) (*types.TableSchema, error)
}

// Collection reads metadata from the database on every call.
type Collection struct {
	conn         types.Connection
	introspector Introspector
}

// New returns a Collection that introspects through conn.
func New(conn types.Connection, introspector Introspector) *Collection {
	return &Collection{conn: conn, introspector: introspector}
}

// ListTables returns the tables visible in the session's default schema.
func (c *Collection) ListTables(ctx context.Context) ([]string, error) {
	return c.introspector.ListTables(ctx, c.conn)
}

// Describe returns columns and keys of table. A schema-qualified name ("app.users")
// reads from that schema. Missing tables return an error wrapping types.ErrTableNotFound.
func (c *Collection) Describe(ctx context.Context, table string) (*types.TableSchema, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, types.ErrTableNotFound
	}
	return c.introspector.DescribeTable(ctx, c.conn, table)
}

var _ types.SchemaCollection = (*Collection)(nil)
