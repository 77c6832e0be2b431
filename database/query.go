package database

import (
	"context"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-datasource/database/types"
)

// Query hands out squirrel builders that render placeholders the way the connection's
// dialect expects and runs them through that connection.
type Query struct {
	conn *Connection
	sb   squirrel.StatementBuilderType
}

var _ types.Query = (*Query)(nil)

func newQuery(c *Connection) *Query {
	return &Query{
		conn: c,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(c.dialect.PlaceholderFormat()),
	}
}

func (q *Query) Select(columns ...string) squirrel.SelectBuilder {
	return q.sb.Select(columns...)
}

func (q *Query) Insert(table string) squirrel.InsertBuilder {
	return q.sb.Insert(table)
}

func (q *Query) Update(table string) squirrel.UpdateBuilder {
	return q.sb.Update(table)
}

func (q *Query) Delete(table string) squirrel.DeleteBuilder {
	return q.sb.Delete(table)
}

// EscapeIdentifier quotes identifier when the dialect requires it.
func (q *Query) EscapeIdentifier(identifier string) string {
	return q.conn.dialect.QuoteIdentifier(identifier)
}

// Paginate applies limit and offset with the dialect syntax. Zero values are ignored.
func (q *Query) Paginate(query squirrel.SelectBuilder, limit, offset uint64) squirrel.SelectBuilder {
	return q.conn.dialect.Paginate(query, limit, offset)
}

// Execute prepares builder with its arguments and runs it.
func (q *Query) Execute(ctx context.Context, builder squirrel.Sqlizer) (types.Statement, error) {
	stmt, err := q.conn.prepare(types.Builder(builder))
	if err != nil {
		return nil, err
	}
	if err := stmt.Execute(ctx); err != nil {
		_ = stmt.Close()
		return nil, err
	}
	return stmt, nil
}
