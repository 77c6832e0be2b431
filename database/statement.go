package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gaborage/go-datasource/database/internal/sqllex"
	"github.com/gaborage/go-datasource/database/internal/typecast"
	"github.com/gaborage/go-datasource/database/types"
)

var errStatementClosed = errors.New("statement is closed")

// Statement is a parsed statement bound to its Connection. Reads are valid after a
// successful Execute of a row-returning statement.
type Statement struct {
	conn   *Connection
	parsed *sqllex.Parsed
	query  string
	args   []any

	rows     *sql.Rows
	result   sql.Result
	columns  []string
	rowCount int64
	err      error
	closed   bool

	// pending is the query log entry of a read, emitted once its result set ends.
	pending *pendingLog
}

type pendingLog struct {
	ctx  context.Context
	took time.Duration
}

var _ types.Statement = (*Statement)(nil)

func newStatement(c *Connection, query string) (*Statement, error) {
	parsed, err := sqllex.Parse(query)
	if err != nil {
		return nil, types.NewDriverError("prepare", c.Vendor(), query, types.KindSyntax, err)
	}
	rendered, err := parsed.Format(c.dialect.PlaceholderFormat())
	if err != nil {
		return nil, types.NewDriverError("prepare", c.Vendor(), query, types.KindSyntax, err)
	}
	return &Statement{conn: c, parsed: parsed, query: rendered}, nil
}

// SQL returns the statement in the dialect placeholder format.
func (s *Statement) SQL() string {
	return s.query
}

// Args returns the driver arguments in placeholder order.
func (s *Statement) Args() []any {
	return append([]any(nil), s.args...)
}

// Bind replaces the bound values. Positional params fill "?" slots in order and "$n"/":n"
// slots by number; named params fill ":name" slots and a repeated name reuses its value.
// hints cast values by positional index or by name before they reach the driver.
func (s *Statement) Bind(params types.Params, hints types.TypeMap) error {
	args, err := s.bindArgs(params, hints)
	if err != nil {
		return err
	}
	s.args = args
	return nil
}

func (s *Statement) bindArgs(params types.Params, hints types.TypeMap) ([]any, error) {
	vendor := s.conn.Vendor()
	syntaxErr := func(err error) error {
		return types.NewDriverError("bind", vendor, s.query, types.KindSyntax, err)
	}

	named := s.parsed.Style == sqllex.StyleNamed
	switch {
	case params.IsEmpty():
	case named && !params.IsNamed(), !named && params.IsNamed() && len(s.parsed.Slots) > 0:
		return nil, syntaxErr(fmt.Errorf("%w: %s placeholders", types.ErrMixedParameters, s.parsed.Style))
	case !params.IsNamed() && params.Len() > s.parsed.Arity():
		return nil, syntaxErr(fmt.Errorf("%d values bound to %d placeholders", params.Len(), s.parsed.Arity()))
	}

	args := make([]any, len(s.parsed.Slots))
	for i, slot := range s.parsed.Slots {
		var (
			v    any
			ok   bool
			hint string
			ref  string
		)
		if named {
			v, ok = params.Lookup(slot.Name)
			hint, ref = hints.ForName(slot.Name), ":"+slot.Name
		} else {
			v, ok = params.At(slot.Index)
			hint, ref = hints.ForIndex(slot.Index), fmt.Sprintf("#%d", slot.Index+1)
		}
		if !ok {
			return nil, syntaxErr(fmt.Errorf("%w: %s", types.ErrMissingParameter, ref))
		}

		cast, err := s.cast(hint, v)
		if err != nil {
			return nil, types.NewDriverError("bind", vendor, s.query, types.KindTypeMismatch, fmt.Errorf("parameter %s: %w", ref, err))
		}
		args[i] = cast
	}
	return args, nil
}

func (s *Statement) cast(hint string, v any) (any, error) {
	if hint == "" {
		if b, ok := v.(bool); ok {
			return s.conn.dialect.BooleanValue(b), nil
		}
		return v, nil
	}
	return typecast.Cast(hint, v, s.conn.dialect.BooleanValue)
}

// Execute runs the statement with its bound values through the connection's current
// executor. Row-returning statements keep their result set open until the rows are
// exhausted, the statement is closed or re-executed, or the connection closes. Reads
// are logged when their result set ends so the entry carries the fetched row count.
func (s *Statement) Execute(ctx context.Context) error {
	if s.closed {
		return types.NewDriverError("execute", s.conn.Vendor(), s.query, types.KindUnknown, errStatementClosed)
	}
	c := s.conn
	if c.closed {
		return c.closedError("execute")
	}
	s.reset()

	start := time.Now()
	exec := c.executor()
	var err error
	if sqllex.ReturnsRows(s.query) {
		s.rows, err = exec.QueryContext(ctx, s.query, s.args...)
	} else {
		s.result, err = exec.ExecContext(ctx, s.query, s.args...)
		if err == nil {
			if n, rerr := s.result.RowsAffected(); rerr == nil {
				s.rowCount = n
			}
		}
	}
	took := time.Since(start)
	if err != nil {
		err = c.driverError("execute", s.query, err)
		s.err = err
	}
	if s.rows != nil {
		c.track(s)
		if c.logging {
			s.pending = &pendingLog{ctx: context.WithoutCancel(ctx), took: took}
		}
		return nil
	}
	c.logQuery(ctx, s.query, s.args, took, s.rowCount, err)
	return err
}

func (s *Statement) reset() {
	if s.rows != nil {
		_ = s.rows.Close()
		s.done()
	}
	s.rows, s.result, s.columns = nil, nil, nil
	s.rowCount, s.err = 0, nil
}

// done releases the session from this result set and emits its pending log entry.
func (s *Statement) done() {
	s.conn.untrack(s)
	if p := s.pending; p != nil {
		s.pending = nil
		s.conn.emitQuery(p.ctx, s.query, s.args, p.took, s.rowCount, s.err)
	}
}

// Next advances to the next row. It returns false when rows are exhausted, on error,
// or when the statement produced no result set.
func (s *Statement) Next() bool {
	if s.rows == nil {
		return false
	}
	if s.rows.Next() {
		s.rowCount++
		return true
	}
	if err := s.rows.Err(); err != nil {
		s.err = s.conn.driverError("execute", s.query, err)
	}
	s.done()
	return false
}

func (s *Statement) Scan(dest ...any) error {
	if s.rows == nil {
		return types.ErrNoResultSet
	}
	return s.rows.Scan(dest...)
}

func (s *Statement) Columns() ([]string, error) {
	if s.rows == nil {
		return nil, types.ErrNoResultSet
	}
	if s.columns == nil {
		cols, err := s.rows.Columns()
		if err != nil {
			return nil, err
		}
		s.columns = cols
	}
	return s.columns, nil
}

// FetchAssoc returns the next row keyed by column name, or nil once rows are exhausted.
func (s *Statement) FetchAssoc() (map[string]any, error) {
	if s.rows == nil {
		return nil, types.ErrNoResultSet
	}
	cols, err := s.Columns()
	if err != nil {
		return nil, err
	}
	if !s.Next() {
		return nil, s.Err()
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(cols))
	for i, col := range cols {
		row[col] = values[i]
	}
	return row, nil
}

// FetchAll returns the remaining rows. No rows yields an empty, non-nil slice.
func (s *Statement) FetchAll() ([]map[string]any, error) {
	out := make([]map[string]any, 0)
	for {
		row, err := s.FetchAssoc()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return out, nil
		}
		out = append(out, row)
	}
}

// RowCount is rows affected for writes and rows fetched so far for queries.
func (s *Statement) RowCount() int64 {
	return s.rowCount
}

// LastInsertID returns the driver's last insert id. PostgreSQL does not support it;
// use RETURNING instead.
func (s *Statement) LastInsertID() (int64, error) {
	if s.result == nil {
		return 0, types.ErrNoResultSet
	}
	return s.result.LastInsertId()
}

func (s *Statement) Err() error {
	return s.err
}

// Close releases the result set. Closing twice is a no-op.
func (s *Statement) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.rows != nil {
		err := s.rows.Close()
		s.rows = nil
		s.done()
		return err
	}
	return nil
}
