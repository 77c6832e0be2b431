package testing

import (
	"database/sql/driver"
	"fmt"

	"github.com/DATA-DOG/go-sqlmock"
)

// RowSet builds result rows for sqlmock expectations.
//
//	rows := NewRowSet("id", "name").
//	    AddRow(1, "Alice").
//	    AddRow(2, "Bob")
//
//	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows.MockRows())
type RowSet struct {
	columns []string
	rows    [][]any
}

// NewRowSet creates a RowSet with the given column names.
func NewRowSet(columns ...string) *RowSet {
	return &RowSet{columns: columns, rows: make([][]any, 0)}
}

// AddRow appends a row. Panics if the number of values doesn't match the columns.
func (rs *RowSet) AddRow(values ...any) *RowSet {
	if len(values) != len(rs.columns) {
		panic(fmt.Sprintf("AddRow: expected %d values for columns %v, got %d",
			len(rs.columns), rs.columns, len(values)))
	}
	rs.rows = append(rs.rows, values)
	return rs
}

// AddRows appends count rows produced by generator.
func (rs *RowSet) AddRows(count int, generator func(i int) []any) *RowSet {
	for i := range count {
		rs.AddRow(generator(i)...)
	}
	return rs
}

// AddMaps appends rows given as column-keyed maps; missing columns are NULL.
func (rs *RowSet) AddMaps(rows ...map[string]any) *RowSet {
	for _, m := range rows {
		values := make([]any, len(rs.columns))
		for i, col := range rs.columns {
			values[i] = m[col]
		}
		rs.AddRow(values...)
	}
	return rs
}

func (rs *RowSet) RowCount() int {
	return len(rs.rows)
}

func (rs *RowSet) Columns() []string {
	return rs.columns
}

// MockRows converts the set into sqlmock rows.
func (rs *RowSet) MockRows() *sqlmock.Rows {
	rows := sqlmock.NewRows(rs.columns)
	for _, r := range rs.rows {
		values := make([]driver.Value, len(r))
		for i, v := range r {
			values[i] = v
		}
		rows.AddRow(values...)
	}
	return rows
}
