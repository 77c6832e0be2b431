// Package introspect holds helpers shared by the dialect catalog queries.
package introspect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gaborage/go-datasource/database/types"
)

// Row is one catalog row keyed by column name.
type Row map[string]any

// Query runs query on conn and returns every row. The statement is always closed.
func Query(ctx context.Context, conn types.Connection, query string, params types.Params) (rows []Row, err error) {
	stmt, err := conn.Execute(ctx, query, params, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close statement: %w", cerr)
		}
	}()

	all, err := stmt.FetchAll()
	if err != nil {
		return nil, err
	}
	rows = make([]Row, len(all))
	for i, r := range all {
		rows[i] = Row(r)
	}
	return rows, nil
}

// Value returns the column matching name case-insensitively.
func (r Row) Value(name string) any {
	if v, ok := r[name]; ok {
		return v
	}
	for k, v := range r {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

// String returns the column as text, "" for NULL.
func (r Row) String(name string) string {
	switch v := r.Value(name).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// StringPtr returns nil for NULL and a pointer to the text otherwise.
func (r Row) StringPtr(name string) *string {
	if r.Value(name) == nil {
		return nil
	}
	s := r.String(name)
	return &s
}

// Int64Ptr returns nil for NULL or non-numeric values.
func (r Row) Int64Ptr(name string) *int64 {
	var n int64
	switch v := r.Value(name).(type) {
	case int64:
		n = v
	case int32:
		n = int64(v)
	case int:
		n = int64(v)
	case float64:
		n = int64(v)
	case string, []byte:
		parsed, err := strconv.ParseInt(strings.TrimSpace(r.String(name)), 10, 64)
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

// Int returns the column as int, 0 for NULL.
func (r Row) Int(name string) int {
	if p := r.Int64Ptr(name); p != nil {
		return int(*p)
	}
	return 0
}

// Bool interprets YES/Y/TRUE/1 as true.
func (r Row) Bool(name string) bool {
	switch v := r.Value(name).(type) {
	case bool:
		return v
	case nil:
		return false
	default:
		switch strings.ToUpper(strings.TrimSpace(r.String(name))) {
		case "YES", "Y", "TRUE", "T", "1":
			return true
		}
		return false
	}
}

// SplitQualified splits "schema.table" into its parts; schema is "" when absent.
// Surrounding double quotes are removed from each part.
func SplitQualified(name string) (schema, table string) {
	return SplitQualifiedFunc(name, nil)
}

// SplitQualifiedFunc is SplitQualified with fold applied to unquoted parts, such as
// strings.ToUpper for catalogs that store unquoted names in upper case.
func SplitQualifiedFunc(name string, fold func(string) string) (schema, table string) {
	part := func(s string) string {
		if isQuoted(s) || fold == nil {
			return unquote(s)
		}
		return fold(s)
	}
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		return part(name[:i]), part(name[i+1:])
	}
	return "", part(name)
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

func unquote(s string) string {
	if isQuoted(s) {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

// NotFound returns an error wrapping types.ErrTableNotFound.
func NotFound(table string) error {
	return fmt.Errorf("%w: %s", types.ErrTableNotFound, table)
}

// IsNotFound reports whether err wraps types.ErrTableNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, types.ErrTableNotFound)
}
