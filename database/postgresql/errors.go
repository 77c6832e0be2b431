package postgresql

import (
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gaborage/go-datasource/database/types"
)

// ClassifyError maps SQLSTATE classes onto error kinds: 42 syntax or access rule,
// 23 integrity constraint, 22 data exception, 08 and 57P0x connection loss.
// Network and dial failures are connection errors too.
func (d *Dialect) ClassifyError(err error) types.ErrorKind {
	if err == nil {
		return types.KindUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr), errors.As(err, &netErr), errors.Is(err, driver.ErrBadConn):
		return types.KindConnection
	default:
		return types.KindUnknown
	}
}

func classifySQLState(code string) types.ErrorKind {
	if len(code) < 2 {
		return types.KindUnknown
	}
	switch code[:2] {
	case "42":
		return types.KindSyntax
	case "23":
		return types.KindConstraint
	case "22":
		return types.KindTypeMismatch
	case "08":
		return types.KindConnection
	case "57":
		if len(code) == 5 && code[:4] == "57P0" {
			return types.KindConnection
		}
	}
	return types.KindUnknown
}
