package oracle

import (
	"database/sql/driver"
	"errors"
	"net"

	"github.com/sijms/go-ora/v2/network"

	"github.com/gaborage/go-datasource/database/types"
)

var oraKinds = map[int]types.ErrorKind{
	// syntax, unknown identifiers and missing objects
	900: types.KindSyntax, 904: types.KindSyntax, 905: types.KindSyntax, 906: types.KindSyntax,
	907: types.KindSyntax, 911: types.KindSyntax, 917: types.KindSyntax, 920: types.KindSyntax,
	921: types.KindSyntax, 923: types.KindSyntax, 933: types.KindSyntax, 936: types.KindSyntax,
	942: types.KindSyntax, 1008: types.KindSyntax,

	// integrity
	1: types.KindConstraint, 1400: types.KindConstraint, 1407: types.KindConstraint,
	2290: types.KindConstraint, 2291: types.KindConstraint, 2292: types.KindConstraint,

	// conversion and value errors
	932: types.KindTypeMismatch, 1438: types.KindTypeMismatch, 1722: types.KindTypeMismatch,
	1830: types.KindTypeMismatch, 1840: types.KindTypeMismatch, 1843: types.KindTypeMismatch,
	1847: types.KindTypeMismatch, 1858: types.KindTypeMismatch, 1861: types.KindTypeMismatch,
	6502: types.KindTypeMismatch, 12899: types.KindTypeMismatch,

	// lost or refused sessions
	1012: types.KindConnection, 1033: types.KindConnection, 1034: types.KindConnection,
	1089: types.KindConnection, 3113: types.KindConnection, 3114: types.KindConnection,
	3135: types.KindConnection, 12170: types.KindConnection, 12514: types.KindConnection,
	12528: types.KindConnection, 12537: types.KindConnection, 12541: types.KindConnection,
}

// ClassifyError maps ORA- codes onto error kinds. Network failures are connection errors.
func (d *Dialect) ClassifyError(err error) types.ErrorKind {
	if err == nil {
		return types.KindUnknown
	}

	var oraErr *network.OracleError
	if errors.As(err, &oraErr) {
		if kind, ok := oraKinds[oraErr.ErrCode]; ok {
			return kind
		}
		return types.KindUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) {
		return types.KindConnection
	}
	return types.KindUnknown
}
