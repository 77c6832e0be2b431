//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic checks with errors.Is.
var (
	// ErrConnectionClosed is returned by any operation on a closed connection.
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrMixedParameters is returned when a statement mixes "?" and ":name" placeholders,
	// or when positional params are bound to named placeholders and vice versa.
	ErrMixedParameters = errors.New("cannot mix positional and named parameters")

	// ErrMissingParameter is returned when a placeholder has no bound value.
	ErrMissingParameter = errors.New("missing parameter value")

	// ErrUnknownType is returned for a type hint the caster does not know.
	ErrUnknownType = errors.New("unknown type")

	// ErrRollbackOnly is returned when committing a transaction an inner block marked for rollback.
	ErrRollbackOnly = errors.New("transaction marked rollback-only")

	// ErrUnsupportedSource is returned when Prepare receives an unknown SQLSource.
	ErrUnsupportedSource = errors.New("unsupported SQL source")

	// ErrTableNotFound is returned by Describe for a table that does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrNoResultSet is returned when reading rows from a statement that produced none.
	ErrNoResultSet = errors.New("statement has no result set")
)

// ErrorKind classifies driver failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSyntax
	KindConstraint
	KindTypeMismatch
	KindConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindConstraint:
		return "constraint"
	case KindTypeMismatch:
		return "type_mismatch"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// DriverError wraps a failure raised while preparing or running SQL, or while
// beginning, committing or rolling back a transaction.
type DriverError struct {
	Op     string // prepare, bind, execute, begin, commit, rollback, savepoint, constraints
	Vendor Vendor
	Query  string
	Kind   ErrorKind
	Err    error
}

func (e *DriverError) Error() string {
	if e.Vendor == "" {
		return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Vendor, e.Op, e.Kind, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// NewDriverError wraps err unless it is nil or already a *DriverError.
func NewDriverError(op string, vendor Vendor, query string, kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var de *DriverError
	if errors.As(err, &de) {
		return err
	}
	return &DriverError{Op: op, Vendor: vendor, Query: query, Kind: kind, Err: err}
}

// IsKind reports whether err is a *DriverError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *DriverError
	return errors.As(err, &de) && de.Kind == kind
}
