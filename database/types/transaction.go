//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

// TxOutcome is the final state of a Transactional block.
type TxOutcome int

const (
	TxCommitted TxOutcome = iota
	TxRolledBack
)

func (o TxOutcome) String() string {
	if o == TxRolledBack {
		return "rolled_back"
	}
	return "committed"
}

// TxReason explains a rollback.
type TxReason int

const (
	ReasonNone TxReason = iota
	// ReasonExplicitFalse means the operation returned exactly false.
	ReasonExplicitFalse
	// ReasonError means the operation returned an error.
	ReasonError
)

func (r TxReason) String() string {
	switch r {
	case ReasonExplicitFalse:
		return "explicit_false"
	case ReasonError:
		return "error"
	default:
		return "none"
	}
}

// TxResult reports how a Transactional block ended.
type TxResult struct {
	Outcome TxOutcome
	Reason  TxReason
	// Value is what the operation returned.
	Value any
	// Err is the operation error when Reason is ReasonError.
	Err error
}

// Committed reports whether the block committed.
func (r TxResult) Committed() bool {
	return r.Outcome == TxCommitted
}

// IsExplicitAbort reports whether v is exactly the boolean false.
// Other falsy values such as nil, 0 or "" do not abort a transaction.
func IsExplicitAbort(v any) bool {
	b, ok := v.(bool)
	return ok && !b
}
