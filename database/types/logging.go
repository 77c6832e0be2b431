//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

// QueryLogging selects the LogQueries behaviour.
type QueryLogging int

const (
	// LogRead returns the current state without changing it.
	LogRead QueryLogging = iota
	LogEnable
	LogDisable
)

// LoggingFor maps an optional flag onto a QueryLogging mode: nil reads, true enables, false disables.
func LoggingFor(enable *bool) QueryLogging {
	switch {
	case enable == nil:
		return LogRead
	case *enable:
		return LogEnable
	default:
		return LogDisable
	}
}
