package testing

import "time"

// Logger levels used by tests.
const (
	LogLevelDebug    = "debug"
	LogLevelDisabled = "disabled"
)

// Datasource and schema names used by the integration suites.
const (
	DatasourceName = "integration"
	TableUsers     = "users"
	TableOrders    = "orders"
	// TableMixedCase needs quoting on both vendors.
	TableMixedCase = "AuditLog"
)

// Sample rows.
const (
	EmailAlice = "alice@example.com"
	EmailBob   = "bob@example.com"
	NameAlice  = "Alice"
	NameBob    = "Bob"
)

// Timings for container startup and polling assertions.
const (
	ContainerTimeout = 5 * time.Minute
	EventuallyWait   = 2 * time.Second
	EventuallyTick   = 50 * time.Millisecond
)
