// Package testing holds names and timings shared by the go-datasource test suites.
//
// Unit tests drive sessions through sqlmock with the helpers in database/testing.
// Integration tests, built with the "integration" tag, start real servers through the
// containers subpackage:
//
//	cfg := containers.StartPostgreSQL(ctx, t, nil)
//	conn, err := database.Open(ctx, testing.DatasourceName, &cfg, log)
package testing
