// Package testing provides sqlmock-backed sessions and recording doubles for code that
// depends on the datasource Connection contract.
//
//	conn, mock := dbtest.NewMockSession(t, postgresql.NewDialect(nil))
//	mock.ExpectQuery("SELECT id FROM users WHERE id = $1").
//	    WithArgs(int64(42)).
//	    WillReturnRows(dbtest.NewRowSet("id").AddRow(42).MockRows())
package testing

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/gaborage/go-datasource/config"
	"github.com/gaborage/go-datasource/database"
	"github.com/gaborage/go-datasource/database/types"
)

// SessionName is the datasource name of sessions created by NewMockSession.
const SessionName = "test"

// NewMockSession returns a Connection pinned to a sqlmock database together with the
// mock. SQL is matched exactly. The connection and database are closed on cleanup, and
// unmet expectations fail the test.
func NewMockSession(t *testing.T, dialect types.Dialect, opts ...database.Option) (*database.Connection, sqlmock.Sqlmock) {
	t.Helper()
	return NewMockSessionWithConfig(t, dialect, &config.DatabaseConfig{Type: dialect.Vendor()}, opts...)
}

// NewMockSessionWithConfig is NewMockSession with an explicit datasource configuration.
func NewMockSessionWithConfig(t *testing.T, dialect types.Dialect, cfg *config.DatabaseConfig, opts ...database.Option) (*database.Connection, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	conn, err := database.NewConnection(context.Background(), db, SessionName, cfg, dialect, opts...)
	if err != nil {
		_ = db.Close()
		t.Fatalf("NewConnection: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	})

	return conn, mock
}
