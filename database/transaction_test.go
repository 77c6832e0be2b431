package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-datasource/database"
	"github.com/gaborage/go-datasource/database/oracle"
	dbtest "github.com/gaborage/go-datasource/database/testing"
	"github.com/gaborage/go-datasource/database/types"
)

func insertUser(ctx context.Context, conn types.Connection, name string) error {
	_, err := conn.Execute(ctx, "INSERT INTO users (name) VALUES (?)", types.Positional(name), nil)
	return err
}

func TestTransactionalCommits(t *testing.T) {
	conn, mock := newPGSession(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users (name) VALUES ($1)").WithArgs("Alice").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := conn.Transactional(context.Background(), func(ctx context.Context, c types.Connection) (any, error) {
		assert.True(t, c.InTransaction())
		return "done", insertUser(ctx, c, "Alice")
	})
	require.NoError(t, err)
	assert.True(t, result.Committed())
	assert.Equal(t, types.ReasonNone, result.Reason)
	assert.Equal(t, "done", result.Value)
	assert.False(t, conn.InTransaction())
}

func TestTransactionalReturnsOperationErrorUnchanged(t *testing.T) {
	conn, mock := newPGSession(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	opErr := errors.New("validation failed")
	result, err := conn.Transactional(context.Background(), func(context.Context, types.Connection) (any, error) {
		return nil, opErr
	})
	require.Error(t, err)
	assert.True(t, err == opErr, "error must be returned as is")
	assert.Equal(t, types.TxRolledBack, result.Outcome)
	assert.Equal(t, types.ReasonError, result.Reason)
	assert.True(t, result.Err == opErr)
}

func TestTransactionalExplicitFalseRollsBack(t *testing.T) {
	conn, mock := newPGSession(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	result, err := conn.Transactional(context.Background(), func(context.Context, types.Connection) (any, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, types.TxRolledBack, result.Outcome)
	assert.Equal(t, types.ReasonExplicitFalse, result.Reason)
	assert.Equal(t, false, result.Value)
}

func TestTransactionalOtherFalsyValuesCommit(t *testing.T) {
	for name, value := range map[string]any{
		"nil":          nil,
		"zero":         0,
		"empty_string": "",
		"true":         true,
		"nil_slice":    []string(nil),
	} {
		t.Run(name, func(t *testing.T) {
			conn, mock := newPGSession(t)
			mock.ExpectBegin()
			mock.ExpectCommit()

			result, err := conn.Transactional(context.Background(), func(context.Context, types.Connection) (any, error) {
				return value, nil
			})
			require.NoError(t, err)
			assert.True(t, result.Committed())
		})
	}
}

func TestTransactionalRollsBackOnPanic(t *testing.T) {
	conn, mock := newPGSession(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = conn.Transactional(context.Background(), func(context.Context, types.Connection) (any, error) {
			panic("boom")
		})
	})
	assert.False(t, conn.InTransaction())
}

func TestNestedTransactionsUseSavepoints(t *testing.T) {
	conn, mock := newPGSession(t)
	rec := dbtest.NewRecordingQueryLogger()
	conn.SetLogger(rec)
	conn.LogQueries(types.LogEnable)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT LEVEL1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SAVEPOINT LEVEL2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT LEVEL2").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT LEVEL1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	result, err := conn.Transactional(ctx, func(ctx context.Context, c types.Connection) (any, error) {
		return c.Transactional(ctx, func(ctx context.Context, c types.Connection) (any, error) {
			return c.Transactional(ctx, func(context.Context, types.Connection) (any, error) {
				return 1, nil
			})
		})
	})
	require.NoError(t, err)
	assert.True(t, result.Committed())

	dbtest.AssertLoggedSequence(t, rec,
		"BEGIN",
		"SAVEPOINT LEVEL1",
		"SAVEPOINT LEVEL2",
		"RELEASE SAVEPOINT LEVEL2",
		"RELEASE SAVEPOINT LEVEL1",
		"COMMIT",
	)
}

func TestNestedRollbackOnlyUndoesInnerLevel(t *testing.T) {
	conn, mock := newPGSession(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users (name) VALUES ($1)").WithArgs("outer").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SAVEPOINT LEVEL1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO users (name) VALUES ($1)").WithArgs("inner").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT LEVEL1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	innerErr := errors.New("inner failed")
	result, err := conn.Transactional(context.Background(), func(ctx context.Context, c types.Connection) (any, error) {
		if err := insertUser(ctx, c, "outer"); err != nil {
			return nil, err
		}
		inner, err := c.Transactional(ctx, func(ctx context.Context, c types.Connection) (any, error) {
			if err := insertUser(ctx, c, "inner"); err != nil {
				return nil, err
			}
			return nil, innerErr
		})
		assert.ErrorIs(t, err, innerErr)
		assert.False(t, inner.Committed())
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, result.Committed())
}

func TestNestedCommitWithoutReleaseStatement(t *testing.T) {
	conn, mock := dbtest.NewMockSession(t, oracle.NewDialect())
	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT LEVEL1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := conn.Transactional(context.Background(), func(ctx context.Context, c types.Connection) (any, error) {
		return c.Transactional(ctx, func(context.Context, types.Connection) (any, error) {
			return nil, nil
		})
	})
	require.NoError(t, err)
}

func TestNestedWithoutSavepointsMarksRollbackOnly(t *testing.T) {
	dialect := dbtest.NewFakeDialect()
	dialect.Savepoints = false
	conn, mock := dbtest.NewMockSession(t, dialect)
	mock.ExpectBegin()
	mock.ExpectRollback()

	result, err := conn.Transactional(context.Background(), func(ctx context.Context, c types.Connection) (any, error) {
		inner, err := c.Transactional(ctx, func(context.Context, types.Connection) (any, error) {
			return false, nil
		})
		require.NoError(t, err)
		assert.Equal(t, types.ReasonExplicitFalse, inner.Reason)
		return "outer wants commit", nil
	})
	require.ErrorIs(t, err, types.ErrRollbackOnly)
	assert.Equal(t, types.TxRolledBack, result.Outcome)
	assert.Equal(t, types.ReasonError, result.Reason)
	assert.False(t, conn.InTransaction())
}

func TestNestedWithoutSavepointsCommitsWhenInnerSucceeds(t *testing.T) {
	dialect := dbtest.NewFakeDialect()
	dialect.Savepoints = false
	conn, mock := dbtest.NewMockSession(t, dialect)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := conn.Transactional(context.Background(), func(ctx context.Context, c types.Connection) (any, error) {
		return c.Transactional(ctx, func(context.Context, types.Connection) (any, error) {
			return nil, nil
		})
	})
	require.NoError(t, err)
}

func TestTransactionalBeginFailure(t *testing.T) {
	conn, mock := newPGSession(t)
	mock.ExpectBegin().WillReturnError(errors.New("no more connections"))

	called := false
	result, err := conn.Transactional(context.Background(), func(context.Context, types.Connection) (any, error) {
		called = true
		return nil, nil
	})
	requireDriverError(t, err, "begin", types.KindUnknown)
	assert.False(t, called)
	assert.Equal(t, types.TxRolledBack, result.Outcome)
	assert.False(t, conn.InTransaction())
}

func TestTransactionalCommitFailure(t *testing.T) {
	conn, mock := newPGSession(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	result, err := conn.Transactional(context.Background(), func(context.Context, types.Connection) (any, error) {
		return 42, nil
	})
	requireDriverError(t, err, "commit", types.KindUnknown)
	assert.False(t, result.Committed())
	assert.Equal(t, 42, result.Value)
	assert.False(t, conn.InTransaction())
}

func TestTransactionalLogsControlStatements(t *testing.T) {
	conn, mock := newPGSession(t)
	rec := dbtest.NewRecordingQueryLogger()
	conn.SetLogger(rec)
	conn.LogQueries(types.LogEnable)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, _ = conn.Transactional(context.Background(), func(context.Context, types.Connection) (any, error) {
		return false, nil
	})
	dbtest.AssertLoggedSequence(t, rec, "BEGIN", "ROLLBACK")
}

func TestTypedTransactional(t *testing.T) {
	conn, mock := newPGSession(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT count(*) FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectCommit()

	n, err := database.Transactional(context.Background(), conn, func(ctx context.Context, c types.Connection) (int64, error) {
		stmt, err := c.Execute(ctx, "SELECT count(*) FROM users", types.Params{}, nil)
		if err != nil {
			return 0, err
		}
		defer stmt.Close()
		var count int64
		if !stmt.Next() {
			return 0, stmt.Err()
		}
		if err := stmt.Scan(&count); err != nil {
			return 0, err
		}
		return count, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestTypedTransactionalBoolFalseRollsBack(t *testing.T) {
	conn, mock := newPGSession(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	ok, err := database.Transactional(context.Background(), conn, func(context.Context, types.Connection) (bool, error) {
		return false, nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
}
