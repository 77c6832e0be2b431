package database

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gaborage/go-datasource/database/types"
)

const savepointPrefix = "LEVEL"

// Transactional runs op inside a transaction and commits unless op fails or returns
// exactly false. An op error is returned unchanged after the rollback. A panic in op
// rolls the level back and keeps unwinding.
//
// Nested calls open a savepoint per level when the dialect supports them. Otherwise
// they join the outer transaction, and an inner rollback marks it rollback-only so the
// outer commit fails with types.ErrRollbackOnly.
func (c *Connection) Transactional(ctx context.Context, op types.Operation) (types.TxResult, error) {
	if err := c.begin(ctx); err != nil {
		return types.TxResult{Outcome: types.TxRolledBack, Reason: types.ReasonError, Err: err}, err
	}

	finished := false
	defer func() {
		if !finished {
			c.logCleanupError(c.rollback(ctx), "Failed to roll back transaction after panic")
		}
	}()

	value, opErr := op(ctx, c)
	finished = true

	if opErr != nil {
		c.logCleanupError(c.rollback(ctx), "Failed to roll back transaction")
		return types.TxResult{Outcome: types.TxRolledBack, Reason: types.ReasonError, Value: value, Err: opErr}, opErr
	}

	if types.IsExplicitAbort(value) {
		result := types.TxResult{Outcome: types.TxRolledBack, Reason: types.ReasonExplicitFalse, Value: false}
		if err := c.rollback(ctx); err != nil {
			return result, err
		}
		return result, nil
	}

	if err := c.commit(ctx); err != nil {
		return types.TxResult{Outcome: types.TxRolledBack, Reason: types.ReasonError, Value: value, Err: err}, err
	}
	return types.TxResult{Outcome: types.TxCommitted, Value: value}, nil
}

// Transactional is the typed form of Connection.Transactional. When T is bool, returning
// false rolls back.
func Transactional[T any](ctx context.Context, conn types.Connection, op func(ctx context.Context, conn types.Connection) (T, error)) (T, error) {
	var zero T
	result, err := conn.Transactional(ctx, func(ctx context.Context, conn types.Connection) (any, error) {
		return op(ctx, conn)
	})
	if v, ok := result.Value.(T); ok {
		return v, err
	}
	return zero, err
}

func savepointName(level int) string {
	return savepointPrefix + strconv.Itoa(level)
}

func (c *Connection) begin(ctx context.Context) error {
	if c.closed {
		return c.closedError("begin")
	}

	if c.txDepth == 0 {
		start := time.Now()
		tx, err := c.conn.BeginTx(ctx, nil)
		if err != nil {
			err = c.driverError("begin", "BEGIN", err)
		}
		c.logQuery(ctx, "BEGIN", nil, time.Since(start), 0, err)
		if err != nil {
			return err
		}
		c.tx, c.txDepth, c.rollbackOnly = tx, 1, false
		return nil
	}

	if c.dialect.SupportsSavepoints() {
		if err := c.execCommand(ctx, "savepoint", c.dialect.SavepointSQL(savepointName(c.txDepth))); err != nil {
			return err
		}
	}
	c.txDepth++
	return nil
}

func (c *Connection) commit(ctx context.Context) error {
	if c.txDepth == 0 {
		// closed from inside the block; Close already rolled back
		return c.closedError("commit")
	}
	if c.txDepth > 1 {
		c.txDepth--
		if !c.dialect.SupportsSavepoints() {
			return nil
		}
		release := c.dialect.ReleaseSavepointSQL(savepointName(c.txDepth))
		if release == "" {
			return nil
		}
		return c.execCommand(ctx, "savepoint", release)
	}

	if c.rollbackOnly {
		if err := c.rollback(ctx); err != nil {
			return errors.Join(types.ErrRollbackOnly, err)
		}
		return types.ErrRollbackOnly
	}

	tx := c.tx
	c.tx, c.txDepth = nil, 0

	start := time.Now()
	err := tx.Commit()
	if err != nil {
		err = c.driverError("commit", "COMMIT", err)
	}
	c.logQuery(ctx, "COMMIT", nil, time.Since(start), 0, err)
	return err
}

func (c *Connection) rollback(ctx context.Context) error {
	if c.txDepth == 0 {
		return nil
	}

	if c.txDepth > 1 {
		c.txDepth--
		if !c.dialect.SupportsSavepoints() {
			c.rollbackOnly = true
			return nil
		}
		return c.execCommand(context.WithoutCancel(ctx), "rollback", c.dialect.RollbackSavepointSQL(savepointName(c.txDepth)))
	}

	tx := c.tx
	c.tx, c.txDepth, c.rollbackOnly = nil, 0, false

	start := time.Now()
	err := tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		// the driver already aborted it, typically after context cancellation
		err = nil
	}
	if err != nil {
		err = c.driverError("rollback", "ROLLBACK", err)
	}
	c.logQuery(ctx, "ROLLBACK", nil, time.Since(start), 0, err)
	return err
}

// execCommand runs a transaction control statement on the current executor.
func (c *Connection) execCommand(ctx context.Context, op, query string) error {
	start := time.Now()
	_, err := c.executor().ExecContext(ctx, query)
	if err != nil {
		err = c.driverError(op, query, err)
	}
	c.logQuery(ctx, query, nil, time.Since(start), 0, err)
	return err
}

func (c *Connection) logCleanupError(err error, msg string) {
	if err == nil {
		return
	}
	c.log.Error().Err(err).Str("datasource", c.name).Msg(msg)
}
