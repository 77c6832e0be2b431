package database

import (
	"context"

	"github.com/gaborage/go-datasource/database/types"
)

// DisableConstraints runs op with foreign key checks suppressed on this session and
// restores them exactly once on every exit path, panics included. Nested calls share
// the outermost suppression. op's result and error are returned unchanged; a restore
// failure is returned only when op itself succeeded, and logged otherwise.
//
// Dialects without dynamic constraints run op directly.
func (c *Connection) DisableConstraints(ctx context.Context, op types.Operation) (value any, err error) {
	if c.closed {
		return nil, c.closedError("constraints")
	}
	if !c.dialect.SupportsDynamicConstraints() {
		return op(ctx, c)
	}

	if c.constraintDepth == 0 {
		guard, gerr := c.dialect.DisableConstraints(ctx, c)
		if gerr != nil {
			return nil, c.driverError("constraints", "", gerr)
		}
		c.guard = guard
	}
	c.constraintDepth++

	finished := false
	defer func() {
		c.constraintDepth--
		if c.constraintDepth > 0 || c.guard == nil {
			return
		}
		guard := c.guard
		c.guard = nil

		rerr := guard.Release(context.WithoutCancel(ctx))
		if rerr == nil {
			return
		}
		rerr = c.driverError("constraints", "", rerr)
		if finished && err == nil {
			err = rerr
			return
		}
		c.logCleanupError(rerr, "Failed to restore constraints")
	}()

	value, err = op(ctx, c)
	finished = true
	return value, err
}
