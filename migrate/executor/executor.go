// Package executor applies synchronization plans to a database.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nxtgo/nxt-orm/internal/debug"
	"github.com/nxtgo/nxt-orm/migrate/sqlgen"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// Executor executes synchronization plans. Statements are not wrapped in a
// transaction; DDL already applied stays applied when a later statement fails.
type Executor struct {
	conn client.Conn
	log  *slog.Logger
}

// NewExecutor creates a new plan executor.
func NewExecutor(conn client.Conn) *Executor {
	return &Executor{conn: conn, log: debug.Component("executor")}
}

// Apply sends the whole plan as one multi-statement call and returns the
// number of statements it contained. The connection must accept
// multi-statement batches.
func (e *Executor) Apply(ctx context.Context, plan *sqlgen.Plan) (int, error) {
	if plan.IsEmpty() {
		return 0, nil
	}

	query, err := plan.SQL()
	if err != nil {
		return 0, err
	}
	checksum, err := plan.Checksum()
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := e.conn.Exec(ctx, query); err != nil {
		return 0, fmt.Errorf("failed to execute migration: %w", err)
	}

	e.log.Info("Plan applied", "statements", plan.Len(), "checksum", checksum, "elapsed", time.Since(start))
	return plan.Len(), nil
}

// ApplyEach executes the statements one at a time and stops at the first
// failure. It returns the number of statements that succeeded.
func (e *Executor) ApplyEach(ctx context.Context, plan *sqlgen.Plan) (int, error) {
	start := time.Now()
	for i, st := range plan.Statements() {
		if err := st.Execute(ctx, e.conn); err != nil {
			return i, fmt.Errorf("failed to execute statement %d: %w", i+1, err)
		}
		kind, element := sqlgen.Describe(st)
		e.log.Debug("Statement applied", "kind", kind, "table", st.Table(), "element", element)
	}

	e.log.Info("Plan applied", "statements", plan.Len(), "elapsed", time.Since(start))
	return plan.Len(), nil
}
