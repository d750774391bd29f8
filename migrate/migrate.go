// Package migrate keeps a database schema in line with the registered
// entities. It plans with the diff package and applies with the executor
// package.
package migrate

import (
	"context"

	"github.com/nxtgo/nxt-orm/migrate/diff"
	"github.com/nxtgo/nxt-orm/migrate/executor"
	"github.com/nxtgo/nxt-orm/migrate/introspect"
	"github.com/nxtgo/nxt-orm/migrate/sqlgen"
	"github.com/nxtgo/nxt-orm/orm"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// Engine is the main migration engine
type Engine struct {
	synchronizer *diff.Synchronizer
	executor     *executor.Executor
}

// NewEngine creates an Engine reading the live schema from information_schema.
func NewEngine(conn client.Conn, registry *orm.Registry) *Engine {
	return NewEngineWithInspector(conn, registry, introspect.NewInformationSchema(conn))
}

// NewEngineWithInspector creates an Engine reading the live schema through inspector.
func NewEngineWithInspector(conn client.Conn, registry *orm.Registry, inspector introspect.Inspector) *Engine {
	return &Engine{
		synchronizer: diff.NewSynchronizer(registry, conn.Dialect(), inspector),
		executor:     executor.NewExecutor(conn),
	}
}

// Plan returns the statements needed to synchronize the schema.
func (e *Engine) Plan(ctx context.Context) (*sqlgen.Plan, error) {
	return e.synchronizer.Synchronize(ctx)
}

// Apply executes plan. With batch set the whole plan is sent as one
// multi-statement call, otherwise statements are sent one at a time.
func (e *Engine) Apply(ctx context.Context, plan *sqlgen.Plan, batch bool) (int, error) {
	if batch {
		return e.executor.Apply(ctx, plan)
	}
	return e.executor.ApplyEach(ctx, plan)
}

// Sync plans and applies in one call.
func (e *Engine) Sync(ctx context.Context, batch bool) (*sqlgen.Plan, int, error) {
	plan, err := e.Plan(ctx)
	if err != nil {
		return nil, 0, err
	}
	n, err := e.Apply(ctx, plan, batch)
	return plan, n, err
}
