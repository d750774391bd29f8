package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/migrate/sqlgen"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

func newExecutor(t *testing.T) (*Executor, sqlmock.Sqlmock, *dialect.Dialect) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	d := dialect.MySQL("app")
	return NewExecutor(client.New(sqlx.NewDb(db, "sqlmock"), d)), mock, d
}

func samplePlan(d *dialect.Dialect) *sqlgen.Plan {
	plan := sqlgen.NewPlan()
	plan.Append(sqlgen.NewCreateTable(d, "user").AddColumn(sqlgen.Column{Name: "id", Type: dialect.Int}))
	plan.Append(sqlgen.NewAlterTable(d, "post", sqlgen.Add, sqlgen.Column{Name: "title", Type: dialect.Varchar, Length: 20}))
	return plan
}

const (
	createUser = "CREATE TABLE `user` (\n    `id` INT NOT NULL\n) ENGINE = InnoDB;"
	alterPost  = "ALTER TABLE `post` ADD `title` VARCHAR(20) NOT NULL;"
)

func TestApplyBatchesStatements(t *testing.T) {
	e, mock, d := newExecutor(t)
	mock.ExpectExec(createUser + "\n" + alterPost).WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := e.Apply(context.Background(), samplePlan(d))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEmptyPlan(t *testing.T) {
	e, mock, _ := newExecutor(t)

	n, err := e.Apply(context.Background(), sqlgen.NewPlan())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyWrapsDriverError(t *testing.T) {
	e, mock, d := newExecutor(t)
	mock.ExpectExec(createUser + "\n" + alterPost).WillReturnError(errors.New("syntax error"))

	_, err := e.Apply(context.Background(), samplePlan(d))
	require.Error(t, err)
	var driverErr *dialect.DriverError
	require.ErrorAs(t, err, &driverErr)
	assert.Equal(t, createUser+"\n"+alterPost, driverErr.SQL)
}

func TestApplyEachStopsAtFirstFailure(t *testing.T) {
	e, mock, d := newExecutor(t)
	mock.ExpectExec(createUser).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(alterPost).WillReturnError(errors.New("table post does not exist"))

	n, err := e.ApplyEach(context.Background(), samplePlan(d))
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "failed to execute statement 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
