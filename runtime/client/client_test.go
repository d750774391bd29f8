package client

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtgo/nxt-orm/dialect"
)

func newMock(t *testing.T, d *dialect.Dialect) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "sqlmock"), d), mock
}

func TestClientQuery(t *testing.T) {
	c, mock := newMock(t, dialect.MySQL("app"))
	mock.ExpectQuery("SELECT * FROM `user`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "active"}).
			AddRow(int64(1), []byte("bob"), nil).
			AddRow(int64(2), []byte("alice"), int64(1)))

	rows, err := c.Query(context.Background(), "SELECT * FROM `user`")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[0]["name"])
	assert.Equal(t, int64(1), rows[0].Int64("id"))
	assert.True(t, rows[0].IsNull("active"))
	assert.True(t, rows[1].Bool("active"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientExec(t *testing.T) {
	c, mock := newMock(t, dialect.MySQL("app"))
	mock.ExpectExec("DELETE FROM `user`").WillReturnResult(sqlmock.NewResult(0, 3))

	res, err := c.Exec(context.Background(), "DELETE FROM `user`")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.RowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientWrapsDriverErrors(t *testing.T) {
	c, mock := newMock(t, dialect.MySQL("app"))
	mock.ExpectExec("INSERT").WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := c.Exec(context.Background(), "INSERT")
	var driverErr *dialect.DriverError
	require.ErrorAs(t, err, &driverErr)
	assert.Equal(t, "1062", driverErr.Code)
	assert.Equal(t, "INSERT", driverErr.SQL)
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name    string
		dialect *dialect.Dialect
		reply   string
		wantErr bool
	}{
		{"mysql 8", dialect.MySQL("app"), "8.0.35-0ubuntu0.22.04.1", false},
		{"mysql 5.6", dialect.MySQL("app"), "5.6.51-log", true},
		{"postgres 15", dialect.Postgres(), "PostgreSQL 15.3 on x86_64-pc-linux-gnu", false},
		{"postgres 9.4", dialect.Postgres(), "PostgreSQL 9.4.26", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mock := newMock(t, tt.dialect)
			mock.ExpectQuery("SELECT VERSION() AS version").
				WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(tt.reply))

			v, err := CheckVersion(context.Background(), c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, v)
		})
	}
}

func TestRowCaseInsensitiveLookup(t *testing.T) {
	row := Row{"COLUMN_NAME": "id", "IS_NULLABLE": "NO"}
	assert.Equal(t, "id", row.String("column_name"))
	assert.False(t, row.Bool("is_nullable"))
	assert.True(t, row.IsNull("missing"))
}
