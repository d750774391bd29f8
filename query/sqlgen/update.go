package sqlgen

import (
	"context"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// Update builds an UPDATE statement.
type Update struct {
	conn   client.Conn
	table  string
	pairs  []ColumnValue
	wheres []*Where
}

// NewUpdate creates an Update bound to conn.
func NewUpdate(conn client.Conn) *Update {
	return &Update{conn: conn}
}

// Table sets the target table.
func (u *Update) Table(table string) *Update {
	u.table = table
	return u
}

// Set appends a column assignment.
func (u *Update) Set(column string, value any) *Update {
	u.pairs = append(u.pairs, ColumnValue{Column: column, Value: value})
	return u
}

// Values appends several column assignments.
func (u *Update) Values(pairs ...ColumnValue) *Update {
	u.pairs = append(u.pairs, pairs...)
	return u
}

// Where replaces the root predicates.
func (u *Update) Where(wheres ...*Where) *Update {
	u.wheres = wheres
	return u
}

// ToSQL renders the statement.
func (u *Update) ToSQL() (string, error) {
	if u.table == "" {
		return "", dialect.NewConfigError("Update", "a table is required")
	}
	if len(u.pairs) == 0 {
		return "", dialect.NewConfigError("Update", "at least one column/value pair is required")
	}
	d := u.conn.Dialect()

	sql := d.Format("UPDATE ?? SET ", u.table) + assignments(d, u.pairs)
	if len(u.wheres) > 0 {
		sql += " WHERE " + renderWheres(d, u.wheres)
	}
	return sql, nil
}

// Execute runs the statement and returns the number of affected rows.
func (u *Update) Execute(ctx context.Context) (int64, error) {
	query, err := u.ToSQL()
	if err != nil {
		return 0, err
	}

	res, err := u.conn.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
