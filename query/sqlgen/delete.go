package sqlgen

import (
	"context"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// Delete builds a DELETE statement.
type Delete struct {
	conn   client.Conn
	table  string
	wheres []*Where
}

// NewDelete creates a Delete bound to conn.
func NewDelete(conn client.Conn) *Delete {
	return &Delete{conn: conn}
}

// From sets the target table.
func (del *Delete) From(table string) *Delete {
	del.table = table
	return del
}

// Where replaces the root predicates.
func (del *Delete) Where(wheres ...*Where) *Delete {
	del.wheres = wheres
	return del
}

// ToSQL renders the statement.
func (del *Delete) ToSQL() (string, error) {
	if del.table == "" {
		return "", dialect.NewConfigError("Delete", "a table is required")
	}
	d := del.conn.Dialect()

	sql := d.Format("DELETE FROM ??", del.table)
	if len(del.wheres) > 0 {
		sql += " WHERE " + renderWheres(d, del.wheres)
	}
	return sql, nil
}

// Execute runs the statement and returns the number of affected rows.
func (del *Delete) Execute(ctx context.Context) (int64, error) {
	query, err := del.ToSQL()
	if err != nil {
		return 0, err
	}

	res, err := del.conn.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}
