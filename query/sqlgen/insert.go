package sqlgen

import (
	"context"
	"strings"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// ColumnValue is one column assignment.
type ColumnValue struct {
	Column string
	Value  any
}

// Insert builds an INSERT statement. On dialects with ReturningID the new
// id is read from a RETURNING clause.
type Insert struct {
	conn        client.Conn
	table       string
	pairs       []ColumnValue
	noReturning bool
}

// InsertResult is the outcome of Insert.Execute.
type InsertResult struct {
	ID           int64
	RowsAffected int64
}

// NewInsert creates an Insert bound to conn.
func NewInsert(conn client.Conn) *Insert {
	return &Insert{conn: conn}
}

// Into sets the target table.
func (i *Insert) Into(table string) *Insert {
	i.table = table
	return i
}

// Set appends a column assignment.
func (i *Insert) Set(column string, value any) *Insert {
	i.pairs = append(i.pairs, ColumnValue{Column: column, Value: value})
	return i
}

// Values appends several column assignments.
func (i *Insert) Values(pairs ...ColumnValue) *Insert {
	i.pairs = append(i.pairs, pairs...)
	return i
}

// WithoutReturning skips the RETURNING clause, for tables without an id
// column such as join tables.
func (i *Insert) WithoutReturning() *Insert {
	i.noReturning = true
	return i
}

func (i *Insert) returning() bool {
	return i.conn.Dialect().ReturningID && !i.noReturning
}

// ToSQL renders the statement.
func (i *Insert) ToSQL() (string, error) {
	if i.table == "" {
		return "", dialect.NewConfigError("Insert", "a table is required")
	}
	if len(i.pairs) == 0 {
		return "", dialect.NewConfigError("Insert", "at least one column/value pair is required")
	}
	d := i.conn.Dialect()

	columns, values := splitPairs(i.pairs)
	sql := d.Format("INSERT INTO ?? (??) VALUES ?", i.table, columns, values)
	if i.returning() {
		sql += d.Format(" RETURNING ??", "id")
	}
	return sql, nil
}

// Execute runs the statement and reports the generated id.
func (i *Insert) Execute(ctx context.Context) (InsertResult, error) {
	query, err := i.ToSQL()
	if err != nil {
		return InsertResult{}, err
	}

	if i.returning() {
		rows, err := i.conn.Query(ctx, query)
		if err != nil {
			return InsertResult{}, err
		}
		result := InsertResult{RowsAffected: int64(len(rows))}
		if len(rows) > 0 {
			result.ID = rows[0].Int64("id")
		}
		return result, nil
	}

	res, err := i.conn.Exec(ctx, query)
	if err != nil {
		return InsertResult{}, err
	}
	return InsertResult{ID: res.LastInsertID, RowsAffected: res.RowsAffected}, nil
}

func splitPairs(pairs []ColumnValue) ([]string, []any) {
	columns := make([]string, len(pairs))
	values := make([]any, len(pairs))
	for n, p := range pairs {
		columns[n] = p.Column
		values[n] = p.Value
	}
	return columns, values
}

// assignments renders `col = value` pairs joined by ", ".
func assignments(d *dialect.Dialect, pairs []ColumnValue) string {
	parts := make([]string, len(pairs))
	for n, p := range pairs {
		parts[n] = d.Format("?? = ?", p.Column, p.Value)
	}
	return strings.Join(parts, ", ")
}
