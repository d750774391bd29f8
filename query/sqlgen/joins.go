package sqlgen

import (
	"github.com/nxtgo/nxt-orm/dialect"
)

// JoinType selects the JOIN keyword.
type JoinType string

const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
)

// Join represents a JOIN clause
type Join struct {
	Type    JoinType
	Table   string
	Alias   string
	On      *Where
	Columns []string // selected columns, qualified with Alias when rendered
}

// qualifiedColumns returns the join's columns prefixed with its alias.
func (j Join) qualifiedColumns() []string {
	cols := make([]string, len(j.Columns))
	for i, col := range j.Columns {
		cols[i] = j.Alias + "." + col
	}
	return cols
}

// ToSQL renders the JOIN clause.
func (j Join) ToSQL(d *dialect.Dialect) string {
	joinType := j.Type
	if joinType == "" {
		joinType = InnerJoin
	}

	sql := d.Format(string(joinType)+" ?? ??", j.Table, j.Alias)
	if j.On != nil {
		sql += " ON " + j.On.ToSQL(d)
	}
	return sql
}
