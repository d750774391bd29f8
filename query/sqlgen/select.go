package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// Direction is the ORDER BY direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Select builds a SELECT statement. Clauses always render in the order
// columns, FROM, JOIN, WHERE, GROUP BY, ORDER BY, LIMIT.
type Select struct {
	conn      client.Conn
	table     string
	alias     string
	columns   []string
	joins     []Join
	wheres    []*Where
	groupBy   []string
	orderBy   []string
	direction Direction
	limited   bool
	offset    int
	count     int
}

// NewSelect creates a Select bound to conn.
func NewSelect(conn client.Conn) *Select {
	return &Select{conn: conn, direction: Asc}
}

// From sets the table and its mandatory alias.
func (s *Select) From(table, alias string) *Select {
	s.table = table
	s.alias = alias
	return s
}

// Columns sets the selected columns. Without columns `alias.*` is selected.
func (s *Select) Columns(columns ...string) *Select {
	s.columns = columns
	return s
}

// Where replaces the root predicates.
func (s *Select) Where(wheres ...*Where) *Select {
	s.wheres = wheres
	return s
}

// AddWhere appends a root predicate.
func (s *Select) AddWhere(w *Where) *Select {
	s.wheres = append(s.wheres, w)
	return s
}

// Join appends a JOIN clause.
func (s *Select) Join(j Join) *Select {
	s.joins = append(s.joins, j)
	return s
}

// InnerJoin appends an INNER JOIN selecting columns from the joined table.
func (s *Select) InnerJoin(table, alias string, on *Where, columns ...string) *Select {
	return s.Join(Join{Type: InnerJoin, Table: table, Alias: alias, On: on, Columns: columns})
}

// LeftJoin appends a LEFT JOIN selecting columns from the joined table.
func (s *Select) LeftJoin(table, alias string, on *Where, columns ...string) *Select {
	return s.Join(Join{Type: LeftJoin, Table: table, Alias: alias, On: on, Columns: columns})
}

// GroupBy sets the GROUP BY columns.
func (s *Select) GroupBy(columns ...string) *Select {
	s.groupBy = columns
	return s
}

// OrderBy sets the ORDER BY columns and direction.
func (s *Select) OrderBy(direction Direction, columns ...string) *Select {
	s.direction = direction
	s.orderBy = columns
	return s
}

// Limit restricts the result to count rows starting at offset.
func (s *Select) Limit(offset, count int) *Select {
	s.limited = true
	s.offset = offset
	s.count = count
	return s
}

func (s *Select) validate() error {
	if s.table == "" || s.alias == "" {
		return dialect.NewConfigError("Select", "a table and an alias are required")
	}
	return nil
}

// ToSQL renders the statement.
func (s *Select) ToSQL() (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}
	d := s.conn.Dialect()

	var columns []string
	if len(s.columns) > 0 {
		columns = append(columns, d.EscapeID(s.columns, false))
	} else {
		columns = append(columns, d.EscapeID(s.alias, false)+".*")
	}
	for _, j := range s.joins {
		if len(j.Columns) > 0 {
			columns = append(columns, d.EscapeID(j.qualifiedColumns(), false))
		}
	}

	parts := []string{"SELECT " + strings.Join(columns, ", ")}
	parts = append(parts, s.filterClauses(d)...)

	if len(s.orderBy) > 0 {
		parts = append(parts, fmt.Sprintf("ORDER BY %s %s", d.EscapeID(s.orderBy, false), s.direction))
	}
	if s.limited {
		parts = append(parts, fmt.Sprintf("LIMIT %d OFFSET %d", s.count, s.offset))
	}

	return strings.Join(parts, " "), nil
}

// filterClauses renders FROM, JOIN, WHERE and GROUP BY. Both the main query
// and the row count are built from it.
func (s *Select) filterClauses(d *dialect.Dialect) []string {
	parts := []string{"FROM " + d.Format("?? ??", s.table, s.alias)}
	for _, j := range s.joins {
		parts = append(parts, j.ToSQL(d))
	}
	if len(s.wheres) > 0 {
		parts = append(parts, "WHERE "+renderWheres(d, s.wheres))
	}
	if len(s.groupBy) > 0 {
		parts = append(parts, "GROUP BY "+d.EscapeID(s.groupBy, false))
	}
	return parts
}

// CountSQL renders a COUNT(*) over the same FROM, JOIN, WHERE and GROUP BY
// clauses. ORDER BY and LIMIT are not applied to the count.
func (s *Select) CountSQL() (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}
	d := s.conn.Dialect()
	filter := strings.Join(s.filterClauses(d), " ")

	if len(s.groupBy) > 0 {
		return d.Format("SELECT COUNT(*) AS ?? FROM (SELECT 1 AS ?? ", "total_rows", "one") +
			filter + d.Format(") ??", "grouped"), nil
	}
	return d.Format("SELECT COUNT(*) AS ?? ", "total_rows") + filter, nil
}

// Execute runs the statement.
func (s *Select) Execute(ctx context.Context) ([]client.Row, error) {
	query, err := s.ToSQL()
	if err != nil {
		return nil, err
	}
	return s.conn.Query(ctx, query)
}

// TotalRows counts the rows matched by the statement, ignoring pagination.
func (s *Select) TotalRows(ctx context.Context) (int64, error) {
	query, err := s.CountSQL()
	if err != nil {
		return 0, err
	}

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Int64("total_rows"), nil
}
