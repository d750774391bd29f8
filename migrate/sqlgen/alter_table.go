package sqlgen

import (
	"context"
	"fmt"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// AlterAction is the ALTER TABLE verb.
type AlterAction string

const (
	Add    AlterAction = "ADD"
	Drop   AlterAction = "DROP"
	Modify AlterAction = "MODIFY"
)

// AlterTable adds, drops or modifies a single table element.
type AlterTable struct {
	dialect *dialect.Dialect
	table   string
	action  AlterAction
	element TableElement
}

// NewAlterTable creates an AlterTable.
func NewAlterTable(d *dialect.Dialect, table string, action AlterAction, element TableElement) *AlterTable {
	return &AlterTable{dialect: d, table: table, action: action, element: bind(d, element)}
}

// bind attaches d to elements built without a dialect.
func bind(d *dialect.Dialect, element TableElement) TableElement {
	switch e := element.(type) {
	case Column:
		e.Dialect = d
		return e
	case Index:
		e.Dialect = d
		return e
	case ForeignKey:
		e.Dialect = d
		return e
	}
	return element
}

// Table returns the table name.
func (at *AlterTable) Table() string {
	return at.table
}

// Action returns the ALTER TABLE verb.
func (at *AlterTable) Action() AlterAction {
	return at.action
}

// Element returns the altered element.
func (at *AlterTable) Element() TableElement {
	return at.element
}

// ColumnName returns the altered column name, or "" when the element is not a column.
func (at *AlterTable) ColumnName() string {
	if c, ok := at.element.(Column); ok {
		return c.Name
	}
	return ""
}

// ToSQL renders the statement. Enum columns on dialects without inline enums
// get a DROP TYPE / CREATE TYPE pair first.
func (at *AlterTable) ToSQL() (string, error) {
	if at.table == "" {
		return "", dialect.NewConfigError("AlterTable", "a table is required")
	}
	if at.element == nil {
		return "", dialect.NewConfigError("AlterTable", "an element is required")
	}
	d := at.dialect

	pre := ""
	if c, ok := at.element.(Column); ok && at.action != Drop && c.usesNamedEnum() {
		pre = c.Enum.DropSQL(d) + "\n" + c.Enum.CreateSQL(d) + "\n"
	}

	clause, err := at.clause()
	if err != nil {
		return "", err
	}
	return pre + d.Format("ALTER TABLE ?? ", at.table) + clause + ";", nil
}

func (at *AlterTable) clause() (string, error) {
	switch at.action {
	case Add:
		def, err := at.element.AddSQL()
		if err != nil {
			return "", err
		}
		return "ADD " + def, nil
	case Drop:
		def, err := at.element.DropSQL()
		if err != nil {
			return "", err
		}
		return "DROP " + def, nil
	case Modify:
		return at.modifyClause()
	default:
		return "", dialect.NewConfigError("AlterTable", fmt.Sprintf("unknown action %q", string(at.action)))
	}
}

func (at *AlterTable) modifyClause() (string, error) {
	c, ok := at.element.(Column)
	if !ok {
		return "", dialect.NewConfigError("AlterTable", "only columns can be modified")
	}
	d := at.dialect

	if d.ModifyStyle == dialect.ModifyColumn {
		def, err := c.AddSQL()
		if err != nil {
			return "", err
		}
		return "MODIFY " + def, nil
	}

	typ, err := c.TypeSQL()
	if err != nil {
		return "", err
	}
	nullability := "SET NOT NULL"
	if c.Nullable {
		nullability = "DROP NOT NULL"
	}
	return d.Format("ALTER COLUMN ?? TYPE ", c.Name) + typ + ", " +
		d.Format("ALTER COLUMN ?? ", c.Name) + nullability, nil
}

// Execute runs the statement.
func (at *AlterTable) Execute(ctx context.Context, conn client.Conn) error {
	return execute(ctx, conn, at)
}
