package sqlgen

import (
	"context"
	"strings"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// Statement is one entry of a synchronization plan.
type Statement interface {
	Table() string
	ToSQL() (string, error)
	Execute(ctx context.Context, conn client.Conn) error
}

// CreateTable builds a CREATE TABLE statement.
type CreateTable struct {
	dialect     *dialect.Dialect
	table       string
	columns     []Column
	indexes     []Index
	foreignKeys []ForeignKey
}

// NewCreateTable creates a CreateTable for table.
func NewCreateTable(d *dialect.Dialect, table string) *CreateTable {
	return &CreateTable{dialect: d, table: table}
}

// Table returns the table name.
func (ct *CreateTable) Table() string {
	return ct.table
}

// Columns returns the declared columns.
func (ct *CreateTable) Columns() []Column {
	return ct.columns
}

// Indexes returns the declared keys.
func (ct *CreateTable) Indexes() []Index {
	return ct.indexes
}

// ForeignKeys returns the declared foreign keys.
func (ct *CreateTable) ForeignKeys() []ForeignKey {
	return ct.foreignKeys
}

// AddColumn appends a column.
func (ct *CreateTable) AddColumn(c Column) *CreateTable {
	c.Dialect = ct.dialect
	ct.columns = append(ct.columns, c)
	return ct
}

// AddIndex appends a key.
func (ct *CreateTable) AddIndex(i Index) *CreateTable {
	i.Dialect = ct.dialect
	ct.indexes = append(ct.indexes, i)
	return ct
}

// AddForeignKey appends a foreign key.
func (ct *CreateTable) AddForeignKey(fk ForeignKey) *CreateTable {
	fk.Dialect = ct.dialect
	ct.foreignKeys = append(ct.foreignKeys, fk)
	return ct
}

// mergedIndexes folds every PRIMARY KEY declaration into one composite key,
// placed first.
func (ct *CreateTable) mergedIndexes() []Index {
	var primary *Index
	var others []Index
	for _, idx := range ct.indexes {
		if idx.Kind != PrimaryKey {
			others = append(others, idx)
			continue
		}
		if primary == nil {
			merged := idx
			merged.Columns = append([]string{}, idx.Columns...)
			primary = &merged
			continue
		}
		for _, col := range idx.Columns {
			if !contains(primary.Columns, col) {
				primary.Columns = append(primary.Columns, col)
			}
		}
	}

	if primary == nil {
		return others
	}
	return append([]Index{*primary}, others...)
}

// ToSQL renders the statement. Dialects without inline enums get a
// DROP TYPE / CREATE TYPE pair for every enum column first.
func (ct *CreateTable) ToSQL() (string, error) {
	if ct.table == "" {
		return "", dialect.NewConfigError("CreateTable", "a table is required")
	}
	if len(ct.columns) == 0 {
		return "", dialect.NewConfigError("CreateTable", "at least one column is required")
	}
	d := ct.dialect

	var pre strings.Builder
	var defs []string
	for _, c := range ct.columns {
		def, err := c.AddSQL()
		if err != nil {
			return "", err
		}
		defs = append(defs, "    "+def)

		if c.usesNamedEnum() {
			pre.WriteString(c.Enum.DropSQL(d) + "\n")
			pre.WriteString(c.Enum.CreateSQL(d) + "\n")
		}
	}
	for _, idx := range ct.mergedIndexes() {
		def, err := idx.AddSQL()
		if err != nil {
			return "", err
		}
		defs = append(defs, "    "+def)
	}
	for _, fk := range ct.foreignKeys {
		def, err := fk.AddSQL()
		if err != nil {
			return "", err
		}
		defs = append(defs, "    "+def)
	}

	sql := pre.String() + d.Format("CREATE TABLE ?? (\n", ct.table) + strings.Join(defs, ",\n") + "\n)"
	if d.InlineEngine {
		sql += " ENGINE = " + d.Engine
	}
	return sql + ";", nil
}

// Execute runs the statement.
func (ct *CreateTable) Execute(ctx context.Context, conn client.Conn) error {
	return execute(ctx, conn, ct)
}

func execute(ctx context.Context, conn client.Conn, s Statement) error {
	query, err := s.ToSQL()
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, query)
	return err
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
