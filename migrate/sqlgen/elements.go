// Package sqlgen builds the DDL statements emitted by the schema synchronizer.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/nxtgo/nxt-orm/dialect"
)

// TableElement is anything CREATE TABLE or ALTER TABLE can add or drop.
type TableElement interface {
	AddSQL() (string, error)
	DropSQL() (string, error)
}

// IndexKind is the kind of key an Index declares.
type IndexKind string

const (
	PrimaryKey IndexKind = "PRIMARY KEY"
	Unique     IndexKind = "UNIQUE"
)

// ReferenceOption is a foreign key ON DELETE / ON UPDATE action.
type ReferenceOption string

const (
	Cascade    ReferenceOption = "CASCADE"
	SetNull    ReferenceOption = "SET NULL"
	Restrict   ReferenceOption = "RESTRICT"
	NoAction   ReferenceOption = "NO ACTION"
	SetDefault ReferenceOption = "SET DEFAULT"
)

// SQL returns the keyword for the option.
func (o ReferenceOption) SQL() (string, error) {
	switch o {
	case Cascade, SetNull, Restrict, NoAction, SetDefault:
		return string(o), nil
	default:
		return "", dialect.NewConfigError("ForeignKey", fmt.Sprintf("unknown reference option %q", string(o)))
	}
}

// EnumType is a named set of allowed values.
type EnumType struct {
	Name   string
	Values []string
}

// DropSQL renders the DROP TYPE statement used before recreating a named enum.
func (e EnumType) DropSQL(d *dialect.Dialect) string {
	return "DROP TYPE IF EXISTS " + d.EscapeID(e.Name, true) + ";"
}

// CreateSQL renders the CREATE TYPE ... AS ENUM statement.
func (e EnumType) CreateSQL(d *dialect.Dialect) string {
	return "CREATE TYPE " + d.EscapeID(e.Name, true) + d.Format(" AS ENUM ?;", e.Values)
}

// Column is a column definition.
type Column struct {
	Dialect       *dialect.Dialect
	Name          string
	Type          dialect.TypeTag
	Length        int
	Nullable      bool
	AutoIncrement bool
	Enum          *EnumType
}

// TypeSQL renders the column type.
func (c Column) TypeSQL() (string, error) {
	d := c.Dialect
	switch c.Type {
	case dialect.Boolean:
		return "BOOLEAN", nil
	case dialect.Char:
		return sized("CHAR", c.Length), nil
	case dialect.Float:
		return "FLOAT", nil
	case dialect.Int:
		if d.SizedIntegers {
			return sized("INT", c.Length), nil
		}
		return "INT", nil
	case dialect.Text, dialect.JSON:
		return "TEXT", nil
	case dialect.Varchar:
		return sized("VARCHAR", c.Length), nil
	case dialect.DateTime:
		return d.DateTimeType, nil
	case dialect.Enum:
		if c.Enum == nil || c.Enum.Name == "" || len(c.Enum.Values) == 0 {
			return "", dialect.NewConfigError("Column", fmt.Sprintf("enum column %q needs an enum type with values", c.Name))
		}
		if d.InlineEnum {
			return d.Format("ENUM ?", c.Enum.Values), nil
		}
		return d.EscapeID(c.Enum.Name, true), nil
	default:
		return "", dialect.NewConfigError("Column", fmt.Sprintf("unknown type %q for column %q", string(c.Type), c.Name))
	}
}

func sized(keyword string, length int) string {
	if length > 0 {
		return fmt.Sprintf("%s(%d)", keyword, length)
	}
	return keyword
}

func (c Column) nullSQL() string {
	if c.Nullable {
		return "NULL"
	}
	return "NOT NULL"
}

// usesNamedEnum reports whether the column needs a CREATE TYPE before use.
func (c Column) usesNamedEnum() bool {
	return c.Type == dialect.Enum && c.Enum != nil && !c.Dialect.InlineEnum
}

// AddSQL renders the column definition.
func (c Column) AddSQL() (string, error) {
	d := c.Dialect
	if c.Name == "" {
		return "", dialect.NewConfigError("Column", "a column name is required")
	}

	if c.AutoIncrement && d.AutoIncrementReplaces {
		return d.Format("??", c.Name) + " " + d.AutoIncrement + " " + c.nullSQL(), nil
	}

	typ, err := c.TypeSQL()
	if err != nil {
		return "", err
	}

	parts := []string{d.Format("??", c.Name), typ, c.nullSQL()}
	if c.AutoIncrement {
		parts = append(parts, d.AutoIncrement)
	}
	return strings.Join(parts, " "), nil
}

// DropSQL renders the DROP fragment.
func (c Column) DropSQL() (string, error) {
	if c.Name == "" {
		return "", dialect.NewConfigError("Column", "a column name is required")
	}
	return c.Dialect.Format("COLUMN ??", c.Name), nil
}

// Index is a PRIMARY KEY or UNIQUE key over one or more columns.
type Index struct {
	Dialect *dialect.Dialect
	Columns []string
	Kind    IndexKind
	// Name is required to drop a key on dialects that drop keys by constraint name.
	Name string
}

func (i Index) kindSQL() (string, error) {
	switch i.Kind {
	case PrimaryKey, Unique:
		return string(i.Kind), nil
	default:
		return "", dialect.NewConfigError("Index", fmt.Sprintf("unknown index kind %q", string(i.Kind)))
	}
}

// AddSQL renders the key definition.
func (i Index) AddSQL() (string, error) {
	kind, err := i.kindSQL()
	if err != nil {
		return "", err
	}
	if len(i.Columns) == 0 {
		return "", dialect.NewConfigError("Index", "at least one column is required")
	}
	return i.Dialect.Format(kind+" (??)", i.Columns), nil
}

// DropSQL renders the DROP fragment.
func (i Index) DropSQL() (string, error) {
	if _, err := i.kindSQL(); err != nil {
		return "", err
	}
	d := i.Dialect

	if d.DropIndex == "INDEX" {
		if i.Kind == PrimaryKey {
			return "PRIMARY KEY", nil
		}
		name := i.Name
		if name == "" && len(i.Columns) > 0 {
			name = i.Columns[0]
		}
		return "INDEX " + d.EscapeID(name, true), nil
	}

	if i.Name == "" {
		return "", dialect.NewConfigError("Index", "a key name is required to drop it")
	}
	return d.DropIndex + " " + d.EscapeID(i.Name, true), nil
}

// ForeignKey is a named foreign key constraint.
type ForeignKey struct {
	Dialect   *dialect.Dialect
	Column    string
	Name      string
	RefTable  string
	RefColumn string
	OnDelete  ReferenceOption
	OnUpdate  ReferenceOption
}

// AddSQL renders the constraint definition.
func (fk ForeignKey) AddSQL() (string, error) {
	onDelete, err := fk.OnDelete.SQL()
	if err != nil {
		return "", err
	}
	onUpdate, err := fk.OnUpdate.SQL()
	if err != nil {
		return "", err
	}
	d := fk.Dialect

	return fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE %s ON UPDATE %s",
		d.EscapeID(fk.Name, true),
		d.EscapeID(fk.Column, false),
		d.EscapeID(fk.RefTable, false),
		d.EscapeID(fk.RefColumn, false),
		onDelete,
		onUpdate,
	), nil
}

// DropSQL renders the DROP fragment.
func (fk ForeignKey) DropSQL() (string, error) {
	return fk.Dialect.DropForeignKey + " " + fk.Dialect.EscapeID(fk.Name, true), nil
}
