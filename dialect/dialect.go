// Package dialect describes the two supported relational engines as data.
//
// A Dialect carries everything that differs between MySQL and PostgreSQL:
// identifier quoting, value escaping, type vocabulary and the column names
// and heuristics used to read information_schema. Nothing downstream branches
// on the engine itself, it only reads fields of the Dialect it was given.
package dialect

import (
	"fmt"
	"strings"
)

// Supported dialect names, as used in configuration files.
const (
	MySQLName    = "mysql"
	PostgresName = "pgsql"
)

// TypeTag is the logical column type declared on an entity field.
type TypeTag string

const (
	Boolean  TypeTag = "boolean"
	Char     TypeTag = "char"
	DateTime TypeTag = "datetime"
	Enum     TypeTag = "enum"
	Float    TypeTag = "float"
	Int      TypeTag = "int"
	JSON     TypeTag = "json"
	Text     TypeTag = "text"
	Varchar  TypeTag = "varchar"
)

// ModifyStyle selects how an ALTER TABLE ... MODIFY is spelled.
type ModifyStyle int

const (
	// ModifyColumn renders `MODIFY <column definition>`.
	ModifyColumn ModifyStyle = iota
	// AlterColumnType renders `ALTER COLUMN x TYPE t, ALTER COLUMN x SET|DROP NOT NULL`.
	AlterColumnType
)

// Dialect is immutable once constructed. One instance is bound to one connection.
type Dialect struct {
	// Name is the configuration name (mysql, pgsql).
	Name string
	// DriverName is the database/sql driver registered for this engine.
	DriverName string
	// Quote is the identifier quote character.
	Quote byte
	// Engine is rendered as the CREATE TABLE ENGINE clause when InlineEngine is set.
	Engine       string
	InlineEngine bool
	// AutoIncrement is the keyword appended to (MySQL) or replacing (PostgreSQL)
	// the type of an auto-increment column.
	AutoIncrement         string
	AutoIncrementReplaces bool
	// Schema is the table_schema literal used for introspection.
	Schema       string
	DateTimeType string
	// SizedIntegers keeps the display width in INT(n).
	SizedIntegers bool
	// InlineEnum renders enum columns as ENUM (...) instead of a named type.
	InlineEnum bool
	// ReturningID appends RETURNING "id" to inserts.
	ReturningID    bool
	ModifyStyle    ModifyStyle
	DropForeignKey string
	DropIndex      string
	// MinVersion is the oldest server version the generated DDL is known to work on.
	MinVersion    string
	Introspection Introspection
	// EscapeString quotes a string literal.
	EscapeString func(string) string
}

// MySQL returns the MySQL dialect bound to the given database name.
func MySQL(database string) *Dialect {
	return &Dialect{
		Name:           MySQLName,
		DriverName:     "mysql",
		Quote:          '`',
		Engine:         "InnoDB",
		InlineEngine:   true,
		AutoIncrement:  "AUTO_INCREMENT",
		Schema:         database,
		DateTimeType:   "DATETIME",
		SizedIntegers:  true,
		InlineEnum:     true,
		ModifyStyle:    ModifyColumn,
		DropForeignKey: "FOREIGN KEY",
		DropIndex:      "INDEX",
		MinVersion:     "5.7.0",
		Introspection:  mysqlIntrospection,
		EscapeString:   escapeMySQLString,
	}
}

// Postgres returns the PostgreSQL dialect. Introspection always targets the public schema.
func Postgres() *Dialect {
	return &Dialect{
		Name:                  PostgresName,
		DriverName:            "postgres",
		Quote:                 '"',
		Engine:                "PostgreSQL",
		AutoIncrement:         "SERIAL",
		AutoIncrementReplaces: true,
		Schema:                "public",
		DateTimeType:          "TIMESTAMP",
		ReturningID:           true,
		ModifyStyle:           AlterColumnType,
		DropForeignKey:        "CONSTRAINT",
		DropIndex:             "CONSTRAINT",
		MinVersion:            "9.6.0",
		Introspection:         postgresIntrospection,
		EscapeString:          escapePostgresString,
	}
}

// ForDriver resolves a configured driver name to its dialect.
func ForDriver(driver, database string) (*Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql", "mariadb":
		return MySQL(database), nil
	case "pgsql", "postgres", "postgresql":
		return Postgres(), nil
	default:
		return nil, NewConfigError("Dialect", fmt.Sprintf("unsupported driver %q", driver))
	}
}

// String returns the dialect name.
func (d *Dialect) String() string {
	return d.Name
}
