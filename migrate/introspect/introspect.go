// Package introspect reads the live schema from information_schema.
package introspect

import (
	"context"
	"fmt"
	"sync"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/query/sqlgen"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// Inspector answers the two questions the synchronizer asks about the live schema.
type Inspector interface {
	TableExists(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
}

// ColumnInfo is one live column, read through the dialect's introspection map.
type ColumnInfo struct {
	Name                   string
	DataType               string
	Nullable               bool
	CharacterMaximumLength int64
	AutoIncrement          bool
}

// NewColumnInfo decodes an information_schema.columns row.
func NewColumnInfo(d *dialect.Dialect, row client.Row) ColumnInfo {
	is := d.Introspection
	return ColumnInfo{
		Name:                   row.String(is.ColumnName),
		DataType:               row.String(is.DataType),
		Nullable:               row.Bool(is.IsNullable),
		CharacterMaximumLength: row.Int64(is.CharacterMaximumLength),
		AutoIncrement:          is.IsAutoIncrement(row.String(is.AutoIncrementColumn)),
	}
}

// InformationSchema is the Inspector backed by information_schema queries
// built with the regular Select builder.
type InformationSchema struct {
	conn client.Conn

	once   sync.Once
	schema string
	err    error
}

// NewInformationSchema creates an Inspector for conn.
func NewInformationSchema(conn client.Conn) *InformationSchema {
	return &InformationSchema{conn: conn}
}

// resolveSchema returns the table_schema literal. A MySQL dialect without a
// configured database falls back to SELECT DATABASE().
func (i *InformationSchema) resolveSchema(ctx context.Context) (string, error) {
	i.once.Do(func() {
		i.schema = i.conn.Dialect().Schema
		if i.schema != "" {
			return
		}

		rows, err := i.conn.Query(ctx, "SELECT DATABASE() AS name")
		if err != nil {
			i.err = fmt.Errorf("failed to get database name: %w", err)
			return
		}
		if len(rows) > 0 {
			i.schema = rows[0].String("name")
		}
		if i.schema == "" {
			i.err = dialect.NewConfigError("Introspection", "no database selected")
		}
	})
	return i.schema, i.err
}

func (i *InformationSchema) selectFrom(ctx context.Context, source, alias, table string) (*sqlgen.Select, error) {
	schema, err := i.resolveSchema(ctx)
	if err != nil {
		return nil, err
	}

	return sqlgen.NewSelect(i.conn).
		From(source, alias).
		Where(sqlgen.NewWhere("?? = ? AND ?? = ?",
			alias+".table_schema", schema,
			alias+".table_name", table,
		)), nil
}

// TableExists reports whether table exists in the configured schema.
func (i *InformationSchema) TableExists(ctx context.Context, table string) (bool, error) {
	sel, err := i.selectFrom(ctx, "information_schema.tables", "t", table)
	if err != nil {
		return false, err
	}

	rows, err := sel.Execute(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: failed to query table %s: %w", ErrIntrospectionFailed, table, err)
	}
	return len(rows) > 0, nil
}

// Columns returns the live columns of table in ordinal order.
func (i *InformationSchema) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	sel, err := i.selectFrom(ctx, "information_schema.columns", "c", table)
	if err != nil {
		return nil, err
	}

	rows, err := sel.OrderBy(sqlgen.Asc, "c.ordinal_position").Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query columns of %s: %w", ErrIntrospectionFailed, table, err)
	}

	d := i.conn.Dialect()
	columns := make([]ColumnInfo, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, NewColumnInfo(d, row))
	}
	return columns, nil
}
