package dialect

import "strings"

// Introspection maps logical information_schema concepts to the column keys
// returned by the engine, plus the predicates used to compare live columns
// with declared fields.
type Introspection struct {
	TableName              string
	ColumnName             string
	CharacterMaximumLength string
	IsNullable             string
	DataType               string

	// AutoIncrementColumn is read and matched against AutoIncrementMarker.
	AutoIncrementColumn string
	AutoIncrementMarker string

	// DataTypes lists the DATA_TYPE values accepted for each declared type tag.
	DataTypes map[TypeTag][]string
}

// IsAutoIncrement reports whether the raw column value marks an auto-increment column.
func (i Introspection) IsAutoIncrement(raw string) bool {
	return raw != "" && strings.Contains(raw, i.AutoIncrementMarker)
}

// MatchesType reports whether a live DATA_TYPE satisfies the declared type tag.
// Unknown tags never match.
func (i Introspection) MatchesType(tag TypeTag, dataType string) bool {
	for _, accepted := range i.DataTypes[tag] {
		if strings.EqualFold(accepted, dataType) {
			return true
		}
	}
	return false
}

var mysqlIntrospection = Introspection{
	TableName:              "TABLE_NAME",
	ColumnName:             "COLUMN_NAME",
	CharacterMaximumLength: "CHARACTER_MAXIMUM_LENGTH",
	IsNullable:             "IS_NULLABLE",
	DataType:               "DATA_TYPE",
	AutoIncrementColumn:    "EXTRA",
	AutoIncrementMarker:    "auto_increment",
	DataTypes: map[TypeTag][]string{
		Boolean:  {"tinyint"},
		Char:     {"char"},
		DateTime: {"datetime"},
		Enum:     {"enum"},
		Float:    {"float"},
		Int:      {"int"},
		JSON:     {"text"},
		Text:     {"text"},
		Varchar:  {"varchar"},
	},
}

var postgresIntrospection = Introspection{
	TableName:              "table_name",
	ColumnName:             "column_name",
	CharacterMaximumLength: "character_maximum_length",
	IsNullable:             "is_nullable",
	DataType:               "data_type",
	AutoIncrementColumn:    "column_default",
	AutoIncrementMarker:    "nextval",
	DataTypes: map[TypeTag][]string{
		Boolean:  {"boolean"},
		Char:     {"character"},
		DateTime: {"timestamp without time zone"},
		Enum:     {"USER-DEFINED"},
		Float:    {"double precision", "real"},
		Int:      {"integer"},
		JSON:     {"text"},
		Text:     {"text"},
		Varchar:  {"character varying"},
	},
}
