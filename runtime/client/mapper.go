package client

import (
	"strings"

	"github.com/spf13/cast"
)

// Row is one result row keyed by column name.
type Row map[string]any

func normalizeRow(raw map[string]any) Row {
	row := make(Row, len(raw))
	for k, v := range raw {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
			continue
		}
		row[k] = v
	}
	return row
}

// Get returns the value of a column, matching the key case-insensitively when
// there is no exact match.
func (r Row) Get(column string) (any, bool) {
	if v, ok := r[column]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, column) {
			return v, true
		}
	}
	return nil, false
}

// IsNull reports whether the column is absent or NULL.
func (r Row) IsNull(column string) bool {
	v, ok := r.Get(column)
	return !ok || v == nil
}

// String returns the column as a string, "" for NULL.
func (r Row) String(column string) string {
	v, _ := r.Get(column)
	return cast.ToString(v)
}

// Int64 returns the column as an int64, 0 for NULL or unparsable values.
func (r Row) Int64(column string) int64 {
	v, _ := r.Get(column)
	return cast.ToInt64(v)
}

// Bool returns the column as a bool. Engines reporting booleans as 0/1 or
// "YES"/"NO" are both handled.
func (r Row) Bool(column string) bool {
	v, _ := r.Get(column)
	if s, ok := v.(string); ok {
		switch strings.ToUpper(s) {
		case "YES", "Y":
			return true
		case "NO", "N":
			return false
		}
	}
	return cast.ToBool(v)
}
