package dialect

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// EscapeID quotes an identifier. Slices are escaped element-wise and joined
// with ", ". Dotted names have every segment quoted unless forbidQualified is
// set, in which case the whole value is one identifier (constraint names).
func (d *Dialect) EscapeID(value any, forbidQualified bool) string {
	switch v := value.(type) {
	case []string:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = d.EscapeID(s, forbidQualified)
		}
		return strings.Join(parts, ", ")
	case []any:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = d.EscapeID(s, forbidQualified)
		}
		return strings.Join(parts, ", ")
	}

	quote := string(d.Quote)
	escaped := strings.ReplaceAll(fmt.Sprint(value), quote, quote+quote)
	if !forbidQualified {
		escaped = strings.ReplaceAll(escaped, ".", quote+"."+quote)
	}
	return quote + escaped + quote
}

// EscapeValue renders a literal value. Slices render as a parenthesized list,
// the empty slice as (NULL).
func (d *Dialect) EscapeValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case bool:
		return strconv.FormatBool(v)
	case string:
		return d.EscapeString(v)
	case []byte:
		return "X'" + hex.EncodeToString(v) + "'"
	case time.Time:
		return d.EscapeString(v.UTC().Format("2006-01-02 15:04:05.000"))
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case fmt.Stringer:
		return d.EscapeString(v.String())
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return "NULL"
		}
		return d.EscapeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return "(NULL)"
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = d.EscapeValue(rv.Index(i).Interface())
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.String:
		return d.EscapeString(rv.String())
	}
	return d.EscapeString(fmt.Sprint(value))
}

var mysqlReplacer = strings.NewReplacer(
	"\x00", `\0`,
	"\b", `\b`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
	"'", `\'`,
	`\`, `\\`,
)

// escapeMySQLString backslash-escapes control characters, quotes and backslashes.
// Double quotes are left untouched.
func escapeMySQLString(s string) string {
	return "'" + mysqlReplacer.Replace(s) + "'"
}

// escapePostgresString relies on standard_conforming_strings: only quotes are doubled.
func escapePostgresString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
