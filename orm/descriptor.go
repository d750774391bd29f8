// Package orm holds the entity metadata registry: which struct maps to which
// table, and how every field maps to a column or a relation.
package orm

import (
	"reflect"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/migrate/sqlgen"
)

// Column type tags.
type TypeTag = dialect.TypeTag

const (
	Boolean  = dialect.Boolean
	Char     = dialect.Char
	DateTime = dialect.DateTime
	Enum     = dialect.Enum
	Float    = dialect.Float
	Int      = dialect.Int
	JSON     = dialect.JSON
	Text     = dialect.Text
	Varchar  = dialect.Varchar
)

// Key kinds.
type IndexKind = sqlgen.IndexKind

const (
	PrimaryKey = sqlgen.PrimaryKey
	Unique     = sqlgen.Unique
)

// EnumType names an enum and its allowed values.
type EnumType = sqlgen.EnumType

// RelationKind is the cardinality of a relation field.
type RelationKind int

const (
	NoRelation RelationKind = iota
	OneToMany
	ManyToOne
	ManyToMany
)

// String returns the relation kind name.
func (k RelationKind) String() string {
	switch k {
	case OneToMany:
		return "ONE_TO_MANY"
	case ManyToOne:
		return "MANY_TO_ONE"
	case ManyToMany:
		return "MANY_TO_MANY"
	default:
		return "NONE"
	}
}

// FieldDescriptor maps one struct field to a column (Name set) or to a
// relation (Relation and Target set).
type FieldDescriptor struct {
	// Field is the Go struct field name.
	Field string
	// Name is the column name of a scalar field.
	Name          string
	Type          TypeTag
	Length        int
	Relation      RelationKind
	Target        reflect.Type
	AutoIncrement bool
	Key           IndexKind
	Nullable      bool
	Enum          *EnumType
	// IsStatusFlag marks a boolean column filtered on by active-only finds.
	IsStatusFlag bool
}

// IsRelation reports whether the field references another entity.
func (f FieldDescriptor) IsRelation() bool {
	return f.Relation != NoRelation
}

// EntityDescriptor describes one entity type.
type EntityDescriptor struct {
	Table  string
	Type   reflect.Type
	Fields []FieldDescriptor
	// Repository optionally replaces the default repository. It must be a
	// func(*executor.EntityRepository[T]) executor.Repository[T].
	Repository any
}

// Field returns the descriptor of the named Go field.
func (e *EntityDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// ScalarFields returns the fields mapped to a column of the entity's own table.
func (e *EntityDescriptor) ScalarFields() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range e.Fields {
		if !f.IsRelation() {
			out = append(out, f)
		}
	}
	return out
}

// StatusFlags returns the boolean fields marked as status flags.
func (e *EntityDescriptor) StatusFlags() []FieldDescriptor {
	var out []FieldDescriptor
	for _, f := range e.Fields {
		if f.IsStatusFlag && f.Type == Boolean && !f.IsRelation() {
			out = append(out, f)
		}
	}
	return out
}

// IDField is the standard auto-increment primary key carried by Model.
func IDField() FieldDescriptor {
	return FieldDescriptor{
		Field:         "ID",
		Name:          "id",
		Type:          Int,
		Length:        11,
		AutoIncrement: true,
		Key:           PrimaryKey,
	}
}

// Ref returns the struct type of T, used as a relation Target.
func Ref[T any]() reflect.Type {
	return indirect(reflect.TypeOf((*T)(nil)).Elem())
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
