package orm

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/nxtgo/nxt-orm/dialect"
)

// Registry is the process-wide entity metadata store. It is populated at
// startup and only read afterwards.
type Registry struct {
	mu       sync.RWMutex
	order    []reflect.Type
	entities map[reflect.Type]*EntityDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[reflect.Type]*EntityDescriptor)}
}

// Register adds the entity whose struct type is that of sample.
func (r *Registry) Register(sample any, desc EntityDescriptor) error {
	if sample == nil {
		return dialect.NewConfigError("Registry", "a sample entity is required")
	}
	return r.register(indirect(reflect.TypeOf(sample)), desc)
}

// Register adds entity T.
func Register[T any](r *Registry, desc EntityDescriptor) error {
	return r.register(Ref[T](), desc)
}

// MustRegister is like Register but panics on error. Meant for init-time declarations.
func MustRegister[T any](r *Registry, desc EntityDescriptor) {
	if err := Register[T](r, desc); err != nil {
		panic(err)
	}
}

func (r *Registry) register(t reflect.Type, desc EntityDescriptor) error {
	if t.Kind() != reflect.Struct {
		return dialect.NewConfigError("Registry", fmt.Sprintf("%s is not a struct", t))
	}
	if desc.Table == "" {
		return dialect.NewConfigError("Registry", fmt.Sprintf("%s has no table", t.Name()))
	}

	seen := make(map[string]bool)
	for _, f := range desc.Fields {
		if err := validateField(t, f); err != nil {
			return err
		}
		if seen[f.Field] {
			return dialect.NewConfigError("Registry", fmt.Sprintf("%s.%s is declared twice", t.Name(), f.Field))
		}
		seen[f.Field] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[t]; ok {
		return dialect.NewConfigError("Registry", fmt.Sprintf("%s is already registered", t.Name()))
	}
	for _, other := range r.entities {
		if other.Table == desc.Table {
			return dialect.NewConfigError("Registry", fmt.Sprintf("table %q is already mapped to %s", desc.Table, other.Type.Name()))
		}
	}

	desc.Type = t
	desc.Fields = append([]FieldDescriptor(nil), desc.Fields...)
	for i := range desc.Fields {
		if desc.Fields[i].Target != nil {
			desc.Fields[i].Target = indirect(desc.Fields[i].Target)
		}
	}
	r.entities[t] = &desc
	r.order = append(r.order, t)
	return nil
}

func validateField(t reflect.Type, f FieldDescriptor) error {
	where := t.Name() + "." + f.Field
	if _, ok := t.FieldByName(f.Field); !ok {
		return dialect.NewConfigError("Registry", fmt.Sprintf("%s does not exist", where))
	}

	hasName := f.Name != ""
	if hasName == f.IsRelation() {
		return dialect.NewConfigError("Registry", fmt.Sprintf("%s must declare exactly one of a column name or a relation", where))
	}
	if f.IsRelation() && f.Target == nil {
		return dialect.NewConfigError("Registry", fmt.Sprintf("%s is a relation without a target", where))
	}
	if f.Type == Enum && (f.Enum == nil || len(f.Enum.Values) == 0) {
		return dialect.NewConfigError("Registry", fmt.Sprintf("%s is an enum without values", where))
	}
	return nil
}

// Lookup returns the descriptor of struct type t (pointers are dereferenced).
func (r *Registry) Lookup(t reflect.Type) (*EntityDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.entities[indirect(t)]
	return desc, ok
}

// LookupTable returns the descriptor mapped to table.
func (r *Registry) LookupTable(table string) (*EntityDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.order {
		if r.entities[t].Table == table {
			return r.entities[t], true
		}
	}
	return nil, false
}

// IsEntity reports whether t carries entity metadata.
func (r *Registry) IsEntity(t reflect.Type) bool {
	_, ok := r.Lookup(t)
	return ok
}

// Entities returns every descriptor in registration order.
func (r *Registry) Entities() []*EntityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*EntityDescriptor, len(r.order))
	for i, t := range r.order {
		out[i] = r.entities[t]
	}
	return out
}

// Relation is a resolved relation field with its derived names.
type Relation struct {
	Owner  *EntityDescriptor
	Field  FieldDescriptor
	Target *EntityDescriptor
	// Index disambiguates several relations to the same target.
	Index int
}

// RelationIndex is the 1-based position of field among the entity's fields
// sharing its target type, in declaration order. A many-to-one and a
// many-to-many field to the same target share one sequence.
func RelationIndex(desc *EntityDescriptor, field string) (int, error) {
	f, ok := desc.Field(field)
	if !ok || !f.IsRelation() {
		return 0, dialect.NewConfigError("Relation", fmt.Sprintf("%s.%s is not a relation", desc.Table, field))
	}

	index := 0
	for _, other := range desc.Fields {
		if other.Target == nil || indirect(other.Target) != indirect(f.Target) {
			continue
		}
		index++
		if other.Field == field {
			break
		}
	}
	return index, nil
}

// Relation resolves field of desc against the registry.
func (r *Registry) Relation(desc *EntityDescriptor, field string) (Relation, error) {
	index, err := RelationIndex(desc, field)
	if err != nil {
		return Relation{}, err
	}
	f, _ := desc.Field(field)

	target, ok := r.Lookup(f.Target)
	if !ok {
		return Relation{}, dialect.NewConfigError("Relation", fmt.Sprintf("%s.%s targets %s which is not an entity", desc.Table, field, f.Target))
	}

	return Relation{Owner: desc, Field: f, Target: target, Index: index}, nil
}

func (rel Relation) suffix() string {
	return "_" + strconv.Itoa(rel.Index)
}

// ForeignKeyColumn is the many-to-one column on the owner table.
func (rel Relation) ForeignKeyColumn() string {
	return "id_" + rel.Target.Table + rel.suffix()
}

// ForeignKeyName is the many-to-one constraint name.
func (rel Relation) ForeignKeyName() string {
	return "fk_" + rel.Owner.Table + "_to_" + rel.Target.Table + rel.suffix()
}

// JoinTable is the many-to-many join table name.
func (rel Relation) JoinTable() string {
	return rel.Owner.Table + "_" + rel.Target.Table + rel.suffix()
}

// OwnerJoinColumn is the join table column referencing the owner.
func (rel Relation) OwnerJoinColumn() string {
	return "id_" + rel.Owner.Table
}

// TargetJoinColumn is the join table column referencing the target.
func (rel Relation) TargetJoinColumn() string {
	return "id_" + rel.Target.Table
}

// OwnerJoinForeignKeyName is the join table constraint pointing at the owner.
func (rel Relation) OwnerJoinForeignKeyName() string {
	return "fk_" + rel.Owner.Table + "_" + rel.Target.Table + "_to_" + rel.Owner.Table + rel.suffix()
}

// TargetJoinForeignKeyName is the join table constraint pointing at the target.
func (rel Relation) TargetJoinForeignKeyName() string {
	return "fk_" + rel.Owner.Table + "_" + rel.Target.Table + "_to_" + rel.Target.Table + rel.suffix()
}

// ColumnName returns the column backing field: the column name of a scalar
// field or the derived column of a many-to-one relation.
func (r *Registry) ColumnName(desc *EntityDescriptor, field string) (string, error) {
	f, ok := desc.Field(field)
	if !ok {
		return "", dialect.NewConfigError("Registry", fmt.Sprintf("%s has no field %s", desc.Table, field))
	}
	if !f.IsRelation() {
		return f.Name, nil
	}
	if f.Relation != ManyToOne {
		return "", dialect.NewConfigError("Registry", fmt.Sprintf("%s.%s is a %s relation without a column", desc.Table, field, f.Relation))
	}

	rel, err := r.Relation(desc, field)
	if err != nil {
		return "", err
	}
	return rel.ForeignKeyColumn(), nil
}
