// Package executor maps entity rows to structs and back through the
// statement builders.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/spf13/cast"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/internal/debug"
	"github.com/nxtgo/nxt-orm/orm"
	"github.com/nxtgo/nxt-orm/query/sqlgen"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// rootAlias is the alias of the entity table in every generated SELECT.
const rootAlias = "t0"

// Executor loads and writes entities of any registered type. Rows are
// hydrated one field at a time, and nested finds run sequentially, so
// results keep the order the database returned them in.
type Executor struct {
	conn      client.Conn
	registry  *orm.Registry
	validator Validator
	log       *slog.Logger
}

// NewExecutor creates a new entity executor.
func NewExecutor(conn client.Conn, registry *orm.Registry, validator Validator) *Executor {
	if validator == nil {
		validator = NopValidator{}
	}
	return &Executor{
		conn:      conn,
		registry:  registry,
		validator: validator,
		log:       debug.Component("repository"),
	}
}

// FindOptions narrows a find.
type FindOptions struct {
	// IDs restricts the result to these primary keys.
	IDs []int64
	// Page is 1-based. Pagination applies when both Page and PerPage are set.
	Page    int
	PerPage int
	// ActiveOnly keeps rows whose status flag columns are all true.
	ActiveOnly bool
}

func (o FindOptions) paginated() bool {
	return o.Page > 0 && o.PerPage > 0
}

// result is one page of hydrated entities, each a pointer to a struct.
type result struct {
	total int64
	items []reflect.Value
}

// trail holds the rows being hydrated up the current call chain, keyed by
// table and id. A relation pointing back into the trail is not followed.
type trail map[string]bool

func trailKey(table string, id int64) string {
	return table + "#" + strconv.FormatInt(id, 10)
}

var entityType = reflect.TypeOf((*orm.Entity)(nil)).Elem()

func (e *Executor) descriptor(t reflect.Type) (*orm.EntityDescriptor, error) {
	desc, ok := e.registry.Lookup(t)
	if !ok {
		return nil, dialect.NewConfigError("Repository", fmt.Sprintf("%s is not a registered entity", t))
	}
	return desc, checkEntity(desc)
}

// checkEntity rejects registered types that do not embed orm.Model.
func checkEntity(desc *orm.EntityDescriptor) error {
	if !reflect.PointerTo(desc.Type).Implements(entityType) {
		return dialect.NewConfigError("Repository", fmt.Sprintf("%s does not embed orm.Model", desc.Type))
	}
	return nil
}

// load runs a find over desc's table. Extra predicates are ANDed. With
// counted set the total row count is read first.
func (e *Executor) load(ctx context.Context, desc *orm.EntityDescriptor, opts FindOptions, seen trail, counted bool, wheres ...*sqlgen.Where) (result, error) {
	if err := checkEntity(desc); err != nil {
		return result{}, err
	}
	sel := sqlgen.NewSelect(e.conn).From(desc.Table, rootAlias)

	if len(opts.IDs) > 0 {
		sel.AddWhere(sqlgen.NewWhere("?? IN ?", rootAlias+".id", opts.IDs))
	}
	for _, w := range wheres {
		sel.AddWhere(w)
	}
	if opts.ActiveOnly {
		for _, f := range desc.StatusFlags() {
			sel.AddWhere(sqlgen.NewWhere("?? = ?", rootAlias+"."+f.Name, true))
		}
	}
	if opts.paginated() {
		sel.Limit((opts.Page-1)*opts.PerPage, opts.PerPage)
	}

	var total int64
	if counted {
		n, err := sel.TotalRows(ctx)
		if err != nil {
			return result{}, err
		}
		total = n
	}
	rows, err := sel.Execute(ctx)
	if err != nil {
		return result{}, err
	}

	items := make([]reflect.Value, 0, len(rows))
	for _, row := range rows {
		item := reflect.New(desc.Type)
		if err := e.hydrate(ctx, desc, item, row, seen); err != nil {
			return result{}, err
		}
		items = append(items, item)
	}
	return result{total: total, items: items}, nil
}

// hydrate copies row into the struct ptr points to, following relations.
func (e *Executor) hydrate(ctx context.Context, desc *orm.EntityDescriptor, ptr reflect.Value, row client.Row, seen trail) error {
	id := row.Int64("id")
	key := trailKey(desc.Table, id)
	seen[key] = true
	defer delete(seen, key)

	v := ptr.Elem()
	for _, f := range desc.Fields {
		field := v.FieldByName(f.Field)
		if !field.CanSet() {
			return dialect.NewConfigError("Repository", fmt.Sprintf("%s.%s cannot be set", desc.Table, f.Field))
		}

		switch f.Relation {
		case orm.NoRelation:
			raw, _ := row.Get(f.Name)
			if err := setColumn(field, f, raw); err != nil {
				return fmt.Errorf("failed to set field %s.%s: %w", desc.Table, f.Field, err)
			}

		case orm.ManyToOne:
			rel, err := e.registry.Relation(desc, f.Field)
			if err != nil {
				return err
			}
			if row.IsNull(rel.ForeignKeyColumn()) {
				continue
			}
			target, err := e.findOne(ctx, rel.Target, row.Int64(rel.ForeignKeyColumn()), seen)
			if err != nil {
				return err
			}
			assign(field, target)

		case orm.ManyToMany:
			rel, err := e.registry.Relation(desc, f.Field)
			if err != nil {
				return err
			}
			targets, err := e.findLinked(ctx, rel, id, seen)
			if err != nil {
				return err
			}
			assignAll(field, targets)

		default:
			return dialect.NewConfigError("Repository", fmt.Sprintf("%s.%s: %s relations cannot be loaded", desc.Table, f.Field, f.Relation))
		}
	}
	return nil
}

// findOne loads one entity by id. A missing row yields the not-found
// sentinel, a row already on the trail yields a stub carrying only its id.
func (e *Executor) findOne(ctx context.Context, desc *orm.EntityDescriptor, id int64, seen trail) (reflect.Value, error) {
	if seen[trailKey(desc.Table, id)] {
		stub := reflect.New(desc.Type)
		base(stub).ID = id
		return stub, nil
	}

	e.log.Debug("Nested find", "table", desc.Table, "id", id)
	res, err := e.load(ctx, desc, FindOptions{}, seen, false, sqlgen.NewWhere("?? = ?", rootAlias+".id", id))
	if err != nil {
		return reflect.Value{}, err
	}
	if len(res.items) == 0 {
		return notFound(desc.Type), nil
	}
	return res.items[0], nil
}

// findLinked loads the targets of a many-to-many relation through its join table.
func (e *Executor) findLinked(ctx context.Context, rel orm.Relation, ownerID int64, seen trail) ([]reflect.Value, error) {
	rows, err := sqlgen.NewSelect(e.conn).
		From(rel.JoinTable(), "t").
		Where(sqlgen.NewWhere("?? = ?", "t."+rel.OwnerJoinColumn(), ownerID)).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, row := range rows {
		id := row.Int64(rel.TargetJoinColumn())
		if seen[trailKey(rel.Target.Table, id)] {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	e.log.Debug("Nested find", "table", rel.Target.Table, "ids", ids)
	res, err := e.load(ctx, rel.Target, FindOptions{IDs: ids}, seen, false)
	if err != nil {
		return nil, err
	}
	return res.items, nil
}

// insert writes the entity ptr points to and its many-to-many links, then
// reloads it. It returns the reloaded entity, or ptr itself carrying a 422
// response when validation fails.
func (e *Executor) insert(ctx context.Context, desc *orm.EntityDescriptor, ptr reflect.Value) (reflect.Value, error) {
	if errs := e.validator.Validate(ptr.Interface()); len(errs) > 0 {
		e.log.Debug("Insert rejected", "table", desc.Table, "errors", joinDetails(errs))
		base(ptr).SetResponse(http.StatusUnprocessableEntity, validationDetails(errs)...)
		return ptr, nil
	}

	pairs, links, err := e.writePairs(desc, ptr.Elem(), true)
	if err != nil {
		return reflect.Value{}, err
	}

	res, err := sqlgen.NewInsert(e.conn).Into(desc.Table).Values(pairs...).Execute(ctx)
	if err != nil {
		return reflect.Value{}, err
	}

	for _, link := range links {
		for _, targetID := range link.ids {
			_, err := sqlgen.NewInsert(e.conn).
				Into(link.rel.JoinTable()).
				Set(link.rel.OwnerJoinColumn(), res.ID).
				Set(link.rel.TargetJoinColumn(), targetID).
				WithoutReturning().
				Execute(ctx)
			if err != nil {
				return reflect.Value{}, err
			}
		}
	}

	created, err := e.findOne(ctx, desc, res.ID, make(trail))
	if err != nil {
		return reflect.Value{}, err
	}
	if !base(created).IsNotFound() {
		base(created).SetResponse(http.StatusCreated)
	}
	return created, nil
}

// update writes the scalar columns of the entity ptr points to.
func (e *Executor) update(ctx context.Context, desc *orm.EntityDescriptor, ptr reflect.Value) error {
	model := base(ptr)
	if errs := e.validator.Validate(ptr.Interface()); len(errs) > 0 {
		model.SetResponse(http.StatusUnprocessableEntity, validationDetails(errs)...)
		return nil
	}

	pairs, _, err := e.writePairs(desc, ptr.Elem(), false)
	if err != nil {
		return err
	}

	_, err = sqlgen.NewUpdate(e.conn).
		Table(desc.Table).
		Values(pairs...).
		Where(sqlgen.NewWhere("?? = ?", "id", model.ID)).
		Execute(ctx)
	if err != nil {
		return err
	}
	model.SetResponse(http.StatusOK)
	return nil
}

// remove deletes the row of the entity ptr points to. Entities without an id
// are left untouched.
func (e *Executor) remove(ctx context.Context, desc *orm.EntityDescriptor, ptr reflect.Value) error {
	model := base(ptr)
	if model.ID == 0 {
		return nil
	}

	_, err := sqlgen.NewDelete(e.conn).
		From(desc.Table).
		Where(sqlgen.NewWhere("?? = ?", "id", model.ID)).
		Execute(ctx)
	if err != nil {
		return err
	}
	model.SetResponse(http.StatusNoContent)
	return nil
}

// link is the set of target ids written to one many-to-many join table.
type link struct {
	rel orm.Relation
	ids []int64
}

// writePairs maps the fields of v to column/value pairs. The id column is
// never written. With relations set, many-to-one fields map to their derived
// column and many-to-many fields are returned as links.
func (e *Executor) writePairs(desc *orm.EntityDescriptor, v reflect.Value, relations bool) ([]sqlgen.ColumnValue, []link, error) {
	var pairs []sqlgen.ColumnValue
	var links []link

	for _, f := range desc.Fields {
		if f.Name == "id" {
			continue
		}
		field := v.FieldByName(f.Field)

		if !f.IsRelation() {
			if isNil(field) {
				if !f.Nullable {
					return nil, nil, dialect.NewConfigError("Repository", fmt.Sprintf("the field %q must be set", f.Field))
				}
				pairs = append(pairs, sqlgen.ColumnValue{Column: f.Name, Value: nil})
				continue
			}
			value, err := columnValue(field, f)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to encode field %s.%s: %w", desc.Table, f.Field, err)
			}
			pairs = append(pairs, sqlgen.ColumnValue{Column: f.Name, Value: value})
			continue
		}

		if !relations {
			continue
		}
		rel, err := e.registry.Relation(desc, f.Field)
		if err != nil {
			return nil, nil, err
		}

		switch f.Relation {
		case orm.ManyToOne:
			if isNil(field) {
				if !f.Nullable {
					return nil, nil, dialect.NewConfigError("Repository", fmt.Sprintf("the field %q must be set", f.Field))
				}
				pairs = append(pairs, sqlgen.ColumnValue{Column: rel.ForeignKeyColumn(), Value: nil})
				continue
			}
			pairs = append(pairs, sqlgen.ColumnValue{Column: rel.ForeignKeyColumn(), Value: entityID(field)})
		case orm.ManyToMany:
			var ids []int64
			for i := 0; i < field.Len(); i++ {
				if item := field.Index(i); !isNil(item) {
					ids = append(ids, entityID(item))
				}
			}
			if len(ids) > 0 {
				links = append(links, link{rel: rel, ids: ids})
			}
		default:
			return nil, nil, dialect.NewConfigError("Repository", fmt.Sprintf("%s.%s: %s relations cannot be written", desc.Table, f.Field, f.Relation))
		}
	}
	return pairs, links, nil
}

// columnValue encodes a scalar field for the value escaper.
func columnValue(field reflect.Value, f orm.FieldDescriptor) (any, error) {
	if f.Type == orm.JSON {
		raw, err := json.Marshal(field.Interface())
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	}
	for field.Kind() == reflect.Pointer {
		field = field.Elem()
	}
	return field.Interface(), nil
}

// setColumn decodes a column value into a scalar field.
func setColumn(field reflect.Value, f orm.FieldDescriptor, raw any) error {
	if raw == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if f.Type == orm.JSON {
		text, err := cast.ToStringE(raw)
		if err != nil {
			return err
		}
		if text == "" {
			return nil
		}
		return json.Unmarshal([]byte(text), field.Addr().Interface())
	}
	return setFieldValue(field, raw)
}

var timeType = reflect.TypeOf(time.Time{})

// setFieldValue sets a struct field value from a database value
func setFieldValue(fieldValue reflect.Value, value any) error {
	fieldType := fieldValue.Type()

	if fieldType.Kind() == reflect.Pointer {
		if value == nil {
			fieldValue.Set(reflect.Zero(fieldType))
			return nil
		}
		elemValue := reflect.New(fieldType.Elem()).Elem()
		if err := setFieldValue(elemValue, value); err != nil {
			return err
		}
		fieldValue.Set(elemValue.Addr())
		return nil
	}

	switch {
	case fieldType == timeType:
		t, err := cast.ToTimeE(value)
		if err != nil {
			return err
		}
		fieldValue.Set(reflect.ValueOf(t))
		return nil
	case fieldType.Kind() == reflect.String:
		s, err := cast.ToStringE(value)
		if err != nil {
			return err
		}
		fieldValue.SetString(s)
		return nil
	case fieldType.Kind() == reflect.Bool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return err
		}
		fieldValue.SetBool(b)
		return nil
	case fieldValue.CanInt():
		n, err := cast.ToInt64E(value)
		if err != nil {
			return err
		}
		fieldValue.SetInt(n)
		return nil
	case fieldValue.CanUint():
		n, err := cast.ToUint64E(value)
		if err != nil {
			return err
		}
		fieldValue.SetUint(n)
		return nil
	case fieldValue.CanFloat():
		n, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		fieldValue.SetFloat(n)
		return nil
	}

	valueValue := reflect.ValueOf(value)
	valueType := valueValue.Type()
	if valueType.AssignableTo(fieldType) {
		fieldValue.Set(valueValue)
		return nil
	}
	if valueType.ConvertibleTo(fieldType) {
		fieldValue.Set(valueValue.Convert(fieldType))
		return nil
	}

	return fmt.Errorf("cannot convert %s to %s", valueType, fieldType)
}

// assign stores the entity pointer ptr into a relation field declared as
// either *T or T.
func assign(field, ptr reflect.Value) {
	if field.Kind() == reflect.Pointer {
		field.Set(ptr)
		return
	}
	field.Set(ptr.Elem())
}

// assignAll stores entity pointers into a relation field declared as []*T or []T.
func assignAll(field reflect.Value, ptrs []reflect.Value) {
	slice := reflect.MakeSlice(field.Type(), 0, len(ptrs))
	byPointer := field.Type().Elem().Kind() == reflect.Pointer
	for _, ptr := range ptrs {
		if byPointer {
			slice = reflect.Append(slice, ptr)
		} else {
			slice = reflect.Append(slice, ptr.Elem())
		}
	}
	field.Set(slice)
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// base returns the embedded model of the entity ptr points to.
func base(ptr reflect.Value) *orm.Model {
	return ptr.Interface().(orm.Entity).Base()
}

// entityID returns the id of a related entity held by value or by pointer.
func entityID(v reflect.Value) int64 {
	if v.Kind() != reflect.Pointer {
		v = v.Addr()
	}
	return base(v).ID
}

func notFound(t reflect.Type) reflect.Value {
	ptr := reflect.New(t)
	base(ptr).SetResponse(http.StatusNotFound, "This entity doesn't exist or has been deleted")
	return ptr
}
