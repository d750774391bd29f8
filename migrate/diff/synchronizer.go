// Package diff compares the registered entities with the live schema and
// produces the ordered DDL plan that brings the database in line.
package diff

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/internal/debug"
	"github.com/nxtgo/nxt-orm/migrate/introspect"
	"github.com/nxtgo/nxt-orm/migrate/sqlgen"
	"github.com/nxtgo/nxt-orm/orm"
)

// Synchronizer builds synchronization plans. It never executes anything.
type Synchronizer struct {
	registry  *orm.Registry
	dialect   *dialect.Dialect
	inspector introspect.Inspector
	log       *slog.Logger
}

// NewSynchronizer creates a Synchronizer reading the live schema through inspector.
func NewSynchronizer(registry *orm.Registry, d *dialect.Dialect, inspector introspect.Inspector) *Synchronizer {
	return &Synchronizer{
		registry:  registry,
		dialect:   d,
		inspector: inspector,
		log:       debug.Component("sync"),
	}
}

// run is the state of one Synchronize call.
type run struct {
	*Synchronizer
	plan *sqlgen.Plan
	// visited marks entities whose dependencies were scheduled.
	visited map[string]bool
	// done marks entities whose own statements are in the plan.
	done map[string]bool
	// deferred statements reference tables still being resolved. They are
	// appended once every entity is done.
	deferred []sqlgen.Statement
}

// Synchronize returns the statements needed to make every registered entity
// exist with the declared columns, keys, foreign keys and join tables.
// Relation targets are always resolved before the entity that references them.
func (s *Synchronizer) Synchronize(ctx context.Context) (*sqlgen.Plan, error) {
	r := &run{
		Synchronizer: s,
		plan:         sqlgen.NewPlan(),
		visited:      make(map[string]bool),
		done:         make(map[string]bool),
	}

	for _, desc := range s.registry.Entities() {
		if err := r.resolve(ctx, desc); err != nil {
			return nil, err
		}
	}
	for _, st := range r.deferred {
		r.plan.Append(st)
	}

	s.log.Debug("Synchronization planned", "statements", r.plan.Len())
	return r.plan, nil
}

// resolve walks the relation graph depth-first from root with an explicit
// stack, emitting each entity after its relation targets. A target already on
// the stack (a cycle or a self reference) is not waited for; statements
// pointing at it are deferred instead.
func (r *run) resolve(ctx context.Context, root *orm.EntityDescriptor) error {
	type frame struct {
		desc     *orm.EntityDescriptor
		expanded bool
	}

	stack := []frame{{desc: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.expanded {
			desc := top.desc
			stack = stack[:len(stack)-1]
			if err := r.synchronizeEntity(ctx, desc); err != nil {
				return err
			}
			r.done[desc.Table] = true
			continue
		}

		if r.visited[top.desc.Table] {
			stack = stack[:len(stack)-1]
			continue
		}
		r.visited[top.desc.Table] = true
		top.expanded = true

		targets, err := r.targets(top.desc)
		if err != nil {
			return err
		}
		// Pushed in reverse so the first declared relation is resolved first.
		for i := len(targets) - 1; i >= 0; i-- {
			if !r.visited[targets[i].Table] {
				stack = append(stack, frame{desc: targets[i]})
			}
		}
	}
	return nil
}

// targets returns the registered targets of desc's relation fields in
// declaration order.
func (r *run) targets(desc *orm.EntityDescriptor) ([]*orm.EntityDescriptor, error) {
	var out []*orm.EntityDescriptor
	for _, f := range desc.Fields {
		if !f.IsRelation() {
			continue
		}
		target, ok := r.registry.Lookup(f.Target)
		if !ok {
			return nil, dialect.NewConfigError("Synchronizer",
				fmt.Sprintf("%s.%s targets %s which is not an entity", desc.Table, f.Field, f.Target))
		}
		out = append(out, target)
	}
	return out, nil
}

func (r *run) synchronizeEntity(ctx context.Context, desc *orm.EntityDescriptor) error {
	log := r.log.With("table", desc.Table)

	if r.plan.HasCreateTable(desc.Table) {
		log.Debug("Table already queued")
		return nil
	}

	exists, err := r.inspector.TableExists(ctx, desc.Table)
	if err != nil {
		return err
	}
	if !exists {
		log.Debug("Creating table")
		return r.createTable(ctx, desc)
	}
	log.Debug("Comparing table")
	return r.updateTable(ctx, desc)
}

// ready reports whether statements referencing target can be emitted now.
func (r *run) ready(owner, target *orm.EntityDescriptor) bool {
	return owner != target && r.done[target.Table]
}

func (r *run) emit(ready bool, st sqlgen.Statement) {
	if ready {
		r.plan.Append(st)
		return
	}
	r.deferred = append(r.deferred, st)
}

func (r *run) createTable(ctx context.Context, desc *orm.EntityDescriptor) error {
	ct := sqlgen.NewCreateTable(r.dialect, desc.Table)
	var after []func() error

	for _, f := range desc.Fields {
		if !f.IsRelation() {
			ct.AddColumn(columnFor(f))
			if f.Key != "" {
				ct.AddIndex(sqlgen.Index{Columns: []string{f.Name}, Kind: f.Key})
			}
			continue
		}

		rel, err := r.relation(desc, f)
		if err != nil {
			return err
		}

		switch f.Relation {
		case orm.ManyToOne:
			ct.AddColumn(foreignKeyColumn(rel))
			if r.ready(desc, rel.Target) {
				ct.AddForeignKey(foreignKey(rel))
			} else {
				r.deferred = append(r.deferred, sqlgen.NewAlterTable(r.dialect, desc.Table, sqlgen.Add, foreignKey(rel)))
			}
		case orm.ManyToMany:
			after = append(after, func() error { return r.ensureJoinTable(ctx, rel) })
		}
	}

	r.plan.Append(ct)
	for _, fn := range after {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) updateTable(ctx context.Context, desc *orm.EntityDescriptor) error {
	live, err := r.inspector.Columns(ctx, desc.Table)
	if err != nil {
		return err
	}
	liveByName := make(map[string]introspect.ColumnInfo, len(live))
	for _, col := range live {
		liveByName[col.Name] = col
	}

	relations := make(map[string]orm.Relation)
	expected := make(map[string]bool)
	for _, f := range desc.Fields {
		if !f.IsRelation() {
			expected[f.Name] = true
			continue
		}
		rel, err := r.relation(desc, f)
		if err != nil {
			return err
		}
		relations[f.Field] = rel
		if f.Relation == orm.ManyToOne {
			expected[rel.ForeignKeyColumn()] = true
		}
	}

	for _, col := range live {
		if expected[col.Name] || r.plan.HasAlterColumn(desc.Table, col.Name) {
			continue
		}
		r.log.Debug("Dropping column", "table", desc.Table, "column", col.Name)
		r.plan.Append(sqlgen.NewAlterTable(r.dialect, desc.Table, sqlgen.Drop, sqlgen.Column{Name: col.Name}))
	}

	for _, f := range desc.Fields {
		if !f.IsRelation() {
			if r.plan.HasAlterColumn(desc.Table, f.Name) {
				continue
			}
			col, ok := liveByName[f.Name]
			switch {
			case !ok:
				r.plan.Append(sqlgen.NewAlterTable(r.dialect, desc.Table, sqlgen.Add, columnFor(f)))
				if f.Key == orm.Unique {
					r.plan.Append(sqlgen.NewAlterTable(r.dialect, desc.Table, sqlgen.Add,
						sqlgen.Index{Columns: []string{f.Name}, Kind: orm.Unique}))
				}
			case !SameColumn(r.dialect, f, col):
				r.log.Debug("Modifying column", "table", desc.Table, "column", f.Name)
				r.plan.Append(sqlgen.NewAlterTable(r.dialect, desc.Table, sqlgen.Modify, columnFor(f)))
			}
			continue
		}

		rel := relations[f.Field]
		switch f.Relation {
		case orm.ManyToOne:
			name := rel.ForeignKeyColumn()
			if _, ok := liveByName[name]; ok || r.plan.HasAlterColumn(desc.Table, name) {
				continue
			}
			r.plan.Append(sqlgen.NewAlterTable(r.dialect, desc.Table, sqlgen.Add, foreignKeyColumn(rel)))
			r.emit(r.ready(desc, rel.Target), sqlgen.NewAlterTable(r.dialect, desc.Table, sqlgen.Add, foreignKey(rel)))
		case orm.ManyToMany:
			if err := r.ensureJoinTable(ctx, rel); err != nil {
				return err
			}
		}
	}
	return nil
}

// relation resolves f and rejects the relation shapes that have no table layout.
func (r *run) relation(desc *orm.EntityDescriptor, f orm.FieldDescriptor) (orm.Relation, error) {
	if f.Relation == orm.OneToMany {
		return orm.Relation{}, dialect.NewConfigError("Synchronizer",
			fmt.Sprintf("%s.%s: one-to-many relations are not supported, declare the many-to-one side instead", desc.Table, f.Field))
	}
	rel, err := r.registry.Relation(desc, f.Field)
	if err != nil {
		return orm.Relation{}, err
	}
	if f.Relation == orm.ManyToMany && rel.Target == desc {
		return orm.Relation{}, dialect.NewConfigError("Synchronizer",
			fmt.Sprintf("%s.%s: a many-to-many relation cannot target its own entity", desc.Table, f.Field))
	}
	return rel, nil
}

func (r *run) ensureJoinTable(ctx context.Context, rel orm.Relation) error {
	table := rel.JoinTable()
	if r.plan.HasCreateTable(table) || deferredCreate(r.deferred, table) {
		return nil
	}
	exists, err := r.inspector.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	r.emit(r.done[rel.Target.Table], joinTable(r.dialect, rel))
	return nil
}

func deferredCreate(statements []sqlgen.Statement, table string) bool {
	for _, st := range statements {
		if ct, ok := st.(*sqlgen.CreateTable); ok && ct.Table() == table {
			return true
		}
	}
	return false
}

func columnFor(f orm.FieldDescriptor) sqlgen.Column {
	return sqlgen.Column{
		Name:          f.Name,
		Type:          f.Type,
		Length:        f.Length,
		Nullable:      f.Nullable,
		AutoIncrement: f.AutoIncrement,
		Enum:          f.Enum,
	}
}

func foreignKeyColumn(rel orm.Relation) sqlgen.Column {
	return sqlgen.Column{Name: rel.ForeignKeyColumn(), Type: orm.Int, Nullable: rel.Field.Nullable}
}

func foreignKey(rel orm.Relation) sqlgen.ForeignKey {
	return sqlgen.ForeignKey{
		Column:    rel.ForeignKeyColumn(),
		Name:      rel.ForeignKeyName(),
		RefTable:  rel.Target.Table,
		RefColumn: "id",
		OnDelete:  sqlgen.Restrict,
		OnUpdate:  sqlgen.Cascade,
	}
}

func joinTable(d *dialect.Dialect, rel orm.Relation) *sqlgen.CreateTable {
	owner, target := rel.OwnerJoinColumn(), rel.TargetJoinColumn()
	return sqlgen.NewCreateTable(d, rel.JoinTable()).
		AddColumn(sqlgen.Column{Name: owner, Type: orm.Int}).
		AddColumn(sqlgen.Column{Name: target, Type: orm.Int}).
		AddIndex(sqlgen.Index{Columns: []string{owner}, Kind: orm.PrimaryKey}).
		AddIndex(sqlgen.Index{Columns: []string{target}, Kind: orm.PrimaryKey}).
		AddForeignKey(sqlgen.ForeignKey{
			Column: owner, Name: rel.OwnerJoinForeignKeyName(),
			RefTable: rel.Owner.Table, RefColumn: "id",
			OnDelete: sqlgen.Cascade, OnUpdate: sqlgen.Cascade,
		}).
		AddForeignKey(sqlgen.ForeignKey{
			Column: target, Name: rel.TargetJoinForeignKeyName(),
			RefTable: rel.Target.Table, RefColumn: "id",
			OnDelete: sqlgen.Cascade, OnUpdate: sqlgen.Cascade,
		})
}

// SameColumn reports whether a live column already satisfies field f.
func SameColumn(d *dialect.Dialect, f orm.FieldDescriptor, col introspect.ColumnInfo) bool {
	if f.AutoIncrement != col.AutoIncrement {
		return false
	}
	if (f.Type == orm.Char || f.Type == orm.Varchar) && f.Length > 0 && int64(f.Length) != col.CharacterMaximumLength {
		return false
	}
	if f.Nullable != col.Nullable {
		return false
	}
	return d.Introspection.MatchesType(f.Type, col.DataType)
}
