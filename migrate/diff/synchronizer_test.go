package diff

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/migrate/introspect"
	"github.com/nxtgo/nxt-orm/migrate/sqlgen"
	"github.com/nxtgo/nxt-orm/orm"
)

// catalog is an in-memory live schema. apply maps plan statements onto it the
// way the engine would.
type catalog struct {
	d      *dialect.Dialect
	tables map[string][]introspect.ColumnInfo
	err    error
}

func newCatalog(d *dialect.Dialect) *catalog {
	return &catalog{d: d, tables: make(map[string][]introspect.ColumnInfo)}
}

func (c *catalog) TableExists(_ context.Context, table string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	_, ok := c.tables[table]
	return ok, nil
}

func (c *catalog) Columns(_ context.Context, table string) ([]introspect.ColumnInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.tables[table], nil
}

func (c *catalog) info(col sqlgen.Column) introspect.ColumnInfo {
	info := introspect.ColumnInfo{
		Name:          col.Name,
		DataType:      c.d.Introspection.DataTypes[col.Type][0],
		Nullable:      col.Nullable,
		AutoIncrement: col.AutoIncrement,
	}
	if col.Type == dialect.Char || col.Type == dialect.Varchar {
		info.CharacterMaximumLength = int64(col.Length)
	}
	return info
}

func (c *catalog) apply(t *testing.T, plan *sqlgen.Plan) {
	t.Helper()
	for _, st := range plan.Statements() {
		_, err := st.ToSQL()
		require.NoError(t, err)

		switch s := st.(type) {
		case *sqlgen.CreateTable:
			var cols []introspect.ColumnInfo
			for _, col := range s.Columns() {
				cols = append(cols, c.info(col))
			}
			c.tables[s.Table()] = cols
		case *sqlgen.AlterTable:
			col, ok := s.Element().(sqlgen.Column)
			if !ok {
				continue
			}
			cols := c.tables[s.Table()]
			switch s.Action() {
			case sqlgen.Add:
				cols = append(cols, c.info(col))
			case sqlgen.Drop, sqlgen.Modify:
				for i := range cols {
					if cols[i].Name != col.Name {
						continue
					}
					if s.Action() == sqlgen.Drop {
						cols = append(cols[:i], cols[i+1:]...)
					} else {
						cols[i] = c.info(col)
					}
					break
				}
			}
			c.tables[s.Table()] = cols
		}
	}
}

type user struct {
	orm.Model
	Name   string
	Age    *int
	Email  string
	Status string
}

type tag struct {
	orm.Model
	Label string
}

type post struct {
	orm.Model
	Title  string
	Author *user
	Tags   []*tag
}

func userDescriptor(extra ...orm.FieldDescriptor) orm.EntityDescriptor {
	return orm.EntityDescriptor{
		Table: "user",
		Fields: append([]orm.FieldDescriptor{
			orm.IDField(),
			{Field: "Name", Name: "name", Type: orm.Varchar, Length: 50},
		}, extra...),
	}
}

func blogRegistry(t *testing.T) *orm.Registry {
	t.Helper()
	r := orm.NewRegistry()
	require.NoError(t, orm.Register[user](r, userDescriptor()))
	require.NoError(t, orm.Register[post](r, orm.EntityDescriptor{
		Table: "post",
		Fields: []orm.FieldDescriptor{
			orm.IDField(),
			{Field: "Title", Name: "title", Type: orm.Varchar, Length: 100},
			{Field: "Author", Relation: orm.ManyToOne, Target: orm.Ref[user]()},
			{Field: "Tags", Relation: orm.ManyToMany, Target: orm.Ref[tag]()},
		},
	}))
	require.NoError(t, orm.Register[tag](r, orm.EntityDescriptor{
		Table: "tag",
		Fields: []orm.FieldDescriptor{
			orm.IDField(),
			{Field: "Label", Name: "label", Type: orm.Varchar, Length: 30, Key: orm.Unique},
		},
	}))
	return r
}

func synchronize(t *testing.T, r *orm.Registry, c *catalog) *sqlgen.Plan {
	t.Helper()
	plan, err := NewSynchronizer(r, c.d, c).Synchronize(context.Background())
	require.NoError(t, err)
	return plan
}

func tables(plan *sqlgen.Plan) []string {
	var out []string
	for _, st := range plan.Statements() {
		out = append(out, st.Table())
	}
	return out
}

func TestCreateMissingTable(t *testing.T) {
	r := orm.NewRegistry()
	require.NoError(t, orm.Register[user](r, userDescriptor()))
	c := newCatalog(dialect.MySQL("app"))

	plan := synchronize(t, r, c)
	require.Equal(t, 1, plan.Len())

	sql, err := plan.SQL()
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE `user` (\n"+
		"    `id` INT(11) NOT NULL AUTO_INCREMENT,\n"+
		"    `name` VARCHAR(50) NOT NULL,\n"+
		"    PRIMARY KEY (`id`)\n"+
		") ENGINE = InnoDB;", sql)
}

func TestRelationTargetsComeFirst(t *testing.T) {
	c := newCatalog(dialect.MySQL("app"))
	plan := synchronize(t, blogRegistry(t), c)

	assert.Equal(t, []string{"user", "tag", "post", "post_tag_1"}, tables(plan))

	postTable, ok := plan.Statements()[2].(*sqlgen.CreateTable)
	require.True(t, ok)
	var names []string
	for _, col := range postTable.Columns() {
		names = append(names, col.Name)
	}
	assert.Equal(t, []string{"id", "title", "id_user_1"}, names)
	assert.False(t, postTable.Columns()[2].Nullable)
	require.Len(t, postTable.ForeignKeys(), 1)
	fk := postTable.ForeignKeys()[0]
	assert.Equal(t, "fk_post_to_user_1", fk.Name)
	assert.Equal(t, sqlgen.Restrict, fk.OnDelete)
	assert.Equal(t, sqlgen.Cascade, fk.OnUpdate)

	sql, err := plan.Statements()[3].ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE `post_tag_1` (\n"+
		"    `id_post` INT NOT NULL,\n"+
		"    `id_tag` INT NOT NULL,\n"+
		"    PRIMARY KEY (`id_post`, `id_tag`),\n"+
		"    CONSTRAINT `fk_post_tag_to_post_1` FOREIGN KEY (`id_post`) REFERENCES `post` (`id`) ON DELETE CASCADE ON UPDATE CASCADE,\n"+
		"    CONSTRAINT `fk_post_tag_to_tag_1` FOREIGN KEY (`id_tag`) REFERENCES `tag` (`id`) ON DELETE CASCADE ON UPDATE CASCADE\n"+
		") ENGINE = InnoDB;", sql)
}

func TestSynchronizeIsIdempotent(t *testing.T) {
	for _, d := range []*dialect.Dialect{dialect.MySQL("app"), dialect.Postgres()} {
		t.Run(d.Name, func(t *testing.T) {
			r := blogRegistry(t)
			c := newCatalog(d)

			first := synchronize(t, r, c)
			require.False(t, first.IsEmpty())
			c.apply(t, first)

			assert.True(t, synchronize(t, r, c).IsEmpty())
		})
	}
}

func TestAddNullableColumn(t *testing.T) {
	c := newCatalog(dialect.MySQL("app"))
	before := orm.NewRegistry()
	require.NoError(t, orm.Register[user](before, userDescriptor()))
	c.apply(t, synchronize(t, before, c))

	after := orm.NewRegistry()
	require.NoError(t, orm.Register[user](after, userDescriptor(
		orm.FieldDescriptor{Field: "Age", Name: "age", Type: orm.Int, Nullable: true},
	)))

	plan := synchronize(t, after, c)
	require.Equal(t, 1, plan.Len())
	sql, err := plan.SQL()
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `user` ADD `age` INT NULL;", sql)
}

func TestAddUniqueColumnAddsKey(t *testing.T) {
	c := newCatalog(dialect.MySQL("app"))
	c.tables["user"] = []introspect.ColumnInfo{
		{Name: "id", DataType: "int", AutoIncrement: true},
		{Name: "name", DataType: "varchar", CharacterMaximumLength: 50},
	}

	r := orm.NewRegistry()
	require.NoError(t, orm.Register[user](r, userDescriptor(
		orm.FieldDescriptor{Field: "Email", Name: "email", Type: orm.Varchar, Length: 120, Key: orm.Unique},
	)))

	sql, err := synchronize(t, r, c).SQL()
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `user` ADD `email` VARCHAR(120) NOT NULL;\n"+
		"ALTER TABLE `user` ADD UNIQUE (`email`);", sql)
}

func TestModifyAndDropColumns(t *testing.T) {
	tests := []struct {
		name string
		d    *dialect.Dialect
		want string
	}{
		{
			name: "mysql",
			d:    dialect.MySQL("app"),
			want: "ALTER TABLE `user` DROP COLUMN `legacy`;\n" +
				"ALTER TABLE `user` MODIFY `name` VARCHAR(50) NOT NULL;",
		},
		{
			name: "postgres",
			d:    dialect.Postgres(),
			want: `ALTER TABLE "user" DROP COLUMN "legacy";` + "\n" +
				`ALTER TABLE "user" ALTER COLUMN "name" TYPE VARCHAR(50), ALTER COLUMN "name" SET NOT NULL;`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			types := tt.d.Introspection.DataTypes
			c := newCatalog(tt.d)
			c.tables["user"] = []introspect.ColumnInfo{
				{Name: "id", DataType: types[orm.Int][0], AutoIncrement: true},
				{Name: "name", DataType: types[orm.Varchar][0], CharacterMaximumLength: 20, Nullable: true},
				{Name: "legacy", DataType: types[orm.Text][0], Nullable: true},
			}

			r := orm.NewRegistry()
			require.NoError(t, orm.Register[user](r, userDescriptor()))

			sql, err := synchronize(t, r, c).SQL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestExistingTableGainsRelation(t *testing.T) {
	c := newCatalog(dialect.MySQL("app"))
	c.tables["user"] = []introspect.ColumnInfo{
		{Name: "id", DataType: "int", AutoIncrement: true},
		{Name: "name", DataType: "varchar", CharacterMaximumLength: 50},
	}
	c.tables["tag"] = []introspect.ColumnInfo{
		{Name: "id", DataType: "int", AutoIncrement: true},
		{Name: "label", DataType: "varchar", CharacterMaximumLength: 30},
	}
	c.tables["post"] = []introspect.ColumnInfo{
		{Name: "id", DataType: "int", AutoIncrement: true},
		{Name: "title", DataType: "varchar", CharacterMaximumLength: 100},
	}

	plan := synchronize(t, blogRegistry(t), c)
	require.Equal(t, 3, plan.Len())

	sql, err := plan.Statements()[0].ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `post` ADD `id_user_1` INT NOT NULL;", sql)

	sql, err = plan.Statements()[1].ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "ALTER TABLE `post` ADD CONSTRAINT `fk_post_to_user_1` FOREIGN KEY (`id_user_1`) REFERENCES `user` (`id`) ON DELETE RESTRICT ON UPDATE CASCADE;", sql)

	assert.Equal(t, "post_tag_1", plan.Statements()[2].Table())
}

func TestSelfReferenceDefersForeignKey(t *testing.T) {
	type node struct {
		orm.Model
		Parent *node
	}
	r := orm.NewRegistry()
	require.NoError(t, orm.Register[node](r, orm.EntityDescriptor{
		Table: "node",
		Fields: []orm.FieldDescriptor{
			orm.IDField(),
			{Field: "Parent", Relation: orm.ManyToOne, Target: orm.Ref[node](), Nullable: true},
		},
	}))

	plan := synchronize(t, r, newCatalog(dialect.MySQL("app")))
	require.Equal(t, 2, plan.Len())

	ct, ok := plan.Statements()[0].(*sqlgen.CreateTable)
	require.True(t, ok)
	assert.Empty(t, ct.ForeignKeys())
	require.Len(t, ct.Columns(), 2)
	assert.Equal(t, "id_node_1", ct.Columns()[1].Name)
	assert.True(t, ct.Columns()[1].Nullable)

	at, ok := plan.Statements()[1].(*sqlgen.AlterTable)
	require.True(t, ok)
	assert.Equal(t, sqlgen.Add, at.Action())
	assert.IsType(t, sqlgen.ForeignKey{}, at.Element())
}

func TestEnumValueChangeIsNotDetected(t *testing.T) {
	status := func(values ...string) orm.FieldDescriptor {
		return orm.FieldDescriptor{
			Field: "Status", Name: "status", Type: orm.Enum,
			Enum: &orm.EnumType{Name: "user_status", Values: values},
		}
	}
	c := newCatalog(dialect.MySQL("app"))

	before := orm.NewRegistry()
	require.NoError(t, orm.Register[user](before, userDescriptor(status("active", "banned"))))
	c.apply(t, synchronize(t, before, c))

	after := orm.NewRegistry()
	require.NoError(t, orm.Register[user](after, userDescriptor(status("active", "banned", "pending"))))
	assert.True(t, synchronize(t, after, c).IsEmpty())
}

func TestUnsupportedRelations(t *testing.T) {
	type member struct {
		orm.Model
		Friends []*member
	}
	type team struct {
		orm.Model
		Members []*user
	}

	tests := []struct {
		name     string
		register func(r *orm.Registry) error
	}{
		{
			name: "one to many",
			register: func(r *orm.Registry) error {
				if err := orm.Register[user](r, userDescriptor()); err != nil {
					return err
				}
				return orm.Register[team](r, orm.EntityDescriptor{
					Table:  "team",
					Fields: []orm.FieldDescriptor{orm.IDField(), {Field: "Members", Relation: orm.OneToMany, Target: orm.Ref[user]()}},
				})
			},
		},
		{
			name: "self many to many",
			register: func(r *orm.Registry) error {
				return orm.Register[member](r, orm.EntityDescriptor{
					Table:  "member",
					Fields: []orm.FieldDescriptor{orm.IDField(), {Field: "Friends", Relation: orm.ManyToMany, Target: orm.Ref[member]()}},
				})
			},
		},
		{
			name: "unregistered target",
			register: func(r *orm.Registry) error {
				return orm.Register[team](r, orm.EntityDescriptor{
					Table:  "team",
					Fields: []orm.FieldDescriptor{orm.IDField(), {Field: "Members", Relation: orm.ManyToMany, Target: orm.Ref[user]()}},
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := orm.NewRegistry()
			require.NoError(t, tt.register(r))
			c := newCatalog(dialect.MySQL("app"))

			_, err := NewSynchronizer(r, c.d, c).Synchronize(context.Background())
			assert.ErrorIs(t, err, dialect.ErrConfiguration)
		})
	}
}

func TestInspectorErrorsPropagate(t *testing.T) {
	c := newCatalog(dialect.Postgres())
	c.err = errors.New("connection refused")

	_, err := NewSynchronizer(blogRegistry(t), c.d, c).Synchronize(context.Background())
	assert.EqualError(t, err, "connection refused")
}

func TestSameColumn(t *testing.T) {
	d := dialect.Postgres()
	name := orm.FieldDescriptor{Field: "Name", Name: "name", Type: orm.Varchar, Length: 50}

	assert.True(t, SameColumn(d, name, introspect.ColumnInfo{Name: "name", DataType: "character varying", CharacterMaximumLength: 50}))
	assert.False(t, SameColumn(d, name, introspect.ColumnInfo{Name: "name", DataType: "character varying", CharacterMaximumLength: 80}))
	assert.False(t, SameColumn(d, name, introspect.ColumnInfo{Name: "name", DataType: "text"}))
	assert.False(t, SameColumn(d, name, introspect.ColumnInfo{Name: "name", DataType: "character varying", CharacterMaximumLength: 50, Nullable: true}))
	assert.True(t, SameColumn(d, orm.IDField(), introspect.ColumnInfo{Name: "id", DataType: "integer", AutoIncrement: true}))
}
