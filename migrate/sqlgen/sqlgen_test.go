package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxtgo/nxt-orm/dialect"
)

func TestColumnAddSQL(t *testing.T) {
	my := dialect.MySQL("app")
	pg := dialect.Postgres()
	status := &EnumType{Name: "user_status", Values: []string{"on", "off"}}

	tests := []struct {
		name   string
		column Column
		want   string
	}{
		{"mysql auto increment", Column{Dialect: my, Name: "id", Type: dialect.Int, Length: 11, AutoIncrement: true}, "`id` INT(11) NOT NULL AUTO_INCREMENT"},
		{"postgres serial", Column{Dialect: pg, Name: "id", Type: dialect.Int, Length: 11, AutoIncrement: true}, `"id" SERIAL NOT NULL`},
		{"postgres int ignores width", Column{Dialect: pg, Name: "age", Type: dialect.Int, Length: 3, Nullable: true}, `"age" INT NULL`},
		{"varchar", Column{Dialect: my, Name: "name", Type: dialect.Varchar, Length: 50}, "`name` VARCHAR(50) NOT NULL"},
		{"char without length", Column{Dialect: my, Name: "code", Type: dialect.Char}, "`code` CHAR NOT NULL"},
		{"json is text", Column{Dialect: pg, Name: "scopes", Type: dialect.JSON, Nullable: true}, `"scopes" TEXT NULL`},
		{"mysql datetime", Column{Dialect: my, Name: "created", Type: dialect.DateTime}, "`created` DATETIME NOT NULL"},
		{"postgres timestamp", Column{Dialect: pg, Name: "created", Type: dialect.DateTime}, `"created" TIMESTAMP NOT NULL`},
		{"boolean", Column{Dialect: pg, Name: "active", Type: dialect.Boolean}, `"active" BOOLEAN NOT NULL`},
		{"float", Column{Dialect: my, Name: "score", Type: dialect.Float}, "`score` FLOAT NOT NULL"},
		{"mysql inline enum", Column{Dialect: my, Name: "status", Type: dialect.Enum, Enum: status}, "`status` ENUM ('on', 'off') NOT NULL"},
		{"postgres named enum", Column{Dialect: pg, Name: "status", Type: dialect.Enum, Enum: status}, `"status" "user_status" NOT NULL`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.column.AddSQL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumnErrors(t *testing.T) {
	my := dialect.MySQL("app")

	_, err := Column{Dialect: my, Name: "status", Type: dialect.Enum}.AddSQL()
	assert.ErrorIs(t, err, dialect.ErrConfiguration)

	_, err = Column{Dialect: my, Name: "x", Type: dialect.TypeTag("money")}.AddSQL()
	assert.ErrorIs(t, err, dialect.ErrConfiguration)

	drop, err := Column{Dialect: my, Name: "age"}.DropSQL()
	require.NoError(t, err)
	assert.Equal(t, "COLUMN `age`", drop)
}

func TestIndex(t *testing.T) {
	my := dialect.MySQL("app")
	pg := dialect.Postgres()

	sql, err := Index{Dialect: my, Columns: []string{"a", "b"}, Kind: PrimaryKey}.AddSQL()
	require.NoError(t, err)
	assert.Equal(t, "PRIMARY KEY (`a`, `b`)", sql)

	sql, err = Index{Dialect: pg, Columns: []string{"email"}, Kind: Unique}.AddSQL()
	require.NoError(t, err)
	assert.Equal(t, `UNIQUE ("email")`, sql)

	_, err = Index{Dialect: pg, Columns: []string{"email"}, Kind: IndexKind("FULLTEXT")}.AddSQL()
	assert.ErrorIs(t, err, dialect.ErrConfiguration)

	drop, err := Index{Dialect: my, Columns: []string{"email"}, Kind: Unique}.DropSQL()
	require.NoError(t, err)
	assert.Equal(t, "INDEX `email`", drop)

	_, err = Index{Dialect: pg, Columns: []string{"email"}, Kind: Unique}.DropSQL()
	assert.ErrorIs(t, err, dialect.ErrConfiguration)
}

func TestForeignKey(t *testing.T) {
	fk := ForeignKey{
		Dialect:   dialect.MySQL("app"),
		Column:    "id_user_1",
		Name:      "fk_post_to_user_1",
		RefTable:  "user",
		RefColumn: "id",
		OnDelete:  Restrict,
		OnUpdate:  Cascade,
	}

	sql, err := fk.AddSQL()
	require.NoError(t, err)
	assert.Equal(t, "CONSTRAINT `fk_post_to_user_1` FOREIGN KEY (`id_user_1`) REFERENCES `user` (`id`) ON DELETE RESTRICT ON UPDATE CASCADE", sql)

	drop, err := fk.DropSQL()
	require.NoError(t, err)
	assert.Equal(t, "FOREIGN KEY `fk_post_to_user_1`", drop)

	fk.OnUpdate = ReferenceOption("EXPLODE")
	_, err = fk.AddSQL()
	assert.ErrorIs(t, err, dialect.ErrConfiguration)

	for _, opt := range []ReferenceOption{Cascade, SetNull, Restrict, NoAction, SetDefault} {
		keyword, err := opt.SQL()
		require.NoError(t, err)
		assert.Equal(t, string(opt), keyword)
	}
}

func TestCreateTableMergesPrimaryKeys(t *testing.T) {
	ct := NewCreateTable(dialect.MySQL("app"), "post_tag_1").
		AddColumn(Column{Name: "id_post", Type: dialect.Int}).
		AddColumn(Column{Name: "id_tag", Type: dialect.Int}).
		AddIndex(Index{Columns: []string{"id_post"}, Kind: PrimaryKey}).
		AddIndex(Index{Columns: []string{"id_tag"}, Kind: PrimaryKey}).
		AddForeignKey(ForeignKey{Column: "id_post", Name: "fk_post_tag_to_post_1", RefTable: "post", RefColumn: "id", OnDelete: Cascade, OnUpdate: Cascade})

	sql, err := ct.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE `post_tag_1` (\n"+
		"    `id_post` INT NOT NULL,\n"+
		"    `id_tag` INT NOT NULL,\n"+
		"    PRIMARY KEY (`id_post`, `id_tag`),\n"+
		"    CONSTRAINT `fk_post_tag_to_post_1` FOREIGN KEY (`id_post`) REFERENCES `post` (`id`) ON DELETE CASCADE ON UPDATE CASCADE\n"+
		") ENGINE = InnoDB;", sql)
}

func TestCreateTablePostgresEnum(t *testing.T) {
	ct := NewCreateTable(dialect.Postgres(), "user").
		AddColumn(Column{Name: "id", Type: dialect.Int, AutoIncrement: true}).
		AddColumn(Column{Name: "status", Type: dialect.Enum, Enum: &EnumType{Name: "user_status", Values: []string{"on", "off"}}}).
		AddIndex(Index{Columns: []string{"id"}, Kind: PrimaryKey})

	sql, err := ct.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, `DROP TYPE IF EXISTS "user_status";`+"\n"+
		`CREATE TYPE "user_status" AS ENUM ('on', 'off');`+"\n"+
		`CREATE TABLE "user" (`+"\n"+
		`    "id" SERIAL NOT NULL,`+"\n"+
		`    "status" "user_status" NOT NULL,`+"\n"+
		`    PRIMARY KEY ("id")`+"\n"+
		`);`, sql)
}

func TestCreateTableErrors(t *testing.T) {
	_, err := NewCreateTable(dialect.MySQL("app"), "").AddColumn(Column{Name: "id", Type: dialect.Int}).ToSQL()
	assert.ErrorIs(t, err, dialect.ErrConfiguration)

	_, err = NewCreateTable(dialect.MySQL("app"), "user").ToSQL()
	assert.ErrorIs(t, err, dialect.ErrConfiguration)
}

func TestAlterTable(t *testing.T) {
	my := dialect.MySQL("app")
	pg := dialect.Postgres()

	tests := []struct {
		name string
		stmt *AlterTable
		want string
	}{
		{
			name: "add column",
			stmt: NewAlterTable(my, "user", Add, Column{Name: "age", Type: dialect.Int, Nullable: true}),
			want: "ALTER TABLE `user` ADD `age` INT NULL;",
		},
		{
			name: "drop column",
			stmt: NewAlterTable(pg, "user", Drop, Column{Name: "age"}),
			want: `ALTER TABLE "user" DROP COLUMN "age";`,
		},
		{
			name: "mysql modify",
			stmt: NewAlterTable(my, "user", Modify, Column{Name: "name", Type: dialect.Varchar, Length: 80}),
			want: "ALTER TABLE `user` MODIFY `name` VARCHAR(80) NOT NULL;",
		},
		{
			name: "postgres modify",
			stmt: NewAlterTable(pg, "user", Modify, Column{Name: "name", Type: dialect.Varchar, Length: 80, Nullable: true}),
			want: `ALTER TABLE "user" ALTER COLUMN "name" TYPE VARCHAR(80), ALTER COLUMN "name" DROP NOT NULL;`,
		},
		{
			name: "add foreign key",
			stmt: NewAlterTable(pg, "post", Add, ForeignKey{Column: "id_user_1", Name: "fk_post_to_user_1", RefTable: "user", RefColumn: "id", OnDelete: Restrict, OnUpdate: Cascade}),
			want: `ALTER TABLE "post" ADD CONSTRAINT "fk_post_to_user_1" FOREIGN KEY ("id_user_1") REFERENCES "user" ("id") ON DELETE RESTRICT ON UPDATE CASCADE;`,
		},
		{
			name: "drop foreign key",
			stmt: NewAlterTable(pg, "post", Drop, ForeignKey{Name: "fk_post_to_user_1"}),
			want: `ALTER TABLE "post" DROP CONSTRAINT "fk_post_to_user_1";`,
		},
		{
			name: "postgres enum column",
			stmt: NewAlterTable(pg, "user", Add, Column{Name: "status", Type: dialect.Enum, Enum: &EnumType{Name: "status", Values: []string{"a"}}}),
			want: `DROP TYPE IF EXISTS "status";` + "\n" + `CREATE TYPE "status" AS ENUM ('a');` + "\n" + `ALTER TABLE "user" ADD "status" "status" NOT NULL;`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.stmt.ToSQL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NewAlterTable(my, "user", Modify, Index{Columns: []string{"a"}, Kind: Unique}).ToSQL()
	assert.ErrorIs(t, err, dialect.ErrConfiguration)
}

func TestPlan(t *testing.T) {
	d := dialect.MySQL("app")
	plan := NewPlan()
	assert.True(t, plan.IsEmpty())

	plan.Append(NewCreateTable(d, "user").AddColumn(Column{Name: "id", Type: dialect.Int}))
	plan.Append(NewAlterTable(d, "post", Add, Column{Name: "title", Type: dialect.Varchar, Length: 20}))

	assert.True(t, plan.HasCreateTable("user"))
	assert.False(t, plan.HasCreateTable("post"))
	assert.True(t, plan.HasAlterColumn("post", "title"))
	assert.False(t, plan.HasAlterColumn("user", "title"))
	assert.Equal(t, 2, plan.Len())

	sql, err := plan.SQL()
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE `user` (\n    `id` INT NOT NULL\n) ENGINE = InnoDB;\nALTER TABLE `post` ADD `title` VARCHAR(20) NOT NULL;", sql)

	kind, element := Describe(plan.Statements()[1])
	assert.Equal(t, "ALTER TABLE ADD", kind)
	assert.Equal(t, "column title", element)

	sum, err := plan.Checksum()
	require.NoError(t, err)
	assert.Len(t, sum, 64)
	empty, err := NewPlan().Checksum()
	require.NoError(t, err)
	assert.NotEqual(t, empty, sum)

	plan.Append(NewAlterTable(d, "post", Add, Column{Name: "state", Type: dialect.Enum}))
	_, err = plan.Checksum()
	assert.ErrorIs(t, err, dialect.ErrConfiguration)
}
