package ddl

import (
	"strings"
	"testing"

	"badgeetl/internal/table"
)

func testTypes(t table.Type) string {
	switch t {
	case table.TypeLong:
		return "BIGINT"
	case table.TypeString:
		return "TEXT"
	}
	return ""
}

func TestFromSchema(t *testing.T) {
	s := table.Schema{
		{Name: "id", Type: table.TypeLong},
		{Name: "name", Type: table.TypeString, Nullable: true},
	}
	def, err := FromSchema("badges", s, testTypes, []string{"id"})
	if err != nil {
		t.Fatalf("FromSchema: %v", err)
	}
	if len(def.Columns) != 2 {
		t.Fatalf("columns=%d; want 2", len(def.Columns))
	}
	if !def.Columns[0].PrimaryKey || def.Columns[0].Nullable {
		t.Fatalf("id column = %+v; want NOT NULL primary key", def.Columns[0])
	}
	if def.Columns[1].PrimaryKey || !def.Columns[1].Nullable {
		t.Fatalf("name column = %+v; want nullable", def.Columns[1])
	}
}

func TestFromSchemaErrors(t *testing.T) {
	s := table.Schema{{Name: "id", Type: table.TypeLong}, {Name: "at", Type: table.TypeTimestamp}}
	cases := []struct {
		name string
		fqn  string
		keys []string
		want string
	}{
		{"no table", "", nil, "table name is required"},
		{"unknown key", "t", []string{"nope"}, "not in schema"},
		{"unmapped type", "t", nil, "unsupported type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromSchema(tc.fqn, s, testTypes, tc.keys)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v; want substring %q", err, tc.want)
			}
		})
	}
}

func TestRenderStyle(t *testing.T) {
	quote := func(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
	def := TableDef{
		FQN: "main.badges",
		Columns: []ColumnDef{
			{Name: "id", SQLType: "INTEGER", PrimaryKey: true},
			{Name: "name", SQLType: "TEXT", Nullable: true},
		},
	}
	got, err := Render(def, Style{Quote: quote, Prefix: "CREATE TABLE IF NOT EXISTS"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS \"main\".\"badges\" (\n  \"id\" INTEGER NOT NULL,\n  \"name\" TEXT,\n  PRIMARY KEY (\"id\")\n);"
	if got != want {
		t.Fatalf("Render =\n%s\nwant:\n%s", got, want)
	}

	guarded, err := Render(def, Style{Guard: func(fqn, stmt string) string { return "IF 1=1 " + fqn + " " + stmt }})
	if err != nil {
		t.Fatalf("Render guard: %v", err)
	}
	if !strings.HasPrefix(guarded, "IF 1=1 main.badges CREATE TABLE main.badges") {
		t.Fatalf("guarded = %q", guarded)
	}
}
