package transformer

import (
	"context"
	"testing"

	"badgeetl/internal/table"
)

func TestDeriveAppendsColumn(t *testing.T) {
	in, _ := table.New(table.Schema{{Name: "n", Type: table.TypeLong}}, [][]any{{int64(2)}, {nil}})
	out, err := Derive(context.Background(), in, Derived{
		Column: table.Column{Name: "double", Type: table.TypeLong, Nullable: true},
		Compute: func(row []any) any {
			if n, ok := row[0].(int64); ok {
				return n * 2
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(out.Schema) != 2 || out.Schema[1].Name != "double" {
		t.Fatalf("schema=%v", out.Schema.Names())
	}
	if out.Rows[0][1] != int64(4) || out.Rows[1][1] != nil {
		t.Fatalf("rows=%v", out.Rows)
	}
	if len(in.Rows[0]) != 1 || len(in.Schema) != 1 {
		t.Fatal("input table was modified")
	}
}

func TestDeriveRejectsExisting(t *testing.T) {
	in, _ := table.New(table.Schema{{Name: "n", Type: table.TypeLong}}, nil)
	_, err := Derive(context.Background(), in, Derived{Column: table.Column{Name: "n", Type: table.TypeLong}, Compute: func([]any) any { return nil }})
	if err == nil {
		t.Fatal("want error for duplicate column")
	}
}
