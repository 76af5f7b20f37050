package transformer

import (
	"context"
	"testing"

	"badgeetl/internal/table"
)

func TestValidateRows(t *testing.T) {
	t.Parallel()

	schema := table.Schema{{Name: "name", Type: table.TypeString}, {Name: "badge_class", Type: table.TypeShort}}
	in, _ := table.New(schema, [][]any{
		{"teacher", int16(3)},
		{"", int16(99)},
		{nil, nil},
		{"x", int16(1)},
	})
	rules := []Rule{Required("name"), OneOf("badge_class", []int64{1, 2, 3})}

	counts, examples, err := ValidateRows(context.Background(), in, rules, 1)
	if err != nil {
		t.Fatalf("ValidateRows: %v", err)
	}
	if counts["name"] != 2 || counts["badge_class"] != 1 {
		t.Fatalf("counts=%v", counts)
	}
	if len(examples) != 1 || examples[0].Row != 1 || examples[0].Reason != "empty" {
		t.Fatalf("examples=%+v", examples)
	}
	if in.Len() != 4 {
		t.Fatalf("table was filtered: %d rows", in.Len())
	}

	if _, _, err := ValidateRows(context.Background(), in, []Rule{Required("nope")}, 1); err == nil {
		t.Fatal("unknown column accepted")
	}
}
