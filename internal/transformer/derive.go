package transformer

import (
	"context"
	"fmt"

	"badgeetl/internal/table"
)

// Derived describes a column computed from the other columns of a row.
type Derived struct {
	Column table.Column
	// Compute receives the full input row and returns the new value.
	Compute func(row []any) any
}

// Derive returns a new table with d appended as the last column. The input
// table is not modified.
func Derive(ctx context.Context, in *table.Table, d Derived) (*table.Table, error) {
	if in.Schema.Index(d.Column.Name) >= 0 {
		return nil, fmt.Errorf("transformer: derived column %q already exists", d.Column.Name)
	}
	if !d.Column.Type.Valid() {
		return nil, fmt.Errorf("transformer: derived column %q: unknown type %q", d.Column.Name, d.Column.Type)
	}
	schema := make(table.Schema, len(in.Schema), len(in.Schema)+1)
	copy(schema, in.Schema)
	schema = append(schema, d.Column)

	rows := make([][]any, len(in.Rows))
	for i, r := range in.Rows {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("transformer: derive: %w", err)
			}
		}
		out := make([]any, len(r)+1)
		copy(out, r)
		out[len(r)] = d.Compute(r)
		rows[i] = out
	}
	return &table.Table{Schema: schema, Rows: rows}, nil
}
