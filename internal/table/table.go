package table

import "fmt"

// Table holds rows aligned to Schema. Rows are never mutated in place by the
// pipeline; each step builds a new Table.
type Table struct {
	Schema Schema
	Rows   [][]any
}

// New returns a table, checking that every row matches the schema width.
func New(schema Schema, rows [][]any) (*Table, error) {
	for i, r := range rows {
		if len(r) != len(schema) {
			return nil, fmt.Errorf("table: row %d has %d values, schema has %d columns", i, len(r), len(schema))
		}
	}
	return &Table{Schema: schema, Rows: rows}, nil
}

// Len returns the row count.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]any, error) {
	idx := t.Schema.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("table: unknown column %q", name)
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out, nil
}
