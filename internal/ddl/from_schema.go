package ddl

import (
	"fmt"

	"badgeetl/internal/table"
)

// FromSchema builds a TableDef for fqn whose columns follow s in order.
// Columns named in keys become NOT NULL primary key columns; every other
// column is nullable.
func FromSchema(fqn string, s table.Schema, mapType func(table.Type) string, keys []string) (TableDef, error) {
	if fqn == "" {
		return TableDef{}, fmt.Errorf("ddl: table name is required")
	}
	if len(s) == 0 {
		return TableDef{}, fmt.Errorf("ddl: schema for %s has no columns", fqn)
	}
	if mapType == nil {
		return TableDef{}, fmt.Errorf("ddl: no type mapping for %s", fqn)
	}
	pk := make(map[string]bool, len(keys))
	for _, k := range keys {
		if s.Index(k) < 0 {
			return TableDef{}, fmt.Errorf("ddl: key column %q not in schema", k)
		}
		pk[k] = true
	}

	def := TableDef{FQN: fqn, Columns: make([]ColumnDef, 0, len(s))}
	for _, c := range s {
		sqlType := mapType(c.Type)
		if sqlType == "" {
			return TableDef{}, fmt.Errorf("ddl: column %s: unsupported type %q", c.Name, c.Type)
		}
		def.Columns = append(def.Columns, ColumnDef{
			Name:       c.Name,
			SQLType:    sqlType,
			Nullable:   !pk[c.Name],
			PrimaryKey: pk[c.Name],
		})
	}
	return def, nil
}
