// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE statements from that model. Storage backends render
// through Render with their own Style.
package ddl

import (
	"fmt"
	"strings"
)

// Style carries the dialect-specific pieces of a CREATE TABLE statement.
type Style struct {
	// Quote quotes one identifier segment; nil emits names verbatim.
	Quote func(id string) string
	// Prefix replaces "CREATE TABLE", e.g. "CREATE TABLE IF NOT EXISTS".
	Prefix string
	// Guard, when set, wraps the whole statement (SQL Server has no
	// IF NOT EXISTS for tables). It receives the raw FQN and the statement.
	Guard func(fqn, stmt string) string
}

func (st Style) quote(id string) string {
	if st.Quote == nil {
		return id
	}
	return st.Quote(id)
}

func (st Style) quoteFQN(fqn string) string {
	if st.Quote == nil {
		return fqn
	}
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = st.Quote(strings.TrimSpace(p))
	}
	return strings.Join(parts, ".")
}

// Render renders t in the given style as
//
//	CREATE TABLE <FQN> (
//	  <Name> <SQLType> [NOT NULL] [DEFAULT <Default>],
//	  ...,
//	  [PRIMARY KEY (<pk-cols>)]
//	);
//
// NOT NULL is added when Nullable is false. Names, types and defaults are
// trimmed.
func Render(t TableDef, st Style) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(st.quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}

		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}

		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, st.quote(name))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	prefix := st.Prefix
	if prefix == "" {
		prefix = "CREATE TABLE"
	}
	stmt := fmt.Sprintf(
		"%s %s (\n  %s\n);",
		prefix,
		st.quoteFQN(fqn),
		strings.Join(cols, ",\n  "),
	)
	if st.Guard != nil {
		stmt = st.Guard(fqn, stmt)
	}
	return stmt, nil
}
