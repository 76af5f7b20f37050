package sqlite

import (
	"badgeetl/internal/ddl"
	"badgeetl/internal/table"
)

// MapType maps a table column type to a SQLite storage class.
func MapType(t table.Type) string {
	switch t {
	case table.TypeLong, table.TypeInt, table.TypeShort, table.TypeBoolean:
		return "INTEGER"
	case table.TypeDouble:
		return "REAL"
	case table.TypeTimestamp, table.TypeString:
		return "TEXT"
	}
	return ""
}

// BuildCreateTableSQL renders an idempotent CREATE TABLE for SQLite.
func BuildCreateTableSQL(def ddl.TableDef) (string, error) {
	return ddl.Render(def, ddl.Style{Quote: QuoteIdent, Prefix: "CREATE TABLE IF NOT EXISTS"})
}

// TruncateSQL empties a table; SQLite has no TRUNCATE.
func TruncateSQL(fqn string) string { return "DELETE FROM " + QuoteFQN(fqn) + ";" }
