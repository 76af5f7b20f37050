package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:badges.db?cache=shared"
	//   "file:<name>?mode=memory&cache=shared"
	DSN string

	// Table is the default target table for CopyFrom.
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string

	// KeyColumns become the primary key when the table is auto-created.
	KeyColumns []string

	// MaxConns caps the pool; 0 leaves the database/sql default.
	MaxConns int

	// Pragmas are executed once after the connection is verified.
	Pragmas []string
}
