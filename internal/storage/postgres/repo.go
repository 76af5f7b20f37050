// Package postgres implements a Postgres repository using pgx v5. Rows are
// loaded with the COPY protocol straight into the target table.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"badgeetl/internal/ddl"
	"badgeetl/internal/table"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN        string   // connection string for pgxpool
	Table      string   // fully qualified target table name, e.g., "public.badges"
	Columns    []string // ordered columns for COPY
	KeyColumns []string // primary key when the table is auto-created
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	close := func() { pool.Close() }
	return &Repository{pool: pool, cfg: cfg}, close, nil
}

// CopyFrom streams rows into the configured table with COPY FROM STDIN.
// pgx encodes int16, int64, bool, time.Time and nil natively.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, splitFQN(r.cfg.Table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("postgres: copy into %s: %w", r.cfg.Table, err)
	}
	return n, nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	_, err := r.pool.Exec(ctx, sql)
	return err
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.badges" to
// "public"."badges". If no dot is present, returns a single quoted ident.
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

// MapType maps a table column type to a Postgres column type.
func MapType(t table.Type) string {
	switch t {
	case table.TypeLong:
		return "BIGINT"
	case table.TypeInt:
		return "INTEGER"
	case table.TypeShort:
		return "SMALLINT"
	case table.TypeDouble:
		return "DOUBLE PRECISION"
	case table.TypeBoolean:
		return "BOOLEAN"
	case table.TypeTimestamp:
		return "TIMESTAMPTZ"
	case table.TypeString:
		return "TEXT"
	}
	return ""
}

// BuildCreateTableSQL renders CREATE TABLE IF NOT EXISTS with quoted names.
func BuildCreateTableSQL(def ddl.TableDef) (string, error) {
	return ddl.Render(def, ddl.Style{Quote: pgIdent, Prefix: "CREATE TABLE IF NOT EXISTS"})
}

// TruncateSQL empties the table.
func TruncateSQL(fqn string) string { return "TRUNCATE TABLE " + pgFQN(fqn) + ";" }
