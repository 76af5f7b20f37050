package storage

import (
	"context"
	"fmt"
	"sync"

	"badgeetl/internal/ddl"
	"badgeetl/internal/table"
)

// Dialect is what a backend registers so that callers can create and reset
// the mirror table without knowing which database they talk to.
type Dialect struct {
	// MapType maps a table column type to the backend's SQL type.
	MapType func(t table.Type) string
	// CreateTable renders an idempotent CREATE TABLE statement.
	CreateTable func(def ddl.TableDef) (string, error)
	// Truncate renders a statement that empties the table.
	Truncate func(fqn string) string
}

var (
	ddlMu    sync.RWMutex
	dialects = map[string]Dialect{}
)

// RegisterDDL registers (or replaces) the dialect for the given storage kind.
// It is typically called from backend packages' init() functions.
func RegisterDDL(kind string, d Dialect) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	dialects[kind] = d
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (Dialect, error) {
	ddlMu.RLock()
	d, ok := dialects[kind]
	ddlMu.RUnlock()
	if !ok {
		return Dialect{}, fmt.Errorf("storage: no DDL dialect registered for kind=%q", kind)
	}
	return d, nil
}

// EnsureTable derives a table definition from s and applies the backend's
// CREATE TABLE through repo.
func EnsureTable(ctx context.Context, kind string, repo Repository, fqn string, s table.Schema, keys []string) (ddl.TableDef, error) {
	d, err := DialectFor(kind)
	if err != nil {
		return ddl.TableDef{}, err
	}
	def, err := ddl.FromSchema(fqn, s, d.MapType, keys)
	if err != nil {
		return ddl.TableDef{}, fmt.Errorf("infer table definition: %w", err)
	}
	stmt, err := d.CreateTable(def)
	if err != nil {
		return def, err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return def, fmt.Errorf("create table %s: %w", fqn, err)
	}
	return def, nil
}
