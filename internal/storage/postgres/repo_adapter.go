// Package postgres provides a Postgres-backed storage.Repository implementation.
// This adapter wires the Postgres backend into the storage-agnostic factory by
// registering a constructor at init time. The clean binary and other callers
// can then obtain a Repository via storage.New(...) without importing this
// package directly.
//
// The adapter also registers the Postgres DDL dialect so that the mirror can
// create and truncate the target table based only on storage.Kind.
package postgres

import (
	"context"

	"badgeetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

// Ensure wrappedRepo satisfies storage.Repository at compile time.
var _ storage.Repository = (*wrappedRepo)(nil)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// CopyFrom implements storage.Repository.CopyFrom by delegating directly to
// the underlying *Repository. This wrapper exists to keep the adapter free to
// evolve independently of the concrete implementation's method set.
func (w *wrappedRepo) CopyFrom(
	ctx context.Context,
	columns []string,
	rows [][]any,
) (int64, error) {
	return w.Repository.CopyFrom(ctx, columns, rows)
}

// init registers the "postgres" backend with the storage factory and also
// registers the DDL dialect for storage.Kind == "postgres". This keeps the
// wiring in one place and allows callers to remain backend-agnostic.
//
// Typical usage:
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", ...})
//	defer repo.Close()
//
//	_, err = storage.EnsureTable(ctx, "postgres", repo, "public.badges", schema, nil)
func init() {
	// Repository factory registration.
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		// Adapt storage.Config → postgres.Config.
		r, closeFn, err := newRepository(ctx, Config{
			DSN:        cfg.DSN,
			Table:      cfg.Table,
			Columns:    cfg.Columns,
			KeyColumns: cfg.KeyColumns,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})

	storage.RegisterDDL("postgres", storage.Dialect{
		MapType:     MapType,
		CreateTable: BuildCreateTableSQL,
		Truncate:    TruncateSQL,
	})
}
