// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories and DDL dialects with the storage package:
//
//   - "postgres" (badgeetl/internal/storage/postgres)
//   - "mssql"    (badgeetl/internal/storage/mssql)
//   - "sqlite"   (badgeetl/internal/storage/sqlite)
//
// Typical usage:
//
//	import _ "badgeetl/internal/storage/all"
//
//	n, err := storage.Mirror(ctx, storage.MirrorOptions{
//	    Config:     storage.Config{Kind: "sqlite", DSN: "badges.db", Table: "badges"},
//	    AutoCreate: true,
//	    Replace:    true,
//	}, cleaned, log)
package all

import (
	_ "badgeetl/internal/storage/mssql"
	_ "badgeetl/internal/storage/postgres"
	_ "badgeetl/internal/storage/sqlite"
)
