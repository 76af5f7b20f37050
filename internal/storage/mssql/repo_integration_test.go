//go:build integration

package mssql

import (
	"context"
	"os"
	"testing"
	"time"

	"badgeetl/internal/schema"
	"badgeetl/internal/storage"
)

// getTestDSN reads MSSQL_TEST_DSN and skips the test when it is unset.
func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MSSQL_TEST_DSN")
	if dsn == "" {
		t.Skip("MSSQL_TEST_DSN not set; skipping MSSQL integration tests")
	}
	return dsn
}

// TestBadgeMirrorIntegration creates the clean badge table through the
// registered dialect, bulk-loads it and truncates it again.
func TestBadgeMirrorIntegration(t *testing.T) {
	dsn := getTestDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const fqn = "dbo.badges_integration"
	s := schema.Badges("_").CleanSchema()
	repo, err := storage.New(ctx, storage.Config{
		Kind:       "mssql",
		DSN:        dsn,
		Table:      fqn,
		Columns:    s.Names(),
		KeyColumns: []string{schema.ColID},
	})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	defer repo.Close()

	_ = repo.Exec(ctx, "IF OBJECT_ID(N'"+fqn+"', N'U') IS NOT NULL DROP TABLE "+msFQN(fqn)+";")
	t.Cleanup(func() {
		_ = repo.Exec(context.Background(), "DROP TABLE "+msFQN(fqn)+";")
	})

	def, err := storage.EnsureTable(ctx, "mssql", repo, fqn, s, []string{schema.ColID})
	if err != nil {
		t.Fatalf("EnsureTable() error = %v", err)
	}
	if len(def.Columns) != len(s) || !def.Columns[0].PrimaryKey {
		t.Fatalf("EnsureTable() def = %+v", def)
	}
	// The OBJECT_ID guard makes a second create a no-op.
	if _, err := storage.EnsureTable(ctx, "mssql", repo, fqn, s, []string{schema.ColID}); err != nil {
		t.Fatalf("EnsureTable() second call error = %v", err)
	}

	day := time.Date(2008, 7, 31, 21, 42, 52, 667000000, time.UTC)
	rows := [][]any{
		{int64(1), int64(2), "autobiographer", day, int16(3), false, int32(2008)},
		{int64(2), int64(-1), "nice answer", day, int16(2), true, int32(2008)},
		{int64(3), int64(4), nil, nil, nil, nil, nil},
	}
	n, err := repo.CopyFrom(ctx, s.Names(), rows)
	if err != nil {
		t.Fatalf("CopyFrom() error = %v", err)
	}
	if n != int64(len(rows)) {
		t.Fatalf("CopyFrom() inserted = %d, want %d", n, len(rows))
	}

	d, err := storage.DialectFor("mssql")
	if err != nil {
		t.Fatalf("DialectFor() error = %v", err)
	}
	if err := repo.Exec(ctx, d.Truncate(fqn)); err != nil {
		t.Fatalf("Exec(truncate) error = %v", err)
	}
}
