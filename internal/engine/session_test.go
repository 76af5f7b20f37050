package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"badgeetl/internal/etlerr"
	"badgeetl/internal/storage/sqlite"
	"badgeetl/internal/table"
)

func rawBadges(t *testing.T) *table.Table {
	t.Helper()
	s := table.Schema{
		{Name: "_Date", Type: table.TypeTimestamp, Nullable: true},
		{Name: "_Id", Type: table.TypeLong, Nullable: true},
		{Name: "_Name", Type: table.TypeString, Nullable: true},
		{Name: "_TagBased", Type: table.TypeBoolean, Nullable: true},
	}
	when := time.Date(2008, 7, 31, 21, 42, 52, 667_000_000, time.UTC)
	tbl, err := table.New(s, [][]any{
		{when, int64(1), "Teacher", false},
		{nil, int64(2), nil, true},
	})
	if err != nil {
		t.Fatalf("table.New: %v", err)
	}
	return tbl
}

func openSession(t *testing.T) *Session {
	t.Helper()
	s, err := Open(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRegisterAndQuery(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	f, err := s.Register(ctx, "badges_raw", rawBadges(t))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if f.Rows != 2 {
		t.Fatalf("rows=%d; want 2", f.Rows)
	}
	n, err := s.QueryInt(ctx, "SELECT COUNT(*) FROM "+f.Ident()+" WHERE "+f.Col("_Name")+" IS NULL")
	if err != nil || n != 1 {
		t.Fatalf("null names=%d err=%v; want 1", n, err)
	}

	rows, err := f.Query(ctx, "SELECT * FROM "+f.Ident()+" ORDER BY rowid")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d; want 2", len(rows))
	}
	if got, ok := rows[0][0].(time.Time); !ok || got.Year() != 2008 || got.Nanosecond() != 667_000_000 {
		t.Fatalf("date decoded to %#v", rows[0][0])
	}
	if rows[0][3] != false || rows[1][3] != true {
		t.Fatalf("tag_based decoded to %v/%v", rows[0][3], rows[1][3])
	}
	if rows[1][2] != nil {
		t.Fatalf("null name decoded to %#v", rows[1][2])
	}

	// Re-registering replaces the frame.
	if _, err := s.Register(ctx, "badges_raw", rawBadges(t)); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if n, _ := s.QueryInt(ctx, "SELECT COUNT(*) FROM "+f.Ident()); n != 2 {
		t.Fatalf("count after re-register=%d; want 2", n)
	}
}

func TestRegisterEmptyTable(t *testing.T) {
	ctx := context.Background()
	s := openSession(t)
	tbl, _ := table.New(table.Schema{{Name: "_Id", Type: table.TypeString}}, nil)
	f, err := s.Register(ctx, "empty", tbl)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if n, _ := s.QueryInt(ctx, "SELECT MAX("+f.Col("_Id")+") FROM "+f.Ident()); n != 0 {
		t.Fatalf("max over empty=%d; want 0", n)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	a, b := openSession(t), openSession(t)
	if _, err := a.Register(ctx, "t", rawBadges(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := b.QueryInt(ctx, `SELECT COUNT(*) FROM "t"`); err == nil {
		t.Fatal("frame leaked into another session")
	}
}

func TestCloseIdempotent(t *testing.T) {
	s, err := Open(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.QueryInt(context.Background(), "SELECT 1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v; want ErrClosed", err)
	}
}

func TestOpenMemoryLimitExceedsPhysical(t *testing.T) {
	orig := physicalMemory
	defer func() { physicalMemory = orig }()
	physicalMemory = func() (uint64, error) { return 512 << 20, nil }

	_, err := Open(context.Background(), Options{MemoryLimitMB: 1024})
	if !errors.Is(err, etlerr.ErrResourceAcquisition) {
		t.Fatalf("err=%v; want ErrResourceAcquisition", err)
	}

	s, err := Open(context.Background(), Options{MemoryLimitMB: 256})
	if err != nil {
		t.Fatalf("Open within limit: %v", err)
	}
	_ = s.Close()
}

func TestOpenRepositoryFailure(t *testing.T) {
	orig := openRepository
	defer func() { openRepository = orig }()
	openRepository = func(ctx context.Context, cfg sqlite.Config) (*sqlite.Repository, func(), error) {
		return nil, nil, errors.New("boom")
	}
	_, err := Open(context.Background(), Options{})
	if !errors.Is(err, etlerr.ErrResourceAcquisition) {
		t.Fatalf("err=%v; want ErrResourceAcquisition", err)
	}
}

func TestDecode(t *testing.T) {
	if got := Decode(table.TypeShort, int64(3)); got != int16(3) {
		t.Fatalf("short=%#v", got)
	}
	if got := Decode(table.TypeInt, int64(2008)); got != int32(2008) {
		t.Fatalf("int=%#v", got)
	}
	if got := Decode(table.TypeString, []byte("x")); got != "x" {
		t.Fatalf("string=%#v", got)
	}
	if got := Decode(table.TypeBoolean, nil); got != nil {
		t.Fatalf("nil=%#v", got)
	}
}
