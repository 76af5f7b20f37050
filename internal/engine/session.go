// Package engine holds the query session the profiler and cleaner run their
// declarative checks in: an embedded SQLite database into which typed tables
// are registered as frames.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"badgeetl/internal/etlerr"
	"badgeetl/internal/logging"
	"badgeetl/internal/storage/sqlite"
	"badgeetl/internal/table"
)

// Options configures Open.
type Options struct {
	// DSN overrides the private in-memory database.
	DSN string
	// MemoryLimitMB caps the session's heap (0 = unlimited). Asking for more
	// than the machine has fails acquisition.
	MemoryLimitMB int
	// MaxConns defaults to 1; helpers drain every result set before
	// returning, so a single connection never deadlocks.
	MaxConns int
	Logger   *zap.Logger
}

// Test seams.
var (
	physicalMemory = physicalMemoryBytes
	openRepository = sqlite.NewRepository
)

// Session is one engine session. It is not safe for concurrent use by
// multiple goroutines issuing interleaved queries.
type Session struct {
	repo    *sqlite.Repository
	closeFn func()
	log     *zap.Logger

	mu     sync.Mutex
	frames map[string]*Frame
	closed bool
}

// Open acquires a session. Every failure wraps etlerr.ErrResourceAcquisition.
func Open(ctx context.Context, opts Options) (*Session, error) {
	log := logging.OrNop(opts.Logger)
	if opts.MemoryLimitMB < 0 {
		return nil, fmt.Errorf("engine: %w: negative memory limit %d", etlerr.ErrResourceAcquisition, opts.MemoryLimitMB)
	}
	limit := uint64(opts.MemoryLimitMB) << 20
	if limit > 0 {
		phys, err := physicalMemory()
		switch {
		case err != nil:
			log.Warn("engine: cannot read physical memory; skipping check", zap.Error(err))
		case limit > phys:
			return nil, fmt.Errorf("engine: %w: memory limit %d MiB exceeds physical memory %d MiB",
				etlerr.ErrResourceAcquisition, opts.MemoryLimitMB, phys>>20)
		}
	}

	dsn := opts.DSN
	if dsn == "" {
		dsn = "file:badges-" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = 1
	}
	cfg := sqlite.Config{DSN: dsn, MaxConns: maxConns}
	if limit > 0 {
		cfg.Pragmas = append(cfg.Pragmas, fmt.Sprintf("PRAGMA soft_heap_limit=%d", limit))
	}
	repo, closeFn, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: %w: %w", etlerr.ErrResourceAcquisition, err)
	}
	log.Debug("engine: session open", zap.Int("memory_limit_mb", opts.MemoryLimitMB), zap.Int("max_conns", maxConns))
	return &Session{repo: repo, closeFn: closeFn, log: log, frames: map[string]*Frame{}}, nil
}

// Close releases the session. It is safe to call more than once.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closeFn != nil {
		s.closeFn()
	}
	s.log.Debug("engine: session closed", zap.Int("frames", len(s.frames)))
	return nil
}

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("engine: session closed")

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Frame is a table registered in a session.
type Frame struct {
	Name   string
	Schema table.Schema
	Rows   int
	sess   *Session
}

// Ident returns the quoted table name for use in SQL text.
func (f *Frame) Ident() string { return sqlite.QuoteIdent(f.Name) }

// Col returns the quoted column name for use in SQL text.
func (f *Frame) Col(name string) string { return sqlite.QuoteIdent(name) }

// Session returns the session the frame lives in.
func (f *Frame) Session() *Session { return f.sess }

// Register loads tbl into the session as name, replacing a previous frame of
// the same name.
func (s *Session) Register(ctx context.Context, name string, tbl *table.Table) (*Frame, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("engine: frame name is required")
	}
	if len(tbl.Schema) == 0 {
		return nil, fmt.Errorf("engine: frame %s has no columns", name)
	}
	cols := make([]string, len(tbl.Schema))
	for i, c := range tbl.Schema {
		typ := sqlite.MapType(c.Type)
		if typ == "" {
			return nil, fmt.Errorf("engine: frame %s: column %s has unsupported type %q", name, c.Name, c.Type)
		}
		cols[i] = sqlite.QuoteIdent(c.Name) + " " + typ
	}
	ident := sqlite.QuoteIdent(name)
	if err := s.repo.Exec(ctx, "DROP TABLE IF EXISTS "+ident); err != nil {
		return nil, fmt.Errorf("engine: register %s: %w", name, err)
	}
	if err := s.repo.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", ident, strings.Join(cols, ", "))); err != nil {
		return nil, fmt.Errorf("engine: register %s: %w", name, err)
	}
	n, err := s.repo.CopyInto(ctx, name, tbl.Schema.Names(), tbl.Rows)
	if err != nil {
		return nil, fmt.Errorf("engine: register %s: %w", name, err)
	}
	f := &Frame{Name: name, Schema: tbl.Schema, Rows: int(n), sess: s}
	s.mu.Lock()
	s.frames[name] = f
	s.mu.Unlock()
	s.log.Debug("engine: frame registered", zap.String("frame", name), zap.Int64("rows", n))
	return f, nil
}
