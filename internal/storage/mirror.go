package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"badgeetl/internal/logging"
	"badgeetl/internal/metrics"
	"badgeetl/internal/table"
)

// MirrorOptions controls how a table is copied into a database.
type MirrorOptions struct {
	Config
	// AutoCreate runs the backend's CREATE TABLE before loading.
	AutoCreate bool
	// Replace empties the target table before loading.
	Replace   bool
	BatchSize int
	Buffer    int
	// Job labels the batch counter.
	Job string
}

// Mirror copies every row of tbl into the configured database table and
// returns the number of rows the backend reported as inserted. When
// opts.Columns is empty every column of tbl is copied.
func Mirror(ctx context.Context, opts MirrorOptions, tbl *table.Table, log *zap.Logger) (int64, error) {
	log = logging.OrNop(log)
	if opts.Table == "" {
		return 0, fmt.Errorf("storage: mirror table is required")
	}
	cols, idx, err := mirrorColumns(tbl.Schema, opts.Columns)
	if err != nil {
		return 0, err
	}
	opts.Columns = cols
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5000
	}

	repo, err := New(ctx, opts.Config)
	if err != nil {
		return 0, fmt.Errorf("storage: open %s: %w", opts.Kind, err)
	}
	defer repo.Close()

	if opts.AutoCreate {
		sub := make(table.Schema, len(idx))
		for i, j := range idx {
			sub[i] = tbl.Schema[j]
		}
		if _, err := EnsureTable(ctx, opts.Kind, repo, opts.Table, sub, opts.KeyColumns); err != nil {
			return 0, fmt.Errorf("storage: %w", err)
		}
	}
	if opts.Replace {
		d, err := DialectFor(opts.Kind)
		if err != nil {
			return 0, err
		}
		if err := repo.Exec(ctx, d.Truncate(opts.Table)); err != nil {
			return 0, fmt.Errorf("storage: truncate %s: %w", opts.Table, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, opts.Buffer)
	go func() {
		defer close(in)
		for _, row := range tbl.Rows {
			out := make([]any, len(idx))
			for i, j := range idx {
				out[i] = row[j]
			}
			select {
			case in <- out:
			case <-ctx.Done():
				return
			}
		}
	}()

	var batches int64
	copyFn := func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
		n, err := repo.CopyFrom(ctx, columns, rows)
		if err == nil {
			batches++
		}
		return n, err
	}
	n, err := LoadBatches(ctx, log, cols, in, opts.BatchSize, copyFn)
	metrics.RecordBatches(opts.Job, batches)
	if err != nil {
		return n, fmt.Errorf("storage: mirror into %s: %w", opts.Table, err)
	}
	log.Info("storage: mirrored",
		zap.String("kind", opts.Kind),
		zap.String("table", opts.Table),
		zap.Int64("rows", n),
	)
	return n, nil
}

func mirrorColumns(s table.Schema, want []string) ([]string, []int, error) {
	if len(want) == 0 {
		idx := make([]int, len(s))
		for i := range s {
			idx[i] = i
		}
		return s.Names(), idx, nil
	}
	idx := make([]int, len(want))
	for i, name := range want {
		j := s.Index(name)
		if j < 0 {
			return nil, nil, fmt.Errorf("storage: column %q not in table", name)
		}
		idx[i] = j
	}
	return append([]string(nil), want...), idx, nil
}
