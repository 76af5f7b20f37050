// Package loader reads a row-oriented XML export into a typed table. Every
// attribute of each record element becomes a column; column types are
// inferred from the values the way a schema-on-read XML reader does it.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"badgeetl/internal/config"
	"badgeetl/internal/datasource"
	"badgeetl/internal/etlerr"
	"badgeetl/internal/logging"
	"badgeetl/internal/table"
	"badgeetl/internal/transformer"
	xmlparser "badgeetl/internal/parser/xml"
)

// Options controls Load.
type Options struct {
	// Parser holds parser.options from the pipeline (record_tag,
	// attribute_prefix, zero_copy, ultra_fast, fields, lists).
	Parser config.Options

	Workers int
	Queue   int

	// ExpectedColumns are added as all-null string columns when no record
	// carries them, so downstream queries can still reference them.
	ExpectedColumns []string

	Logger *zap.Logger
}

// ListSeparator joins multi-valued list fields into one string value.
const ListSeparator = ","

// Load reads src and returns the inferred table. A missing source wraps
// etlerr.ErrSourceNotFound; malformed XML wraps etlerr.ErrParse.
func Load(ctx context.Context, src datasource.Source, opts Options) (*table.Table, error) {
	log := logging.OrNop(opts.Logger)
	start := time.Now()

	cfg, err := xmlparser.ConfigFromOptions(opts.Parser)
	if err != nil {
		return nil, fmt.Errorf("loader: %w: %w", etlerr.ErrConfig, err)
	}
	if _, err := xmlparser.Compile(cfg); err != nil {
		return nil, fmt.Errorf("loader: %w: %w", etlerr.ErrConfig, err)
	}

	popts := xmlparser.Options{
		Workers:       opts.Workers,
		Queue:         opts.Queue,
		ZeroCopy:      opts.Parser.Bool("zero_copy", false),
		UltraFast:     opts.Parser.Bool("ultra_fast", false),
		Strict:        true,
		PreserveOrder: true,
		Logger:        log,
	}

	var (
		r    io.ReadCloser
		data []byte
	)
	if buf, ok := src.(datasource.Buffered); ok && popts.ZeroCopy {
		data, err = buf.ReadAll(ctx)
	} else {
		popts.ZeroCopy = false
		r, err = src.Open(ctx)
	}
	if err != nil {
		return nil, sourceErr(src, err)
	}
	if r != nil {
		defer r.Close()
	}

	out := make(chan xmlparser.Record, popts.Queue+1)
	errc := make(chan error, 1)
	go func() {
		errc <- xmlparser.StreamRecords(ctx, r, data, opts.Parser, popts, out)
	}()

	var recs []xmlparser.Record
	for rec := range out {
		recs = append(recs, rec)
	}
	if err := <-errc; err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("loader: %w", ctxErr)
		}
		return nil, fmt.Errorf("loader: %s: %w: %w", src.Name(), etlerr.ErrParse, err)
	}

	tbl, err := Build(ctx, recs, opts.ExpectedColumns, opts.Workers)
	if err != nil {
		return nil, err
	}
	log.Info("loader: loaded",
		zap.String("source", src.Name()),
		zap.Int("rows", tbl.Len()),
		zap.Int("columns", len(tbl.Schema)),
		zap.Duration("elapsed", time.Since(start)),
	)
	log.Debug("loader: inferred schema\n" + tbl.Schema.Tree())
	return tbl, nil
}

func sourceErr(src datasource.Source, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loader: %w: %w", etlerr.ErrSourceNotFound, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("loader: %w", err)
	}
	return fmt.Errorf("loader: open %s: %w", src.Name(), err)
}

// Build turns records into a table. Columns are the union of record keys
// and expected, sorted by name; each column gets the narrowest type that
// accepts all of its values.
func Build(ctx context.Context, recs []xmlparser.Record, expected []string, workers int) (*table.Table, error) {
	names := unionColumns(recs, expected)
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}

	vals := make([][]string, len(names))
	present := make([][]bool, len(names))
	for c := range names {
		vals[c] = make([]string, len(recs))
		present[c] = make([]bool, len(recs))
	}
	rows := make([][]any, len(recs))
	for r, rec := range recs {
		row := make([]any, len(names))
		for k, v := range rec {
			s, ok := flatten(v)
			if !ok {
				continue
			}
			c := idx[k]
			vals[c][r] = s
			present[c][r] = true
			row[c] = s
		}
		rows[r] = row
	}

	rawSchema := make(table.Schema, len(names))
	types := make(map[string]table.Type, len(names))
	for c, n := range names {
		rawSchema[c] = table.Column{Name: n, Type: table.TypeString, Nullable: true}
		types[n] = table.InferType(vals[c], present[c])
	}
	raw, err := table.New(rawSchema, rows)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	typed, _, err := transformer.Project(ctx, raw, transformer.Identity(rawSchema, types), workers)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	return typed, nil
}

func unionColumns(recs []xmlparser.Record, expected []string) []string {
	set := make(map[string]struct{})
	for _, rec := range recs {
		for k := range rec {
			set[k] = struct{}{}
		}
	}
	for _, k := range expected {
		set[k] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func flatten(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []string:
		return strings.Join(x, ListSeparator), true
	case nil:
		return "", false
	}
	return fmt.Sprint(v), true
}
