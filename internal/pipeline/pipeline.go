// Package pipeline runs the two badge jobs end to end: the read-only
// profile and the clean + export run. Both acquire one engine session and
// release it before returning.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"badgeetl/internal/clean"
	"badgeetl/internal/config"
	"badgeetl/internal/datasource"
	"badgeetl/internal/datasource/file"
	"badgeetl/internal/datasource/httpds"
	"badgeetl/internal/engine"
	"badgeetl/internal/export"
	"badgeetl/internal/loader"
	"badgeetl/internal/logging"
	"badgeetl/internal/metrics"
	"badgeetl/internal/profile"
	"badgeetl/internal/schema"
	"badgeetl/internal/storage"
	"badgeetl/internal/table"
)

// Function variables used as test seams.
var (
	openSessionFn = engine.Open
	loadFn        = loader.Load
	exportFn      = export.Write
	validateFn    = export.Validate
	mirrorFn      = storage.Mirror
)

// CleanResult is everything RunClean produced.
type CleanResult struct {
	Clean      *clean.Result
	Export     *export.Result
	Validation *export.Validation
	Mirrored   int64
	// Warnings aggregates every non-fatal finding of the run.
	Warnings error
}

func contractFor(p config.Pipeline) schema.Contract {
	return schema.Badges(p.Parser.Options.String("attribute_prefix", config.DefaultAttributePrefix))
}

func openSession(ctx context.Context, p config.Pipeline, log *zap.Logger) (*engine.Session, error) {
	return openSessionFn(ctx, engine.Options{
		DSN:           p.Engine.DSN,
		MemoryLimitMB: p.Engine.MemoryLimitMB,
		MaxConns:      p.Engine.MaxConns,
		Logger:        log,
	})
}

// sourceFor builds the datasource selected by source.kind.
func sourceFor(p config.Pipeline) datasource.Source {
	if p.Source.Kind == "http" {
		h := p.Source.HTTP
		hdr := http.Header{}
		for k, v := range h.Headers {
			hdr.Set(k, v)
		}
		cfg := httpds.Config{
			URL:                h.URL,
			Headers:            hdr,
			Timeout:            time.Duration(h.TimeoutSeconds) * time.Second,
			MaxRetries:         3,
			InsecureSkipVerify: h.Insecure,
		}
		if h.MaxRetries != nil {
			cfg.MaxRetries = *h.MaxRetries
		}
		return httpds.New(cfg)
	}
	return file.NewLocal(p.Source.File.Path)
}

func load(ctx context.Context, p config.Pipeline, src datasource.Source, c schema.Contract, log *zap.Logger) (*table.Table, error) {
	var tbl *table.Table
	err := metrics.Time(p.Job, "load", func() error {
		var err error
		tbl, err = loadFn(ctx, src, loader.Options{
			Parser:          p.Parser.Options,
			Workers:         p.Runtime.ReaderWorkers,
			Queue:           p.Runtime.ChannelBuffer,
			ExpectedColumns: c.RawColumns(),
			Logger:          log,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(p.Job, metrics.KindLoaded, int64(tbl.Len()))
	return tbl, nil
}

// RunProfile loads the source, profiles it and prints the report to out.
func RunProfile(ctx context.Context, p config.Pipeline, out io.Writer, log *zap.Logger) (rep *profile.Report, err error) {
	log = logging.OrNop(log)
	sess, err := openSession(ctx, p, log)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	defer func() { err = multierr.Append(err, sess.Close()) }()

	c := contractFor(p)
	tbl, err := load(ctx, p, sourceFor(p), c, log)
	if err != nil {
		return nil, err
	}
	err = metrics.Time(p.Job, "profile", func() error {
		f, err := sess.Register(ctx, clean.RawFrame, tbl)
		if err != nil {
			return err
		}
		rep, err = profile.Profile(ctx, f, profile.Options{
			Contract:     c,
			SampleSize:   p.Profile.SampleSize,
			TopN:         p.Profile.TopN,
			ValidClasses: p.Profile.ValidClasses,
			Logger:       log,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	profile.Render(out, rep)
	log.Info("pipeline: profile complete", zap.String("job", p.Job), zap.Int64("rows", rep.TotalRows))
	return rep, nil
}

// RunClean loads the source, cleans it, exports the result and validates the
// round trip, then mirrors the clean table when storage.kind is set. A
// round-trip mismatch is returned as the error together with the result.
func RunClean(ctx context.Context, p config.Pipeline, out io.Writer, log *zap.Logger) (res *CleanResult, err error) {
	log = logging.OrNop(log)
	sess, err := openSession(ctx, p, log)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}()

	c, src := contractFor(p), sourceFor(p)
	raw, err := load(ctx, p, src, c, log)
	if err != nil {
		return nil, err
	}

	res = &CleanResult{}
	err = metrics.Time(p.Job, "clean", func() error {
		var err error
		res.Clean, err = clean.Clean(ctx, sess, raw, clean.Options{
			Contract:       c,
			Sentinels:      p.Clean.Sentinels,
			AnomalyColumns: p.Clean.AnomalyColumns,
			AnomalySamples: p.Clean.AnomalySamples,
			SampleSize:     p.Clean.SampleSize,
			ValidClasses:   p.Profile.ValidClasses,
			Workers:        p.Runtime.ReaderWorkers,
			Logger:         log,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	recordClean(p.Job, res.Clean)
	res.Warnings = res.Clean.Warnings
	clean.Render(out, res.Clean)

	expOpts := export.Options{
		Path:        p.Export.Path,
		PartitionBy: p.Export.PartitionBy,
		Compression: p.Export.Compression,
		Writers:     p.Runtime.Writers,
		Logger:      log,
	}
	err = metrics.Time(p.Job, "export", func() error {
		var err error
		res.Export, err = exportFn(ctx, res.Clean.Table, expOpts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	metrics.RecordRows(p.Job, metrics.KindExported, res.Export.Rows)
	metrics.RecordPartitions(p.Job, int64(len(res.Export.Files)))

	var mismatch error
	err = metrics.Time(p.Job, "validate", func() error {
		var err error
		res.Validation, err = validateFn(ctx, res.Export.Path, int64(res.Clean.Table.Len()), expOpts)
		if res.Validation != nil {
			mismatch, err = err, nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	export.Render(out, res.Export, res.Validation)
	res.Warnings = multierr.Append(res.Warnings, mismatch)

	if p.Storage.Kind != "" {
		err = metrics.Time(p.Job, "mirror", func() error {
			var err error
			res.Mirrored, err = mirrorFn(ctx, storage.MirrorOptions{
				Config: storage.Config{
					Kind:       p.Storage.Kind,
					DSN:        p.Storage.DB.DSN,
					Table:      p.Storage.DB.Table,
					Columns:    p.Storage.DB.Columns,
					KeyColumns: p.Storage.DB.KeyColumns,
				},
				AutoCreate: p.Storage.DB.AutoCreateTable,
				Replace:    p.Storage.DB.ReplaceOrDefault(),
				BatchSize:  p.Runtime.BatchSize,
				Buffer:     p.Runtime.ChannelBuffer,
				Job:        p.Job,
			}, res.Clean.Table, log)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		metrics.RecordRows(p.Job, metrics.KindMirrored, res.Mirrored)
	}
	renderSummary(out, src.Name(), c, res, p.Export.PartitionBy)

	log.Info("pipeline: clean complete",
		zap.String("job", p.Job),
		zap.Int64("rows", res.Clean.FinalCount),
		zap.String("output", res.Export.Path),
		zap.Int("warnings", len(multierr.Errors(res.Warnings))),
	)
	return res, mismatch
}

func recordClean(job string, r *clean.Result) {
	var casts, anomalies, violations int64
	for _, n := range r.CastFailures {
		casts += int64(n)
	}
	for _, a := range r.Anomalies {
		anomalies += a.Count
	}
	for _, n := range r.DomainViolations {
		violations += int64(n)
	}
	metrics.RecordRows(job, metrics.KindCastFailures, casts)
	metrics.RecordRows(job, metrics.KindAnomalies, anomalies)
	metrics.RecordRows(job, metrics.KindViolations, violations)
}
