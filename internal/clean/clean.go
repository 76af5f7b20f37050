// Package clean turns the raw badge table into the canonical clean table:
// renamed and cast columns, a normalized name, and the derived badge_year.
// Suspicious values are flagged and counted; no row is ever dropped.
package clean

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"badgeetl/internal/engine"
	"badgeetl/internal/etlerr"
	"badgeetl/internal/logging"
	"badgeetl/internal/profile"
	"badgeetl/internal/schema"
	"badgeetl/internal/table"
	"badgeetl/internal/transformer"
)

// Frame names used in the session.
const (
	RawFrame   = "badges_raw"
	CleanFrame = "badges_clean"
)

// Options controls Clean.
type Options struct {
	Contract  schema.Contract
	Sentinels []string
	// AnomalyColumns are raw columns scanned for sentinels; default is the
	// raw name column.
	AnomalyColumns []string
	AnomalySamples int
	SampleSize     int
	ValidClasses   []int
	Workers        int
	Logger         *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Contract.Fields == nil {
		o.Contract = schema.Badges("_")
	}
	if o.Sentinels == nil {
		o.Sentinels = []string{"nan", "null", "n/a", "na", "none", "-", ""}
	}
	if len(o.AnomalyColumns) == 0 {
		o.AnomalyColumns = []string{o.Contract.RawColumn("Name")}
	}
	if o.AnomalySamples <= 0 {
		o.AnomalySamples = 5
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 10
	}
	if len(o.ValidClasses) == 0 {
		o.ValidClasses = schema.ValidClasses
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// Anomaly is the sentinel scan result for one raw column.
type Anomaly struct {
	Column string
	Count  int64
	// Samples are full raw rows, in raw schema order.
	Samples [][]any
	// FlaggedIDs are the raw ids of every flagged row.
	FlaggedIDs []any
}

// YearCount is one row of the year distribution.
type YearCount struct {
	Year  any
	Count int64
}

// SystemUsers reports rows owned by the system account.
type SystemUsers struct {
	Count   int64
	Samples [][]any // id, name
}

// Result is everything Clean produced and observed.
type Result struct {
	Table  *table.Table
	Frame  *engine.Frame
	Schema table.Schema

	InitialCount int64
	FinalCount   int64
	CountDelta   int64

	CastFailures     map[string]int
	Anomalies        []Anomaly
	Years            []YearCount
	Sample           [][]any
	SystemUsers      SystemUsers
	DomainViolations map[string]int
	Violations       []transformer.Violation

	// Warnings aggregates the non-fatal findings (cast failures, anomalies,
	// domain violations, count delta). Nil when the data is clean.
	Warnings error

	rawSchema table.Schema
}

// Clean registers raw in sess, projects it into the clean schema, scans it
// for anomalies and derives badge_year.
func Clean(ctx context.Context, sess *engine.Session, raw *table.Table, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger

	projs := opts.Contract.Projections()
	if err := transformer.ValidateProjections(raw.Schema, projs); err != nil {
		return nil, fmt.Errorf("clean: %w: %w", etlerr.ErrConfig, err)
	}

	rawFrame, err := sess.Register(ctx, RawFrame, raw)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	res := &Result{rawSchema: rawFrame.Schema}
	if res.InitialCount, err = sess.QueryInt(ctx, "SELECT COUNT(*) FROM "+rawFrame.Ident()); err != nil {
		return nil, fmt.Errorf("clean: initial count: %w", err)
	}

	// Step 1: rename and cast.
	projected, stats, err := transformer.Project(ctx, raw, projs, opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	res.CastFailures = stats.CastFailures
	for col, n := range stats.CastFailures {
		if n > 0 {
			log.Warn("clean: cast failures became nulls", zap.String("column", col), zap.Int("count", n))
			res.Warnings = multierr.Append(res.Warnings, fmt.Errorf("clean: %w: %d values in %s", etlerr.ErrCastFailure, n, col))
		}
	}

	// Step 2: sentinel scan over the raw frame.
	for _, col := range opts.AnomalyColumns {
		a, err := scanAnomalies(ctx, rawFrame, col, opts)
		if err != nil {
			return nil, fmt.Errorf("clean: anomaly scan %s: %w", col, err)
		}
		res.Anomalies = append(res.Anomalies, a)
		if a.Count > 0 {
			log.Warn("clean: string anomalies kept but flagged", zap.String("column", col), zap.Int64("count", a.Count))
			res.Warnings = multierr.Append(res.Warnings, fmt.Errorf("clean: %w: %d rows in %s", etlerr.ErrAnomalyDetected, a.Count, col))
		}
	}

	// Step 3: badge_year.
	dateIdx := projected.Schema.Index(schema.ColDate)
	cleaned, err := transformer.Derive(ctx, projected, transformer.Derived{
		Column:  table.Column{Name: schema.ColYear, Type: table.TypeInt, Nullable: true},
		Compute: func(row []any) any { return BadgeYear(row[dateIdx]) },
	})
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	res.Table, res.Schema = cleaned, cleaned.Schema

	res.Frame, err = sess.Register(ctx, CleanFrame, cleaned)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}

	// Step 4: counts and reports over the clean frame.
	if err := report(ctx, res, opts); err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	res.CountDelta = res.FinalCount - res.InitialCount
	if res.CountDelta != 0 {
		log.Warn("clean: record count changed", zap.Int64("initial", res.InitialCount), zap.Int64("final", res.FinalCount))
		res.Warnings = multierr.Append(res.Warnings, fmt.Errorf("clean: record count changed by %d", res.CountDelta))
	}

	counts, examples, err := transformer.ValidateRows(ctx, cleaned, domainRules(opts), 10)
	if err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	res.DomainViolations, res.Violations = counts, examples
	for col, n := range counts {
		res.Warnings = multierr.Append(res.Warnings, fmt.Errorf("clean: %w: %d rows in %s", etlerr.ErrSchemaDomainViolation, n, col))
	}

	log.Info("clean: done",
		zap.Int64("initial", res.InitialCount),
		zap.Int64("final", res.FinalCount),
		zap.Int("cast_failures", stats.Failures()),
		zap.Int("warnings", len(multierr.Errors(res.Warnings))),
	)
	return res, nil
}

// BadgeYear returns the UTC calendar year of a date value, or nil.
func BadgeYear(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return nil
	}
	return int32(t.UTC().Year())
}

func domainRules(opts Options) []transformer.Rule {
	var rules []transformer.Rule
	for _, f := range opts.Contract.Fields {
		if f.Required {
			rules = append(rules, transformer.Required(f.Clean))
		}
	}
	allowed := make([]int64, len(opts.ValidClasses))
	for i, c := range opts.ValidClasses {
		allowed[i] = int64(c)
	}
	return append(rules, transformer.OneOf(schema.ColClass, allowed))
}

func scanAnomalies(ctx context.Context, f *engine.Frame, col string, opts Options) (Anomaly, error) {
	a := Anomaly{Column: col}
	if _, ok := f.Schema.Lookup(col); !ok {
		return a, fmt.Errorf("frame %s has no column %s", f.Name, col)
	}
	if len(opts.Sentinels) == 0 {
		return a, nil
	}
	marks := make([]string, len(opts.Sentinels))
	args := make([]any, len(opts.Sentinels))
	for i, s := range opts.Sentinels {
		marks[i] = "?"
		args[i] = strings.ToLower(s)
	}
	where := fmt.Sprintf("LOWER(%s) IN (%s)", profile.TrimExpr(f.Col(col)), strings.Join(marks, ", "))

	var err error
	if a.Count, err = f.Session().QueryInt(ctx, "SELECT COUNT(*) FROM "+f.Ident()+" WHERE "+where, args...); err != nil || a.Count == 0 {
		return a, err
	}
	if a.Samples, err = f.Query(ctx, fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY rowid LIMIT %d", f.Ident(), where, opts.AnomalySamples), args...); err != nil {
		return a, err
	}
	idCol := opts.Contract.RawColumn("Id")
	ids, err := f.Query(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY rowid", f.Col(idCol), f.Ident(), where), args...)
	if err != nil {
		return a, err
	}
	for _, r := range ids {
		a.FlaggedIDs = append(a.FlaggedIDs, r[0])
	}
	return a, nil
}

func report(ctx context.Context, res *Result, opts Options) error {
	f := res.Frame
	s := f.Session()
	var err error
	if res.FinalCount, err = s.QueryInt(ctx, "SELECT COUNT(*) FROM "+f.Ident()); err != nil {
		return err
	}

	year := f.Col(schema.ColYear)
	rows, err := f.Query(ctx, fmt.Sprintf("SELECT %s, COUNT(*) AS cnt FROM %s GROUP BY %s ORDER BY %s", year, f.Ident(), year, year))
	if err != nil {
		return err
	}
	for _, r := range rows {
		n, _ := r[1].(int64)
		res.Years = append(res.Years, YearCount{Year: r[0], Count: n})
	}

	if res.Sample, err = f.Query(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid LIMIT %d", f.Ident(), opts.SampleSize)); err != nil {
		return err
	}

	user := f.Col(schema.ColUserID)
	if res.SystemUsers.Count, err = s.QueryInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", f.Ident(), user), schema.SystemUserID); err != nil {
		return err
	}
	res.SystemUsers.Samples, err = f.Query(ctx, fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ? ORDER BY rowid LIMIT %d",
		f.Col(schema.ColID), f.Col(schema.ColName), f.Ident(), user, opts.AnomalySamples), schema.SystemUserID)
	return err
}
