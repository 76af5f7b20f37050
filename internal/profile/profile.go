// Package profile runs the read-only data quality checks over a raw badge
// frame. Every check is a declarative query against the engine session;
// nothing is written back.
package profile

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"badgeetl/internal/engine"
	"badgeetl/internal/logging"
	"badgeetl/internal/schema"
	"badgeetl/internal/table"
)

// MaxExamples caps the example rows attached to a finding.
const MaxExamples = 10

// Options controls Profile.
type Options struct {
	Contract     schema.Contract
	SampleSize   int
	TopN         int
	ValidClasses []int
	Logger       *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Contract.Fields == nil {
		o.Contract = schema.Badges("_")
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 10
	}
	if o.TopN <= 0 {
		o.TopN = 20
	}
	if len(o.ValidClasses) == 0 {
		o.ValidClasses = schema.ValidClasses
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

// checker binds a frame to the raw column names of the contract.
type checker struct {
	f    *engine.Frame
	s    *engine.Session
	opts Options

	id, user, name, date, class, tag string
}

// Profile runs every check against f and returns the report.
func Profile(ctx context.Context, f *engine.Frame, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	c := &checker{f: f, s: f.Session(), opts: opts}
	for _, fld := range opts.Contract.Fields {
		if _, ok := f.Schema.Lookup(opts.Contract.RawColumn(fld.Raw)); !ok {
			return nil, fmt.Errorf("profile: frame %s has no column %s", f.Name, opts.Contract.RawColumn(fld.Raw))
		}
	}
	c.id = c.col("Id")
	c.user = c.col("UserId")
	c.name = c.col("Name")
	c.date = c.col("Date")
	c.class = c.col("Class")
	c.tag = c.col("TagBased")

	rep := &Report{Schema: f.Schema}
	steps := []struct {
		name string
		run  func(context.Context, *Report) error
	}{
		{"schema", c.rowCount},
		{"sample", c.sample},
		{"nulls", c.nulls},
		{"duplicates", c.duplicates},
		{"classes", c.classes},
		{"tag_based", c.tagBased},
		{"dates", c.dates},
		{"users", c.users},
		{"names", c.names},
		{"types", c.types},
	}
	for _, st := range steps {
		if err := st.run(ctx, rep); err != nil {
			return nil, fmt.Errorf("profile: %s: %w", st.name, err)
		}
		opts.Logger.Debug("profile: check done", zap.String("check", st.name))
	}
	rep.Summary = Summary{
		TotalRows:       rep.TotalRows,
		DistinctNames:   rep.Names.Distinct,
		DuplicateIDs:    rep.Duplicates.Count,
		InvalidClasses:  rep.Classes.InvalidCount,
		NullDates:       rep.Dates.NullCount,
		NullUserIDs:     rep.Users.NullCount,
		NegativeUserIDs: rep.Users.NegativeCount,
		WhitespaceNames: rep.Names.WhitespaceCount,
	}
	return rep, nil
}

// col returns the quoted raw column for attr.
func (c *checker) col(attr string) string {
	return c.f.Col(c.opts.Contract.RawColumn(attr))
}

func (c *checker) typeOf(attr string) table.Type {
	col, _ := c.f.Schema.Lookup(c.opts.Contract.RawColumn(attr))
	return col.Type
}

func (c *checker) count(ctx context.Context, where string) (int64, error) {
	q := "SELECT COUNT(*) FROM " + c.f.Ident()
	if where != "" {
		q += " WHERE " + where
	}
	return c.s.QueryInt(ctx, q)
}

func (c *checker) rowCount(ctx context.Context, rep *Report) error {
	n, err := c.count(ctx, "")
	rep.TotalRows = n
	return err
}

func (c *checker) sample(ctx context.Context, rep *Report) error {
	rows, err := c.f.Query(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid LIMIT %d", c.f.Ident(), c.opts.SampleSize))
	if err != nil {
		return err
	}
	rep.Sample = Sample{Columns: c.f.Schema.Names(), Rows: rows}
	return nil
}

func (c *checker) nulls(ctx context.Context, rep *Report) error {
	parts := make([]string, len(c.f.Schema))
	for i, col := range c.f.Schema {
		parts[i] = fmt.Sprintf("SUM(CASE WHEN %s IS NULL THEN 1 ELSE 0 END)", c.f.Col(col.Name))
	}
	_, rows, err := c.s.Query(ctx, nil, "SELECT "+strings.Join(parts, ", ")+" FROM "+c.f.Ident())
	if err != nil {
		return err
	}
	rep.Nulls = make([]ColumnNulls, len(c.f.Schema))
	for i, col := range c.f.Schema {
		var n int64
		if len(rows) == 1 {
			n, _ = rows[0][i].(int64)
		}
		rep.Nulls[i] = ColumnNulls{Column: col.Name, NullCount: n, NullPercent: NullPercent(n, rep.TotalRows)}
	}
	return nil
}

func (c *checker) duplicates(ctx context.Context, rep *Report) error {
	groups := fmt.Sprintf("SELECT %s AS v, COUNT(*) AS cnt FROM %s GROUP BY %s HAVING COUNT(*) > 1", c.id, c.f.Ident(), c.id)
	n, err := c.s.QueryInt(ctx, "SELECT COUNT(*) FROM ("+groups+")")
	if err != nil {
		return err
	}
	rep.Duplicates.Count = n
	if n == 0 {
		return nil
	}
	rep.Duplicates.Examples, err = c.valueCounts(ctx, c.typeOf("Id"), groups+fmt.Sprintf(" ORDER BY cnt DESC, v LIMIT %d", MaxExamples))
	return err
}

func (c *checker) classes(ctx context.Context, rep *Report) error {
	var err error
	rep.Classes.Distribution, err = c.valueCounts(ctx, c.typeOf("Class"),
		fmt.Sprintf("SELECT %s AS v, COUNT(*) AS cnt FROM %s GROUP BY %s ORDER BY %s", c.class, c.f.Ident(), c.class, c.class))
	if err != nil {
		return err
	}

	in := make([]string, len(c.opts.ValidClasses))
	for i, v := range c.opts.ValidClasses {
		in[i] = strconv.Itoa(v)
	}
	// NULL NOT IN (...) is NULL, so null classes are not counted here.
	invalid := fmt.Sprintf("%s NOT IN (%s)", c.class, strings.Join(in, ", "))
	rep.Classes.InvalidCount, err = c.count(ctx, invalid)
	if err != nil || rep.Classes.InvalidCount == 0 {
		return err
	}
	_, rows, err := c.s.Query(ctx, nil, fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s ORDER BY rowid LIMIT %d",
		c.id, c.class, c.f.Ident(), invalid, MaxExamples))
	if err != nil {
		return err
	}
	for _, r := range rows {
		rep.Classes.Invalid = append(rep.Classes.Invalid, IDValue{
			ID:    engine.Decode(c.typeOf("Id"), r[0]),
			Value: engine.Decode(c.typeOf("Class"), r[1]),
		})
	}
	return nil
}

func (c *checker) tagBased(ctx context.Context, rep *Report) error {
	dist, err := c.valueCounts(ctx, c.typeOf("TagBased"),
		fmt.Sprintf("SELECT %s AS v, COUNT(*) AS cnt FROM %s GROUP BY %s ORDER BY %s", c.tag, c.f.Ident(), c.tag, c.tag))
	if err != nil {
		return err
	}
	rep.TagBased.Distribution = dist
	for _, vc := range dist {
		rep.TagBased.Distinct = append(rep.TagBased.Distinct, vc.Value)
	}
	return nil
}

func (c *checker) dates(ctx context.Context, rep *Report) error {
	_, rows, err := c.s.Query(ctx, nil, fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", c.date, c.date, c.f.Ident()))
	if err != nil {
		return err
	}
	if len(rows) == 1 {
		t := c.typeOf("Date")
		rep.Dates.Min, rep.Dates.Max = engine.Decode(t, rows[0][0]), engine.Decode(t, rows[0][1])
	}
	rep.Dates.NullCount, err = c.count(ctx, c.date+" IS NULL")
	return err
}

func (c *checker) users(ctx context.Context, rep *Report) error {
	_, rows, err := c.s.Query(ctx, nil, fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", c.user, c.user, c.f.Ident()))
	if err != nil {
		return err
	}
	if len(rows) == 1 {
		t := c.typeOf("UserId")
		rep.Users.Min, rep.Users.Max = engine.Decode(t, rows[0][0]), engine.Decode(t, rows[0][1])
	}

	negative := c.user + " < 0"
	if rep.Users.NegativeCount, err = c.count(ctx, negative); err != nil {
		return err
	}
	if rep.Users.NegativeCount > 0 {
		_, rows, err := c.s.Query(ctx, nil, fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE %s ORDER BY rowid LIMIT %d",
			c.id, c.user, c.name, c.f.Ident(), negative, MaxExamples))
		if err != nil {
			return err
		}
		for _, r := range rows {
			rep.Users.Negative = append(rep.Users.Negative, UserSample{
				ID:     engine.Decode(c.typeOf("Id"), r[0]),
				UserID: engine.Decode(c.typeOf("UserId"), r[1]),
				Name:   engine.Decode(c.typeOf("Name"), r[2]),
			})
		}
	}
	rep.Users.NullCount, err = c.count(ctx, c.user+" IS NULL")
	return err
}

// TrimExpr renders TRIM(col, <schema.Whitespace>) as SQL.
func TrimExpr(col string) string {
	chars := make([]string, 0, len(schema.Whitespace))
	for _, r := range schema.Whitespace {
		chars = append(chars, fmt.Sprintf("char(%d)", r))
	}
	return fmt.Sprintf("TRIM(%s, %s)", col, strings.Join(chars, " || "))
}

func (c *checker) names(ctx context.Context, rep *Report) error {
	var err error
	// DISTINCT keeps NULL as one value.
	rep.Names.Distinct, err = c.s.QueryInt(ctx, fmt.Sprintf("SELECT COUNT(*) FROM (SELECT DISTINCT %s FROM %s)", c.name, c.f.Ident()))
	if err != nil {
		return err
	}
	rep.Names.Top, err = c.valueCounts(ctx, c.typeOf("Name"),
		fmt.Sprintf("SELECT %s AS v, COUNT(*) AS cnt FROM %s GROUP BY %s ORDER BY cnt DESC, v LIMIT %d",
			c.name, c.f.Ident(), c.name, c.opts.TopN))
	if err != nil {
		return err
	}
	if rep.Names.NullCount, err = c.count(ctx, c.name+" IS NULL"); err != nil {
		return err
	}
	if rep.Names.EmptyCount, err = c.count(ctx, TrimExpr(c.name)+" = ''"); err != nil {
		return err
	}
	rep.Names.WhitespaceCount, err = c.count(ctx, c.name+" <> "+TrimExpr(c.name))
	return err
}

func (c *checker) types(_ context.Context, rep *Report) error {
	for _, fld := range c.opts.Contract.Fields {
		name := c.opts.Contract.RawColumn(fld.Raw)
		col, ok := c.f.Schema.Lookup(name)
		rep.Types = append(rep.Types, TypeCheck{
			Column:   name,
			Expected: fld.RawType,
			Actual:   col.Type,
			Present:  ok && !c.allNull(rep, name),
		})
	}
	return nil
}

func (c *checker) allNull(rep *Report, name string) bool {
	for _, n := range rep.Nulls {
		if n.Column == name {
			return n.NullCount == rep.TotalRows
		}
	}
	return false
}

// valueCounts runs a query returning (v, cnt) rows and decodes v as t.
func (c *checker) valueCounts(ctx context.Context, t table.Type, query string) ([]ValueCount, error) {
	_, rows, err := c.s.Query(ctx, nil, query)
	if err != nil {
		return nil, err
	}
	out := make([]ValueCount, len(rows))
	for i, r := range rows {
		n, _ := r[1].(int64)
		out[i] = ValueCount{Value: engine.Decode(t, r[0]), Count: n}
	}
	return out, nil
}
