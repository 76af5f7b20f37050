// Package transformer turns one typed table into another through a compiled
// per-column plan. Casts that fail produce nulls and are counted, never
// dropped: a row that goes in always comes out.
package transformer

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"badgeetl/internal/table"
)

// Projection maps one source column to one output column.
type Projection struct {
	Source string
	Target string
	Type   table.Type

	// Normalize, when set, rewrites string inputs before the cast.
	Normalize func(string) string
}

// Stats reports what a projection run did.
type Stats struct {
	Rows int
	// CastFailures counts, per target column, non-null inputs that became null.
	CastFailures map[string]int
}

// Failures returns the total number of failed casts.
func (s Stats) Failures() int {
	n := 0
	for _, c := range s.CastFailures {
		n += c
	}
	return n
}

// colPlan is the compiled step for one output column.
type colPlan struct {
	src    int
	target string
	cast   func(v any) (any, bool)
}

// compilePlan resolves source positions and binds a cast closure per column
// so the row loop does no lookups.
func compilePlan(in table.Schema, projs []Projection) ([]colPlan, table.Schema, error) {
	plan := make([]colPlan, len(projs))
	out := make(table.Schema, len(projs))
	seen := make(map[string]struct{}, len(projs))
	for i, p := range projs {
		if !p.Type.Valid() {
			return nil, nil, fmt.Errorf("transformer: column %q: unknown type %q", p.Target, p.Type)
		}
		if _, dup := seen[p.Target]; dup {
			return nil, nil, fmt.Errorf("transformer: duplicate target column %q", p.Target)
		}
		seen[p.Target] = struct{}{}
		src := in.Index(p.Source)
		if src < 0 {
			return nil, nil, fmt.Errorf("transformer: unknown source column %q", p.Source)
		}

		to := p.Type
		norm := p.Normalize
		var cast func(v any) (any, bool)
		switch {
		case norm != nil:
			cast = func(v any) (any, bool) {
				if s, ok := v.(string); ok {
					return table.CastString(norm(s), to)
				}
				return table.Cast(v, to)
			}
		case to == table.TypeString:
			cast = func(v any) (any, bool) { return table.Cast(v, to) }
		default:
			cast = func(v any) (any, bool) {
				if s, ok := v.(string); ok {
					return table.CastString(s, to)
				}
				return table.Cast(v, to)
			}
		}
		plan[i] = colPlan{src: src, target: p.Target, cast: cast}
		out[i] = table.Column{Name: p.Target, Type: to, Nullable: true}
	}
	return plan, out, nil
}

// Project builds a new table from in. Rows are processed in contiguous
// chunks by up to workers goroutines (0 means GOMAXPROCS); output order
// equals input order.
func Project(ctx context.Context, in *table.Table, projs []Projection, workers int) (*table.Table, Stats, error) {
	plan, schema, err := compilePlan(in.Schema, projs)
	if err != nil {
		return nil, Stats{}, err
	}
	n := in.Len()
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	rows := make([][]any, n)
	fails := make([][]int, workers)
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		chunk := (n + workers - 1) / workers
		for w := 0; w < workers; w++ {
			lo, hi := w*chunk, (w+1)*chunk
			if hi > n {
				hi = n
			}
			counts := make([]int, len(plan))
			fails[w] = counts
			g.Go(func() error {
				for r := lo; r < hi; r++ {
					if r%4096 == 0 {
						if err := gctx.Err(); err != nil {
							return err
						}
					}
					src := in.Rows[r]
					dst := make([]any, len(plan))
					for c := range plan {
						raw := src[plan[c].src]
						v, ok := plan[c].cast(raw)
						if !ok {
							counts[c]++
						}
						dst[c] = v
					}
					rows[r] = dst
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, fmt.Errorf("transformer: project: %w", err)
	}

	st := Stats{Rows: n, CastFailures: make(map[string]int, len(plan))}
	for c, p := range plan {
		total := 0
		for _, counts := range fails {
			if counts != nil {
				total += counts[c]
			}
		}
		st.CastFailures[p.target] = total
	}
	return &table.Table{Schema: schema, Rows: rows}, st, nil
}

// Identity returns projections that keep every column of s, cast to the
// given types (columns absent from types keep their current type).
func Identity(s table.Schema, types map[string]table.Type) []Projection {
	out := make([]Projection, len(s))
	for i, c := range s {
		t := c.Type
		if tt, ok := types[c.Name]; ok {
			t = tt
		}
		out[i] = Projection{Source: c.Name, Target: c.Name, Type: t}
	}
	return out
}

// ValidateProjections checks that every source exists in s. It reports all
// missing columns at once.
func ValidateProjections(s table.Schema, projs []Projection) error {
	var missing []string
	for _, p := range projs {
		if s.Index(p.Source) < 0 {
			missing = append(missing, p.Source)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("transformer: projection references unknown columns: %s", strings.Join(missing, ", "))
	}
	return nil
}
