package clean

import (
	"fmt"
	"io"
	"sort"

	"badgeetl/internal/profile"
)

// Render prints res as the cleaning console report.
func Render(w io.Writer, res *Result) {
	profile.Section(w, "CLEANED SCHEMA")
	fmt.Fprintf(w, "\n%s\n", res.Schema.Tree())

	profile.Section(w, "RECORD COUNTS")
	fmt.Fprintf(w, "\nInitial: %d\nFinal:   %d\nDelta:   %d\n", res.InitialCount, res.FinalCount, res.CountDelta)

	profile.Section(w, "CAST FAILURES")
	fmt.Fprintln(w)
	profile.Grid(w, []string{"column", "failures"}, sortedCounts(res.CastFailures))

	profile.Section(w, "STRING ANOMALIES")
	for _, a := range res.Anomalies {
		fmt.Fprintf(w, "\n%s: %d flagged rows (kept)\n", a.Column, a.Count)
		if len(a.Samples) > 0 {
			profile.Grid(w, res.rawSchema.Names(), a.Samples)
		}
	}

	profile.Section(w, "YEAR DISTRIBUTION")
	rows := make([][]any, len(res.Years))
	for i, y := range res.Years {
		rows[i] = []any{y.Year, y.Count}
	}
	fmt.Fprintln(w)
	profile.Grid(w, []string{"badge_year", "count"}, rows)

	profile.Section(w, "SAMPLE OF CLEANED ROWS")
	fmt.Fprintln(w)
	profile.Grid(w, res.Schema.Names(), res.Sample)

	profile.Section(w, "SPECIAL CASES")
	fmt.Fprintf(w, "\nSystem user rows (user_id = -1): %d\n", res.SystemUsers.Count)
	if len(res.SystemUsers.Samples) > 0 {
		profile.Grid(w, []string{"id", "name"}, res.SystemUsers.Samples)
	}
	if len(res.DomainViolations) > 0 {
		fmt.Fprintln(w, "\nDomain violations:")
		profile.Grid(w, []string{"column", "rows"}, sortedCounts(res.DomainViolations))
	}
}

func sortedCounts(m map[string]int) [][]any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]any, len(keys))
	for i, k := range keys {
		out[i] = []any{k, m[k]}
	}
	return out
}
