package profile

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"badgeetl/internal/table"
)

const rule = "============================================================"

// Section prints a report section header.
func Section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n %s\n%s\n", rule, title, rule)
}

// Grid prints rows under a header as aligned columns.
func Grid(w io.Writer, header []string, rows [][]any) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, v := range r {
			cells[i] = table.FormatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func countRows(vcs []ValueCount) [][]any {
	out := make([][]any, len(vcs))
	for i, vc := range vcs {
		out[i] = []any{vc.Value, vc.Count}
	}
	return out
}

// Render prints rep as the sectioned console report.
func Render(w io.Writer, rep *Report) {
	Section(w, "1. SCHEMA AND ROW COUNT")
	fmt.Fprintf(w, "\nSchema:\n%s\nTotal Rows: %d\n", rep.Schema.Tree(), rep.TotalRows)

	Section(w, fmt.Sprintf("2. SAMPLE DATA (First %d rows)", len(rep.Sample.Rows)))
	Grid(w, rep.Sample.Columns, rep.Sample.Rows)

	Section(w, "3. NULL VALUE ANALYSIS")
	fmt.Fprintln(w, "\nNull percentages:")
	for _, n := range rep.Nulls {
		fmt.Fprintf(w, "  %s: %d nulls (%.4f%%)\n", n.Column, n.NullCount, n.NullPercent)
	}

	Section(w, "4. DUPLICATE ID ANALYSIS")
	fmt.Fprintf(w, "\nNumber of duplicate IDs: %d\n", rep.Duplicates.Count)
	if len(rep.Duplicates.Examples) > 0 {
		fmt.Fprintln(w, "\nSample duplicate IDs:")
		Grid(w, []string{"id", "count"}, countRows(rep.Duplicates.Examples))
	}

	Section(w, "5. CLASS DISTRIBUTION")
	fmt.Fprintln(w, "\nBadge Class distribution (1=Gold, 2=Silver, 3=Bronze):")
	Grid(w, []string{"class", "count"}, countRows(rep.Classes.Distribution))
	fmt.Fprintf(w, "\nRows with invalid class values: %d\n", rep.Classes.InvalidCount)
	if len(rep.Classes.Invalid) > 0 {
		rows := make([][]any, len(rep.Classes.Invalid))
		for i, v := range rep.Classes.Invalid {
			rows[i] = []any{v.ID, v.Value}
		}
		fmt.Fprintln(w, "\nSample invalid class values:")
		Grid(w, []string{"id", "class"}, rows)
	}

	Section(w, "6. TAG_BASED DISTRIBUTION")
	fmt.Fprintln(w)
	Grid(w, []string{"tag_based", "count"}, countRows(rep.TagBased.Distribution))
	distinct := make([]string, len(rep.TagBased.Distinct))
	for i, v := range rep.TagBased.Distinct {
		distinct[i] = table.FormatValue(v)
	}
	fmt.Fprintf(w, "\nDistinct TagBased values: [%s]\n", strings.Join(distinct, ", "))

	Section(w, "7. DATE RANGE ANALYSIS")
	fmt.Fprintf(w, "\nmin_date: %s\nmax_date: %s\nRows with null dates: %d\n",
		table.FormatValue(rep.Dates.Min), table.FormatValue(rep.Dates.Max), rep.Dates.NullCount)

	Section(w, "8. USER ID ANALYSIS")
	fmt.Fprintf(w, "\nmin_user_id: %s\nmax_user_id: %s\nRows with negative user IDs: %d\n",
		table.FormatValue(rep.Users.Min), table.FormatValue(rep.Users.Max), rep.Users.NegativeCount)
	if len(rep.Users.Negative) > 0 {
		rows := make([][]any, len(rep.Users.Negative))
		for i, u := range rep.Users.Negative {
			rows[i] = []any{u.ID, u.UserID, u.Name}
		}
		fmt.Fprintln(w, "\nSample negative user IDs:")
		Grid(w, []string{"id", "user_id", "name"}, rows)
	}
	fmt.Fprintf(w, "\nRows with null user IDs: %d\n", rep.Users.NullCount)

	Section(w, "9. BADGE NAME ANALYSIS")
	fmt.Fprintf(w, "\nNumber of unique badge names: %d\n", rep.Names.Distinct)
	fmt.Fprintf(w, "\nTop %d most common badges:\n", len(rep.Names.Top))
	Grid(w, []string{"name", "count"}, countRows(rep.Names.Top))
	fmt.Fprintf(w, "\nRows with null badge names: %d\nRows with empty badge names: %d\nRows with leading/trailing whitespace in name: %d\n",
		rep.Names.NullCount, rep.Names.EmptyCount, rep.Names.WhitespaceCount)

	Section(w, "10. DATA TYPE SUMMARY")
	fmt.Fprintln(w, "\nExpected vs Actual types:")
	for _, tc := range rep.Types {
		mark := "ok"
		if !tc.Match() {
			mark = "MISMATCH"
		}
		actual := string(tc.Actual)
		if !tc.Present {
			actual = "absent"
		}
		fmt.Fprintf(w, "  %s: expected=%s actual=%s %s\n", tc.Column, tc.Expected, actual, mark)
	}

	s := rep.Summary
	Section(w, "PROFILING SUMMARY")
	fmt.Fprintf(w, `
  Total Records: %d
  Unique Badge Names: %d
  Duplicate IDs: %d
  Invalid Class Values: %d
  Null Dates: %d
  Null User IDs: %d
  Negative User IDs: %d
  Names with Whitespace Issues: %d
`, s.TotalRows, s.DistinctNames, s.DuplicateIDs, s.InvalidClasses, s.NullDates, s.NullUserIDs, s.NegativeUserIDs, s.WhitespaceNames)
}
