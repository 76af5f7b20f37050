package export

import (
	"fmt"
	"io"

	"badgeetl/internal/profile"
)

// Render prints the export summary and, when v is non-nil, the validation.
func Render(w io.Writer, res *Result, v *Validation) {
	profile.Section(w, "EXPORT")
	fmt.Fprintf(w, "\nPath:  %s\nCodec: %s\nRows:  %d\nFiles: %d\n", res.Path, res.Codec, res.Rows, len(res.Files))
	if v == nil {
		return
	}

	profile.Section(w, "EXPORT VALIDATION")
	fmt.Fprintf(w, "\nExpected: %d\nRead back: %d\n", v.Expected, v.Actual)
	rows := make([][]any, len(v.Partitions))
	for i, p := range v.Partitions {
		rows[i] = []any{p.Value, p.Rows, p.Files}
	}
	fmt.Fprintln(w)
	profile.Grid(w, []string{"partition", "rows", "files"}, rows)
	fmt.Fprintf(w, "\nRead-back schema:\n%s", v.Schema.Tree())
	if len(v.Sample) > 0 {
		fmt.Fprintf(w, "\nSample of read-back rows (%d):\n", len(v.Sample))
		profile.Grid(w, v.Schema.Names(), v.Sample)
	}
	fmt.Fprintln(w)
	switch {
	case v.OK():
		fmt.Fprintln(w, "Round trip: OK")
	case len(v.ChecksumMismatches) > 0:
		fmt.Fprintf(w, "Round trip: MISMATCH (checksums: %v)\n", v.ChecksumMismatches)
	default:
		fmt.Fprintln(w, "Round trip: MISMATCH")
	}
}
