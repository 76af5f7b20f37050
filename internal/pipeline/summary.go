package pipeline

import (
	"fmt"
	"io"

	"badgeetl/internal/profile"
	"badgeetl/internal/schema"
)

// renderSummary prints the closing section of a clean run: where data came
// from and went, and how every output column maps back to its attribute.
func renderSummary(w io.Writer, source string, c schema.Contract, res *CleanResult, partitionBy string) {
	profile.Section(w, "CLEANING COMPLETE")
	part := partitionBy
	if part == "" {
		part = "none"
	}
	fmt.Fprintf(w, "\nInput:             %s\n", source)
	fmt.Fprintf(w, "Output:            %s\n", res.Export.Path)
	fmt.Fprintf(w, "Format:            parquet (%s)\n", res.Export.Codec)
	fmt.Fprintf(w, "Partitioned by:    %s\n", part)
	fmt.Fprintf(w, "Records processed: %d\n", res.Clean.FinalCount)
	if res.Mirrored > 0 {
		fmt.Fprintf(w, "Mirrored rows:     %d\n", res.Mirrored)
	}

	fmt.Fprintln(w, "\nColumn mapping:")
	for _, col := range c.CleanSchema() {
		if f, ok := c.Field(col.Name); ok {
			fmt.Fprintf(w, "  %s -> %s (%s)\n", c.RawColumn(f.Raw), col.Name, col.Type)
			continue
		}
		fmt.Fprintf(w, "  [NEW] %s (%s)\n", col.Name, col.Type)
	}
}
