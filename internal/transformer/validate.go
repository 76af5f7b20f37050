package transformer

import (
	"context"
	"fmt"

	"badgeetl/internal/table"
)

// Violation is one row that broke a column rule.
type Violation struct {
	Row    int
	Column string
	Value  any
	Reason string
}

// Rule checks one column. Check returns a non-empty reason for a bad value.
type Rule struct {
	Column string
	Check  func(v any) string
}

// Required is a Rule that rejects nulls and, for strings, blank text.
func Required(column string) Rule {
	return Rule{Column: column, Check: func(v any) string {
		switch x := v.(type) {
		case nil:
			return "null"
		case string:
			if x == "" {
				return "empty"
			}
		}
		return ""
	}}
}

// OneOf is a Rule that accepts null or one of the allowed integers.
func OneOf(column string, allowed []int64) Rule {
	set := make(map[int64]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return Rule{Column: column, Check: func(v any) string {
		if v == nil {
			return ""
		}
		n, ok := table.Cast(v, table.TypeLong)
		if !ok {
			return "not an integer"
		}
		if _, ok := set[n.(int64)]; !ok {
			return fmt.Sprintf("%d outside the allowed set", n)
		}
		return ""
	}}
}

// ValidateRows applies rules to every row. It never filters: the table is
// left as it is and violations are counted per column, with the first
// maxExamples kept as examples.
func ValidateRows(ctx context.Context, in *table.Table, rules []Rule, maxExamples int) (map[string]int, []Violation, error) {
	idx := make([]int, len(rules))
	for i, r := range rules {
		idx[i] = in.Schema.Index(r.Column)
		if idx[i] < 0 {
			return nil, nil, fmt.Errorf("transformer: rule on unknown column %q", r.Column)
		}
	}
	counts := make(map[string]int, len(rules))
	var examples []Violation
	for ri, row := range in.Rows {
		if ri%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		for i, r := range rules {
			v := row[idx[i]]
			reason := r.Check(v)
			if reason == "" {
				continue
			}
			counts[r.Column]++
			if len(examples) < maxExamples {
				examples = append(examples, Violation{Row: ri, Column: r.Column, Value: v, Reason: reason})
			}
		}
	}
	return counts, examples, nil
}
