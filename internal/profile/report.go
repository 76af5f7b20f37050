package profile

import (
	"badgeetl/internal/table"
)

// ValueCount is one row of a frequency table.
type ValueCount struct {
	Value any
	Count int64
}

// Sample holds the first rows of the raw table, full width.
type Sample struct {
	Columns []string
	Rows    [][]any
}

// ColumnNulls is the null count of one column.
type ColumnNulls struct {
	Column      string
	NullCount   int64
	NullPercent float64
}

// Duplicates reports ids that occur more than once.
type Duplicates struct {
	Count    int64
	Examples []ValueCount
}

// IDValue pairs a row id with the offending value.
type IDValue struct {
	ID    any
	Value any
}

// Classes reports the badge class distribution and domain violations.
type Classes struct {
	Distribution []ValueCount
	InvalidCount int64
	Invalid      []IDValue
}

// TagBased reports the tag_based distribution.
type TagBased struct {
	Distribution []ValueCount
	Distinct     []any
}

// Dates reports the date range. Min and Max are nil when no date is set.
type Dates struct {
	Min       any
	Max       any
	NullCount int64
}

// UserSample is an example row with a negative user id.
type UserSample struct {
	ID     any
	UserID any
	Name   any
}

// Users reports the user id range.
type Users struct {
	Min           any
	Max           any
	NegativeCount int64
	Negative      []UserSample
	NullCount     int64
}

// Names reports badge name quality.
type Names struct {
	Distinct        int64
	Top             []ValueCount
	NullCount       int64
	EmptyCount      int64
	WhitespaceCount int64
}

// TypeCheck compares the expected and inferred type of a raw column.
type TypeCheck struct {
	Column   string
	Expected table.Type
	Actual   table.Type
	// Present is false when no record carried the attribute.
	Present bool
}

// Match reports whether the inferred type is the expected one.
func (c TypeCheck) Match() bool { return c.Present && c.Expected == c.Actual }

// Summary echoes the headline numbers of the other checks.
type Summary struct {
	TotalRows       int64
	DistinctNames   int64
	DuplicateIDs    int64
	InvalidClasses  int64
	NullDates       int64
	NullUserIDs     int64
	NegativeUserIDs int64
	WhitespaceNames int64
}

// Report is the result of Profile, one field per check.
type Report struct {
	Schema     table.Schema
	TotalRows  int64
	Sample     Sample
	Nulls      []ColumnNulls
	Duplicates Duplicates
	Classes    Classes
	TagBased   TagBased
	Dates      Dates
	Users      Users
	Names      Names
	Types      []TypeCheck
	Summary    Summary
}

// NullPercent returns nulls/total*100, or 0 when total is 0.
func NullPercent(nulls, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(nulls) / float64(total) * 100
}
