// Package schema holds the badge data contract: raw attribute names, the
// clean column set, their types, and the value domains the profiler and
// cleaner check against.
package schema

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"badgeetl/internal/table"
	"badgeetl/internal/transformer"
)

// Field binds a raw attribute to its clean column.
type Field struct {
	// Raw is the attribute name without the prefix ("Id", "UserId").
	Raw string `json:"raw"`
	// Clean is the output column name ("id", "user_id").
	Clean string `json:"clean"`
	// RawType is the type the raw column is expected to infer to.
	RawType table.Type `json:"raw_type"`
	// CleanType is the type after the clean projection.
	CleanType table.Type `json:"clean_type"`
	Required  bool       `json:"required,omitempty"`
}

// Contract describes a badge export.
type Contract struct {
	Name   string  `json:"name"`
	Prefix string  `json:"prefix"`
	Fields []Field `json:"fields"`
}

// Clean column names.
const (
	ColID       = "id"
	ColUserID   = "user_id"
	ColName     = "name"
	ColDate     = "date"
	ColClass    = "badge_class"
	ColTagBased = "tag_based"
	ColYear     = "badge_year"
)

// SystemUserID marks rows owned by the system account.
const SystemUserID = -1

// ValidClasses is the badge class domain (gold, silver, bronze).
var ValidClasses = []int{1, 2, 3}

// Badges returns the contract for a badge export whose attributes carry
// prefix.
func Badges(prefix string) Contract {
	return Contract{
		Name:   "badges",
		Prefix: prefix,
		Fields: []Field{
			{Raw: "Id", Clean: ColID, RawType: table.TypeLong, CleanType: table.TypeLong, Required: true},
			{Raw: "UserId", Clean: ColUserID, RawType: table.TypeLong, CleanType: table.TypeLong, Required: true},
			{Raw: "Name", Clean: ColName, RawType: table.TypeString, CleanType: table.TypeString, Required: true},
			{Raw: "Date", Clean: ColDate, RawType: table.TypeTimestamp, CleanType: table.TypeTimestamp, Required: true},
			{Raw: "Class", Clean: ColClass, RawType: table.TypeLong, CleanType: table.TypeShort},
			{Raw: "TagBased", Clean: ColTagBased, RawType: table.TypeBoolean, CleanType: table.TypeBoolean},
		},
	}
}

// RawColumn returns the raw column name for an attribute.
func (c Contract) RawColumn(attr string) string { return c.Prefix + attr }

// RawColumns returns every raw column name in contract order.
func (c Contract) RawColumns() []string {
	out := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		out[i] = c.RawColumn(f.Raw)
	}
	return out
}

// Field returns the field whose clean name is clean.
func (c Contract) Field(clean string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Clean == clean {
			return f, true
		}
	}
	return Field{}, false
}

// Projections returns the raw-to-clean plan. The name column is trimmed and
// lowercased on the way.
func (c Contract) Projections() []transformer.Projection {
	out := make([]transformer.Projection, len(c.Fields))
	for i, f := range c.Fields {
		p := transformer.Projection{Source: c.RawColumn(f.Raw), Target: f.Clean, Type: f.CleanType}
		if f.Clean == ColName {
			p.Normalize = NormalizeName
		}
		out[i] = p
	}
	return out
}

// CleanSchema is the schema of the cleaned table, badge_year included.
func (c Contract) CleanSchema() table.Schema {
	s := make(table.Schema, 0, len(c.Fields)+1)
	for _, f := range c.Fields {
		s = append(s, table.Column{Name: f.Clean, Type: f.CleanType, Nullable: true})
	}
	return append(s, table.Column{Name: ColYear, Type: table.TypeInt, Nullable: true})
}

// Whitespace is the character set trimmed from names, here and in SQL.
const Whitespace = " \t\n\r\v\f"

var lower = cases.Lower(language.Und)

// TrimName strips Whitespace from both ends of s.
func TrimName(s string) string { return strings.Trim(s, Whitespace) }

// NormalizeName trims and lowercases a badge name.
func NormalizeName(s string) string {
	return lower.String(TrimName(s))
}
