// Package table is the in-process typed table model: a schema of named,
// typed columns and rows of Go values aligned to it.
//
// Value representation per Type:
//
//	long      int64
//	int       int32
//	short     int16
//	double    float64
//	boolean   bool
//	timestamp time.Time (UTC)
//	string    string
//
// A nil value is null.
package table

import (
	"fmt"
	"strings"
	"time"
)

// Type is a column type name.
type Type string

const (
	TypeLong      Type = "long"
	TypeInt       Type = "int"
	TypeShort     Type = "short"
	TypeDouble    Type = "double"
	TypeBoolean   Type = "boolean"
	TypeTimestamp Type = "timestamp"
	TypeString    Type = "string"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeLong, TypeInt, TypeShort, TypeDouble, TypeBoolean, TypeTimestamp, TypeString:
		return true
	}
	return false
}

// Column describes one column of a Schema.
type Column struct {
	Name     string
	Type     Type
	Nullable bool
}

// Schema is the ordered column list of a Table.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Lookup returns the column called name.
func (s Schema) Lookup(name string) (Column, bool) {
	if i := s.Index(name); i >= 0 {
		return s[i], true
	}
	return Column{}, false
}

// Tree renders the schema as an indented tree:
//
//	root
//	 |-- _Id: long (nullable = true)
func (s Schema) Tree() string {
	var b strings.Builder
	b.WriteString("root\n")
	for _, c := range s {
		fmt.Fprintf(&b, " |-- %s: %s (nullable = %t)\n", c.Name, c.Type, c.Nullable)
	}
	return b.String()
}

// TimestampLayout is the text form of timestamps in reports and the session.
const TimestampLayout = "2006-01-02 15:04:05.000"

// FormatValue renders v for console output. Null prints as "null".
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case time.Time:
		return x.UTC().Format(TimestampLayout)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
