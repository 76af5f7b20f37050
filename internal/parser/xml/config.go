// Package xmlparser is a configurable, streaming XML row parser. A sharder
// cuts the document into one blob per record element, a worker pool turns
// each blob into a Record, and an optional reorder buffer restores input
// order.
package xmlparser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config describes how to extract values from each <record_tag> element.
//
// Every attribute of the record element becomes a field named
// AttributePrefix+name unless SkipAttributes is set. Fields and Lists add
// values from child elements by relative path ("A/B", "A/B[@k='v']") or
// from a single record attribute ("@Name").
type Config struct {
	RecordTag       string            `json:"record_tag"`
	AttributePrefix string            `json:"attribute_prefix"`
	SkipAttributes  bool              `json:"skip_attributes,omitempty"`
	Fields          map[string]string `json:"fields,omitempty"` // single-valued
	Lists           map[string]string `json:"lists,omitempty"`  // multi-valued
}

// ParseConfigJSON parses JSON bytes into a Config and validates required fields.
func ParseConfigJSON(b []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	if strings.TrimSpace(c.RecordTag) == "" {
		return c, fmt.Errorf("config.record_tag is required")
	}
	if c.Fields == nil {
		c.Fields = map[string]string{}
	}
	if c.Lists == nil {
		c.Lists = map[string]string{}
	}
	return c, nil
}
