package xmlparser

import (
	"errors"
	"strings"
)

// ErrMalformed wraps tokenizer failures reported in strict mode.
var ErrMalformed = errors.New("xml: malformed document")

// ErrNoRoot is returned in strict mode when the input has no root element.
var ErrNoRoot = errors.New("xml: no root element")

// isTruncErr reports whether a tokenization error indicates a truncated or
// partial stream. encoding/xml has no sentinel for it, so the message is
// matched. Used only by the tolerant (non-strict) mode.
func isTruncErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "unexpected EOF") ||
		strings.Contains(s, "XML syntax error")
}
