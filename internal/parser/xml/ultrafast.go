package xmlparser

import (
	"bytes"
	"fmt"
	"html"
	"strings"
)

// UltraFastAttributes reads the attributes of the record start tag in b with
// a raw byte scan. Attributes land in the record the same way the tokenizer
// path stores them; child elements are ignored. Entity references in values
// are decoded.
func UltraFastAttributes(b []byte, comp Compiled) (Record, error) {
	lt := bytes.IndexByte(b, '<')
	if lt < 0 {
		return nil, fmt.Errorf("%w: no start tag", ErrMalformed)
	}
	p := lt + 1
	for p < len(b) && !isSpace(b[p]) && b[p] != '>' && b[p] != '/' {
		p++
	}

	out := make(Record, 8)
	for {
		for p < len(b) && isSpace(b[p]) {
			p++
		}
		if p >= len(b) {
			return nil, fmt.Errorf("%w: unterminated start tag", ErrMalformed)
		}
		if b[p] == '>' || b[p] == '/' {
			return out, nil
		}
		nameStart := p
		for p < len(b) && b[p] != '=' && !isSpace(b[p]) && b[p] != '>' {
			p++
		}
		name := string(b[nameStart:p])
		for p < len(b) && isSpace(b[p]) {
			p++
		}
		if p >= len(b) || b[p] != '=' {
			return nil, fmt.Errorf("%w: attribute %q has no value", ErrMalformed, name)
		}
		p++
		for p < len(b) && isSpace(b[p]) {
			p++
		}
		if p >= len(b) || (b[p] != '"' && b[p] != '\'') {
			return nil, fmt.Errorf("%w: attribute %q value is not quoted", ErrMalformed, name)
		}
		q := b[p]
		p++
		vEnd := bytes.IndexByte(b[p:], q)
		if vEnd < 0 {
			return nil, fmt.Errorf("%w: attribute %q value is unterminated", ErrMalformed, name)
		}
		raw := b[p : p+vEnd]
		p += vEnd + 1

		val := string(raw)
		if bytes.IndexByte(raw, '&') >= 0 {
			val = html.UnescapeString(val)
		}
		if !isNamespaceDecl(name) {
			local := localName(name)
			if !comp.skipAttrs {
				out[comp.attrPrefix+local] = val
			}
			for _, k := range comp.attrFields[local] {
				out[k] = val
			}
		}
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func localName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func isNamespaceDecl(name string) bool {
	return name == "xmlns" || strings.HasPrefix(name, "xmlns:")
}
