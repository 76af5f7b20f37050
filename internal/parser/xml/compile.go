package xmlparser

import (
	"fmt"
	"strings"
)

// seg is one path segment with an optional predicate on the last segment.
type seg struct{ name, attrName, attrVal string }

// pathSpec is a compiled path like "A/B/C[@k='v']".
type pathSpec struct{ segs []seg }

// parsePathSpec parses a relative path with an optional predicate on the last segment.
func parsePathSpec(raw string) (pathSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pathSpec{}, fmt.Errorf("empty path")
	}
	parts := strings.Split(raw, "/")
	segs := make([]seg, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return pathSpec{}, fmt.Errorf("bad empty segment in %q", raw)
		}
		s := seg{name: p}
		if i == len(parts)-1 {
			// Name[@Attr='Value'] on the last segment only.
			if j := strings.Index(p, "["); j != -1 && strings.HasSuffix(p, "]") {
				pred := strings.TrimSpace(p[j+1 : len(p)-1])
				s.name = p[:j]
				if strings.HasPrefix(pred, "@") {
					pred = pred[1:]
					if eq := strings.Index(pred, "="); eq > 0 {
						s.attrName = pred[:eq]
						s.attrVal = strings.Trim(strings.TrimSpace(pred[eq+1:]), `"'`)
					}
				}
			}
		}
		segs = append(segs, s)
	}
	return pathSpec{segs: segs}, nil
}

// namedMatcher binds an output key to a compiled pathSpec.
type namedMatcher struct {
	outKey string
	spec   pathSpec
	isList bool
}

// Compiled is the compiled configuration used in the hot path.
type Compiled struct {
	recordTag  string
	attrPrefix string
	skipAttrs  bool
	byLast     map[string][]namedMatcher // last element name -> matchers
	attrFields map[string][]string       // record attribute -> output keys
}

// RecordTag returns the record element name.
func (c *Compiled) RecordTag() string {
	return c.recordTag
}

// Compile compiles a Config into a hot-path Compiled structure.
func Compile(c Config) (Compiled, error) {
	cc := Compiled{
		recordTag:  c.RecordTag,
		attrPrefix: c.AttributePrefix,
		skipAttrs:  c.SkipAttributes,
		byLast:     map[string][]namedMatcher{},
		attrFields: map[string][]string{},
	}
	add := func(group, k, p string, list bool) error {
		if strings.HasPrefix(strings.TrimSpace(p), "@") {
			if list {
				return fmt.Errorf("%s.%s: attribute paths are single-valued", group, k)
			}
			name := strings.TrimPrefix(strings.TrimSpace(p), "@")
			if name == "" {
				return fmt.Errorf("%s.%s: empty attribute name", group, k)
			}
			cc.attrFields[name] = append(cc.attrFields[name], k)
			return nil
		}
		ps, err := parsePathSpec(p)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", group, k, err)
		}
		last := ps.segs[len(ps.segs)-1].name
		cc.byLast[last] = append(cc.byLast[last], namedMatcher{outKey: k, spec: ps, isList: list})
		return nil
	}
	for k, p := range c.Fields {
		if err := add("fields", k, p, false); err != nil {
			return cc, err
		}
	}
	for k, p := range c.Lists {
		if err := add("lists", k, p, true); err != nil {
			return cc, err
		}
	}
	return cc, nil
}

// tailMatches reports whether rel (a stack of element names relative to the record)
// ends with spec's segments.
func tailMatches(rel []string, spec pathSpec) bool {
	if len(rel) < len(spec.segs) {
		return false
	}
	off := len(rel) - len(spec.segs)
	for i := range spec.segs {
		if rel[off+i] != spec.segs[i].name {
			return false
		}
	}
	return true
}
