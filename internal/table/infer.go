package table

// InferType returns the narrowest type that accepts every non-null value in
// vals, trying long, double, boolean, timestamp, then string. Nil and empty
// strings are ignored; a column with nothing left is string.
func InferType(vals []string, present []bool) Type {
	candidates := []struct {
		t  Type
		ok func(string) bool
	}{
		{TypeLong, func(s string) bool { _, ok := ParseLong(s); return ok && !hasFraction(s) }},
		{TypeDouble, func(s string) bool { _, ok := ParseDouble(s); return ok }},
		{TypeBoolean, parseBoolStrict},
		{TypeTimestamp, func(s string) bool { _, ok := ParseTimestamp(s); return ok }},
	}

	seen := false
	alive := make([]bool, len(candidates))
	for i := range alive {
		alive[i] = true
	}
	for i, v := range vals {
		if present != nil && !present[i] {
			continue
		}
		if v == "" {
			continue
		}
		seen = true
		remaining := false
		for c := range candidates {
			if alive[c] && !candidates[c].ok(v) {
				alive[c] = false
			}
			remaining = remaining || alive[c]
		}
		if !remaining {
			return TypeString
		}
	}
	if !seen {
		return TypeString
	}
	for c := range candidates {
		if alive[c] {
			return candidates[c].t
		}
	}
	return TypeString
}

// hasFraction keeps "1.0" out of long columns during inference.
func hasFraction(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E':
			return true
		}
	}
	return false
}
