package table

import (
	"math"
	"strconv"
	"time"
)

// Cast converts v to type to. A nil v yields (nil, true). A non-nil v that
// cannot be represented yields (nil, false): the caller records a failed
// cast and keeps the null.
func Cast(v any, to Type) (any, bool) {
	if v == nil {
		return nil, true
	}
	switch to {
	case TypeString:
		return castString(v), true
	case TypeLong:
		n, ok := toInt64(v)
		if !ok {
			return nil, false
		}
		return n, true
	case TypeInt:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, false
		}
		return int32(n), true
	case TypeShort:
		n, ok := toInt64(v)
		if !ok || n < math.MinInt16 || n > math.MaxInt16 {
			return nil, false
		}
		return int16(n), true
	case TypeDouble:
		return toFloat64(v)
	case TypeBoolean:
		return toBool(v)
	case TypeTimestamp:
		return toTimestamp(v)
	}
	return nil, false
}

// CastString converts the text s to type to. Empty text is null for every
// type except string, and is not counted as a failure.
func CastString(s string, to Type) (any, bool) {
	if to == TypeString {
		return s, true
	}
	if s == "" {
		return nil, true
	}
	return Cast(s, to)
}

func castString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(TimestampLayout)
	}
	return FormatValue(v)
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		return ParseLong(x)
	case time.Time:
		return x.Unix(), true
	}
	return 0, false
}

func toFloat64(v any) (any, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case int16:
		return float64(x), true
	case bool:
		if x {
			return 1.0, true
		}
		return 0.0, true
	case string:
		if f, ok := ParseDouble(x); ok {
			return f, true
		}
	}
	return nil, false
}

func toBool(v any) (any, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case int64:
		return x != 0, true
	case int32:
		return x != 0, true
	case int16:
		return x != 0, true
	case float64:
		return x != 0, true
	case string:
		if b, ok := ParseBool(x); ok {
			return b, true
		}
	}
	return nil, false
}

func toTimestamp(v any) (any, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case int64:
		return time.Unix(x, 0).UTC(), true
	case string:
		if t, ok := ParseTimestamp(x); ok {
			return t, true
		}
	}
	return nil, false
}
