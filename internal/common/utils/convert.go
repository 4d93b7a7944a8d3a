package utils

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MillisToSeconds converts an optional epoch-milliseconds value to epoch seconds
// using integer division. Nil stays nil.
func MillisToSeconds(ms *int64) *int64 {
	if ms == nil {
		return nil
	}
	seconds := *ms / 1000
	return &seconds
}

// StringValue renders a scalar JSON value as a string. Integral numbers are
// rendered without a fractional part. ok is false for nil and non-scalar values.
func StringValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return strconv.FormatInt(int64(val), 10), true
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		return "", false
	}
}

// ParseTimestamp accepts epoch seconds, epoch milliseconds or an RFC 3339
// string. Numbers above 1e11 are read as milliseconds.
func ParseTimestamp(v any) (*time.Time, error) {
	var n float64
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			t = t.UTC()
			return &t, nil
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid datetime format %q", val)
		}
		n = f
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid datetime number %q", val.String())
		}
		n = f
	case float64:
		n = val
	case int64:
		n = float64(val)
	case int:
		n = float64(val)
	default:
		return nil, fmt.Errorf("unsupported datetime type %T", v)
	}

	var t time.Time
	if math.Abs(n) > 1e11 {
		t = time.UnixMilli(int64(n)).UTC()
	} else {
		t = time.Unix(int64(n), 0).UTC()
	}
	return &t, nil
}
