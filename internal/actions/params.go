package actions

import (
	"fmt"
	"strconv"
	"strings"

	"workflow-engine/internal/workflow"
)

// stringParam returns the first non-empty string value among the given keys.
func stringParam(params map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || workflow.Empty(v) {
			continue
		}
		switch t := v.(type) {
		case string:
			return t, true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case int:
			return strconv.Itoa(t), true
		case int64:
			return strconv.FormatInt(t, 10), true
		default:
			return fmt.Sprintf("%v", t), true
		}
	}
	return "", false
}

// intParam parses the first present value among the given keys as an integer,
// clamped to [min, max].
func intParam(params map[string]interface{}, min, max int, keys ...string) (int, bool, error) {
	for _, key := range keys {
		v, ok := params[key]
		if !ok || workflow.Empty(v) {
			continue
		}
		n, err := toInt(v)
		if err != nil {
			return 0, false, fmt.Errorf("invalid value for %s", key)
		}
		if n < min {
			n = min
		}
		if n > max {
			n = max
		}
		return n, true, nil
	}
	return 0, false, nil
}

func toInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, err
		}
		return int(f), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

// positiveNumber parses a number accepting numeric strings; zero, negative
// and non-numeric values are rejected.
func positiveNumber(v interface{}) (float64, bool) {
	if workflow.Empty(v) {
		return 0, false
	}
	var n float64
	switch t := v.(type) {
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case float64:
		n = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if n <= 0 {
		return 0, false
	}
	return n, true
}

// stringList normalizes a comma-separated string or a list into a clean
// slice of strings.
func stringList(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case string:
		var out []string
		for _, item := range strings.Split(t, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, true
	case []interface{}:
		var out []string
		for _, item := range t {
			if trimmed := strings.TrimSpace(fmt.Sprintf("%v", item)); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
