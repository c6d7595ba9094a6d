package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Built-in formatters for the common raw-to-typed coercions. Each accepts
// the value shapes transports actually produce: strings from query/form
// input, float64 from decoded JSON numbers, and already-typed values from
// embedded callers.

// Int coerces to int.
func Int(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int64(v)) {
			return nil, fmt.Errorf("%v is not a whole number", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", v)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int", value)
	}
}

// Float coerces to float64.
func Float(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", v)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to float", value)
	}
}

// Bool coerces to bool. Strings go through strconv.ParseBool.
func Bool(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", v)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to bool", value)
	}
}

// String coerces scalars to their string form.
func String(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	case bool, int, int64, float64:
		return fmt.Sprintf("%v", v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to string", value)
	}
}

// Time parses RFC 3339 timestamps, with a date-only fallback.
func Time(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t, nil
		}
		return nil, fmt.Errorf("%q is not an RFC 3339 timestamp", v)
	default:
		return nil, fmt.Errorf("cannot convert %T to time", value)
	}
}

// Duration parses Go duration strings; bare numbers are seconds.
func Duration(value any) (any, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%q is not a duration", v)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to duration", value)
	}
}

// JSON decodes a JSON string into its untyped value. Already-structured
// values pass through, so the same schema serves web forms and JSON bodies.
func JSON(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}
	return out, nil
}
