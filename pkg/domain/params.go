package domain

import "time"

// Params holds the typed, validated parameter set produced by the pipeline.
// Accessors return zero values for absent or mistyped keys; handlers that
// need stricter decoding can use params.Decode.
type Params map[string]any

// Get returns the raw value and whether the key is present.
func (p Params) Get(key string) (any, bool) {
	v, ok := p[key]
	return v, ok
}

// Has reports whether the key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value as a string, or "" when absent or not a string.
func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the value as an int, accepting the numeric types that raw
// JSON and the built-in formatters produce.
func (p Params) Int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float64 returns the value as a float64, or 0 when absent or non-numeric.
func (p Params) Float64(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns the value as a bool, or false when absent or not a bool.
func (p Params) Bool(key string) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return false
}

// Duration returns the value as a time.Duration, or 0 when absent.
func (p Params) Duration(key string) time.Duration {
	if v, ok := p[key].(time.Duration); ok {
		return v
	}
	return 0
}

// Time returns the value as a time.Time, or the zero time when absent.
func (p Params) Time(key string) time.Time {
	if v, ok := p[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

// File returns the value as an uploaded file, or nil.
func (p Params) File(key string) *File {
	if v, ok := p[key].(*File); ok {
		return v
	}
	return nil
}
