package params

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxValueSize bounds one raw string value at the transport edge.
const DefaultMaxValueSize = 64 * 1024

var (
	ErrValueTooLarge = errors.New("value exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("value contains invalid UTF-8 sequences")
)

// Clean enforces transport-edge hygiene on one raw string value: size
// limit, valid UTF-8, and no control characters beyond tab, newline, and
// carriage return. Oversize and malformed input is rejected rather than
// truncated, so handlers never observe silently altered values.
func Clean(value string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxValueSize
	}
	if len(value) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrValueTooLarge, len(value), limit)
	}

	if !utf8.ValidString(value) {
		return "", ErrInvalidUTF8
	}

	// Fast path: most values carry no control characters at all.
	dirty := false
	for _, r := range value {
		if unicode.IsControl(r) && !isSafeControl(r) {
			dirty = true
			break
		}
	}
	if !dirty {
		return value, nil
	}

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}
