package params

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/aretw0/arbor/pkg/domain"
)

// Validator constructors for the common checks. Validators always see the
// formatted value.

// NonEmpty rejects empty strings.
func NonEmpty() domain.ValidatorFunc {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if s == "" {
			return fmt.Errorf("must not be empty")
		}
		return nil
	}
}

// OneOf restricts a string to a fixed set.
func OneOf(allowed ...string) domain.ValidatorFunc {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if !slices.Contains(allowed, s) {
			return fmt.Errorf("must be one of %v", allowed)
		}
		return nil
	}
}

// Matches requires the string to match pattern. The pattern is compiled at
// construction, so a bad pattern fails at boot rather than per call.
func Matches(pattern string) domain.ValidatorFunc {
	re := regexp.MustCompile(pattern)
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("must match %s", pattern)
		}
		return nil
	}
}

// Range bounds a numeric value inclusively.
func Range(min, max float64) domain.ValidatorFunc {
	return func(value any) error {
		var f float64
		switch v := value.(type) {
		case int:
			f = float64(v)
		case int64:
			f = float64(v)
		case float64:
			f = v
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
		if f < min || f > max {
			return fmt.Errorf("must be between %v and %v", min, max)
		}
		return nil
	}
}
