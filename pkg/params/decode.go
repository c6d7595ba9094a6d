package params

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/arbor/pkg/domain"
)

// Decode maps a typed parameter set onto a caller struct using
// `mapstructure` tags. Weak typing is enabled so string-heavy transports
// (query strings, task params) decode into numeric and boolean fields
// without per-field formatters.
func Decode(p domain.Params, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(p)); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}
