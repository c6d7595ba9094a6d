package params

import (
	"github.com/aretw0/arbor/pkg/domain"
)

// Format runs the pipeline over raw input for the declared schema.
// Undeclared raw keys are dropped; only declared inputs reach the handler.
// The first failing input aborts the run with a PARAM_* error.
func Format(raw map[string]any, inputs []domain.Input) (domain.Params, error) {
	out := make(domain.Params, len(inputs))

	for _, in := range inputs {
		value, present := raw[in.Name]
		if value == nil {
			present = false
		}

		// 1. Defaults fill absent values. A producer takes precedence and
		// may itself fail.
		if !present {
			switch {
			case in.DefaultFunc != nil:
				v, err := in.DefaultFunc()
				if err != nil {
					return nil, domain.NewParamError(domain.KindParamDefault, in.Name, nil,
						"default for parameter %q failed: %v", in.Name, err)
				}
				if v != nil {
					value, present = v, true
				}
			case in.Default != nil:
				value, present = in.Default, true
			}
		}

		// 2. Required is checked after defaults and before any validator.
		if !present {
			if in.Required {
				return nil, domain.NewParamError(domain.KindParamRequired, in.Name, nil,
					"missing required parameter %q", in.Name)
			}
			continue
		}

		// 3. Formatter coerces the raw value. Its error carries the raw
		// value for diagnostics.
		if in.Formatter != nil {
			v, err := in.Formatter(value)
			if err != nil {
				return nil, domain.NewParamError(domain.KindParamFormatting, in.Name, value,
					"cannot format parameter %q: %v", in.Name, err)
			}
			value = v
		}

		// 4. Validator sees the formatted value, never the raw one.
		if in.Validator != nil {
			if err := in.Validator(value); err != nil {
				return nil, domain.NewParamError(domain.KindParamValidation, in.Name, value,
					"invalid parameter %q: %v", in.Name, err)
			}
		}

		out[in.Name] = value
	}

	return out, nil
}
