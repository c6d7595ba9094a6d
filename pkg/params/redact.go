package params

import "github.com/aretw0/arbor/pkg/domain"

// Redacted is the fixed marker substituted for secret values in logs.
const Redacted = "[redacted]"

// Redact builds the logging view of a raw parameter set: every key whose
// input is flagged Secret shows the marker, everything else passes through.
// The original map is never modified.
func Redact(raw map[string]any, inputs []domain.Input) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}

	secret := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in.Secret {
			secret[in.Name] = true
		}
	}

	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if secret[k] {
			out[k] = Redacted
			continue
		}
		out[k] = v
	}
	return out
}
