package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Masked replaces values whose keys match a masking pattern.
const Masked = "***"

type maskingMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewMaskingMiddleware creates a middleware that masks session data
// values whose keys match any of the patterns before they reach the
// backend. Masking is write-side only and applies recursively to
// nested maps; the in-memory session the engine works with is never
// touched.
func NewMaskingMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &maskingMiddleware{next: next, patterns: patterns}
	}
}

func (m *maskingMiddleware) Save(ctx context.Context, sess *domain.Session) error {
	// 1. Deep clone so the engine's in-memory record keeps its values
	cloned := *sess
	cloned.Data = deepCopyMap(sess.Data)

	// 2. Mask matching keys
	maskMap(cloned.Data, m.patterns)

	return m.next.Save(ctx, &cloned)
}

func (m *maskingMiddleware) Load(ctx context.Context, connectionID string) (*domain.Session, error) {
	return m.next.Load(ctx, connectionID)
}

func (m *maskingMiddleware) Delete(ctx context.Context, connectionID string) (bool, error) {
	return m.next.Delete(ctx, connectionID)
}

func (m *maskingMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Masked
				break
			}
		}

		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
