// Package middleware wraps a ports.SessionStore with cross-cutting
// behavior. Middlewares compose by nesting, innermost closest to the
// backend:
//
//	store := mask(encrypt(redisStore))
package middleware

import "github.com/aretw0/arbor/pkg/ports"

// Middleware allows wrapping a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore
