// Package redis implements the engine's storage and messaging ports on
// Redis. All adapters share one client and namespace their keys and
// pub/sub channels under a common prefix, so several applications can
// share a server without colliding.
//
// Key layout under the prefix:
//
//	session:{id}          session record (JSON string)
//	sessions              session index (ZSET scored by expiry)
//	fanout:{id}           fan-out aggregate counters (HASH)
//	fanout:{id}:results   successful child results (LIST of JSON)
//	fanout:{id}:errors    failed child errors (LIST of JSON)
//	queue:{name}          task queue (LIST of JSON)
//	channel:{name}        pub/sub channel
package redis

import (
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor/pkg/domain"
)

// DefaultPrefix namespaces every key and channel this package touches.
const DefaultPrefix = "arbor:"

type settings struct {
	prefix     string
	sessionTTL time.Duration
}

// Option configures the adapters in this package.
type Option func(*settings)

// WithPrefix overrides the key namespace prefix.
func WithPrefix(prefix string) Option {
	return func(s *settings) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithSessionTTL overrides the sliding session idle window.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func newSettings(opts ...Option) settings {
	s := settings{
		prefix:     DefaultPrefix,
		sessionTTL: domain.DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Dial creates a client with the standard options. Callers own the
// client and share it across the adapters built from it.
func Dial(address, password string, db int) *backend.Client {
	return backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
}
