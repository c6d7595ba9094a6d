// Package cli wires configuration into running components: the logger,
// the engine with its backends and session middleware, and the servers
// the commands start. Commands stay thin; assembly lives here.
package cli

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	redisadapter "github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
)

// BuildLogger creates the process logger from the log section.
func BuildLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
}

// BuildEngine assembles an engine from configuration. The returned
// cleanup function releases backend clients and must run at shutdown.
func BuildEngine(cfg *config.Config, logger *slog.Logger, extra ...arbor.Option) (*arbor.Engine, func(), error) {
	options := []arbor.Option{
		arbor.WithName(cfg.Name),
		arbor.WithLogger(logger),
	}

	// One Redis client serves every store that needs it.
	var client *backend.Client
	cleanup := func() {}
	if cfg.Backend == "redis" || cfg.SessionStore() == "redis" {
		client = redisadapter.Dial(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		cleanup = func() { _ = client.Close() }
	}

	redisOpts := []redisadapter.Option{
		redisadapter.WithPrefix(cfg.Redis.Prefix),
		redisadapter.WithSessionTTL(cfg.Session.TTL.Std()),
	}

	if cfg.Backend == "redis" {
		options = append(options,
			arbor.WithAggregateStore(redisadapter.NewAggregates(client, redisOpts...)),
			arbor.WithQueue(redisadapter.NewQueue(client, redisOpts...)),
			arbor.WithBroker(redisadapter.NewBroker(client, redisOpts...)),
		)
	}

	sessions, err := buildSessionStore(cfg, client, redisOpts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	options = append(options, arbor.WithSessionStore(sessions))
	options = append(options, extra...)

	engine, err := arbor.New(options...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}

// buildSessionStore resolves the session backend and wraps it in the
// configured middleware chain.
func buildSessionStore(cfg *config.Config, client *backend.Client, redisOpts []redisadapter.Option) (ports.SessionStore, error) {
	var store ports.SessionStore
	switch cfg.SessionStore() {
	case "memory":
		store = memory.NewSessions(memory.WithSessionTTL(cfg.Session.TTL.Std()))
	case "file":
		store = file.New(cfg.Session.Path, file.WithTTL(cfg.Session.TTL.Std()))
	case "redis":
		store = redisadapter.NewSessions(client, redisOpts...)
	}

	chain, err := middlewareChain(cfg)
	if err != nil {
		return nil, err
	}
	// chain is in call order, so the first entry wraps outermost.
	for i := len(chain) - 1; i >= 0; i-- {
		store = chain[i](store)
	}
	return store, nil
}

// middlewareChain builds the session middleware stack in call order:
// masking first, so only masked values reach the cipher.
func middlewareChain(cfg *config.Config) ([]middleware.Middleware, error) {
	var chain []middleware.Middleware

	if len(cfg.Session.MaskPatterns) > 0 {
		chain = append(chain, middleware.NewMaskingMiddleware(cfg.Session.MaskPatterns))
	}

	if cfg.Session.EncryptionKey != "" {
		active, err := decodeKey(cfg.Session.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid session encryption key: %w", err)
		}
		fallbacks := make([][]byte, 0, len(cfg.Session.FallbackKeys))
		for i, raw := range cfg.Session.FallbackKeys {
			key, err := decodeKey(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid session fallback key %d: %w", i, err)
			}
			fallbacks = append(fallbacks, key)
		}
		chain = append(chain, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallbacks,
		}))
	}

	return chain, nil
}

func decodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}
