// Package config loads the process configuration in three layers:
// compiled-in defaults, an optional YAML file, then ARBOR_* environment
// variables. Each layer overrides the one before it.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML and env values can use "30s"
// notation. Bare YAML integers are seconds.
type Duration time.Duration

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration value %q", value.Value)
}

// Config is the full process configuration.
type Config struct {
	// Name labels the engine in logs and the status surface.
	Name string `yaml:"name" env:"ARBOR_NAME"`

	// Backend selects the shared store fabric: "memory" or "redis".
	Backend string `yaml:"backend" env:"ARBOR_BACKEND"`

	Log     Log     `yaml:"log"`
	Server  Server  `yaml:"server"`
	Redis   Redis   `yaml:"redis"`
	Session Session `yaml:"session"`
	Worker  Worker  `yaml:"worker"`
	FanOut  FanOut  `yaml:"fanout"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level" env:"ARBOR_LOG_LEVEL"`
	Format string `yaml:"format" env:"ARBOR_LOG_FORMAT"`
}

// Server configures the HTTP/WebSocket listener.
type Server struct {
	Addr            string   `yaml:"addr" env:"ARBOR_SERVER_ADDR"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" env:"ARBOR_SERVER_SHUTDOWN_TIMEOUT"`
}

// Redis configures the shared Redis client.
type Redis struct {
	Address  string `yaml:"address" env:"ARBOR_REDIS_ADDRESS"`
	Password string `yaml:"password" env:"ARBOR_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"ARBOR_REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"ARBOR_REDIS_PREFIX"`
}

// Session configures the session store and its middleware.
type Session struct {
	// Store overrides the backend for sessions only: "memory", "file",
	// or "redis". Empty follows Backend.
	Store string `yaml:"store" env:"ARBOR_SESSION_STORE"`

	TTL Duration `yaml:"ttl" env:"ARBOR_SESSION_TTL"`

	// Path is the base directory of the file store.
	Path string `yaml:"path" env:"ARBOR_SESSION_PATH"`

	// EncryptionKey enables at-rest encryption when set: base64 of 32
	// bytes. FallbackKeys accept reads written under rotated-out keys.
	EncryptionKey string   `yaml:"encryption_key" env:"ARBOR_SESSION_ENCRYPTION_KEY"`
	FallbackKeys  []string `yaml:"fallback_keys" env:"ARBOR_SESSION_FALLBACK_KEYS" envSeparator:","`

	// MaskPatterns are regexes over session data keys; matching values
	// persist masked.
	MaskPatterns []string `yaml:"mask_patterns" env:"ARBOR_SESSION_MASK_PATTERNS" envSeparator:","`
}

// Worker configures the task worker.
type Worker struct {
	Concurrency    int      `yaml:"concurrency" env:"ARBOR_WORKER_CONCURRENCY"`
	Queues         []string `yaml:"queues" env:"ARBOR_WORKER_QUEUES" envSeparator:","`
	DequeueTimeout Duration `yaml:"dequeue_timeout" env:"ARBOR_WORKER_DEQUEUE_TIMEOUT"`
	Scheduler      bool     `yaml:"scheduler" env:"ARBOR_WORKER_SCHEDULER"`
}

// FanOut configures fan-out coordination.
type FanOut struct {
	TTL       Duration `yaml:"ttl" env:"ARBOR_FANOUT_TTL"`
	BatchSize int      `yaml:"batch_size" env:"ARBOR_FANOUT_BATCH_SIZE"`
}

// Default returns the configuration used when no file and no env vars
// are present.
func Default() Config {
	return Config{
		Name:    "arbor",
		Backend: "memory",
		Log: Log{
			Level:  "info",
			Format: "text",
		},
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Redis: Redis{
			Address: "localhost:6379",
			Prefix:  "arbor:",
		},
		Session: Session{
			TTL: Duration(time.Hour),
		},
		Worker: Worker{
			Concurrency:    4,
			DequeueTimeout: Duration(2 * time.Second),
			Scheduler:      true,
		},
		FanOut: FanOut{
			TTL:       Duration(600 * time.Second),
			BatchSize: 100,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (when non-empty), then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component could act on.
func (c *Config) Validate() error {
	switch c.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid backend %q: must be memory or redis", c.Backend)
	}

	switch c.Session.Store {
	case "", "memory", "file", "redis":
	default:
		return fmt.Errorf("invalid session store %q: must be memory, file, or redis", c.Session.Store)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.Log.Format)
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be at least 1, got %d", c.Worker.Concurrency)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.Session.TTL.Std())
	}
	if c.FanOut.TTL <= 0 {
		return fmt.Errorf("fanout ttl must be positive, got %s", c.FanOut.TTL.Std())
	}
	return nil
}

// SessionStore resolves the effective session backend.
func (c *Config) SessionStore() string {
	if c.Session.Store != "" {
		return c.Session.Store
	}
	return c.Backend
}
