package cli

import (
	"context"
	"encoding/base64"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
)

func defaultConfig() *config.Config {
	cfg := config.Default()
	return &cfg
}

func testKey(t *testing.T) string {
	t.Helper()
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestBuildLogger_Levels(t *testing.T) {
	cfg := defaultConfig()
	cfg.Log.Level = "debug"
	logger := BuildLogger(cfg)
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	cfg.Log.Level = "warn"
	logger = BuildLogger(cfg)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestBuildEngine_MemoryDefaults(t *testing.T) {
	cfg := defaultConfig()
	cfg.Name = "factory-test"

	engine, cleanup, err := BuildEngine(cfg, logging.NewNop())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "factory-test", engine.Name())

	// The wired session store must serve a full lifecycle.
	conn := engine.NewConnection(domain.ConnectionCLI, "factory-conn")
	sess, err := conn.UpdateSession(context.Background(), map[string]any{"user": "ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada", sess["user"])

	loaded, err := conn.Session(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada", loaded.Data["user"])
}

func TestBuildEngine_ExtraOptionsApply(t *testing.T) {
	cfg := defaultConfig()

	engine, cleanup, err := BuildEngine(cfg, logging.NewNop(), arbor.WithName("override"))
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, "override", engine.Name())
}

func TestBuildEngine_RejectsBadEncryptionKey(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.EncryptionKey = "!!!not-base64!!!"

	engine, _, err := BuildEngine(cfg, logging.NewNop())
	require.Error(t, err)
	assert.Nil(t, engine)
	assert.Contains(t, err.Error(), "invalid session encryption key")
}

func TestBuildSessionStore_File(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.Store = "file"
	cfg.Session.Path = t.TempDir()

	store, err := buildSessionStore(cfg, nil, nil)
	require.NoError(t, err)

	sess := &domain.Session{
		ID:        "conn-1",
		CreatedAt: time.Now(),
		Data:      map[string]any{"user": "ada"},
	}
	require.NoError(t, store.Save(context.Background(), sess))

	loaded, err := store.Load(context.Background(), "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "ada", loaded.Data["user"])
}

func TestBuildSessionStore_MaskingApplied(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.MaskPatterns = []string{"(?i)password"}

	store, err := buildSessionStore(cfg, nil, nil)
	require.NoError(t, err)

	sess := &domain.Session{
		ID:        "conn-2",
		CreatedAt: time.Now(),
		Data:      map[string]any{"user": "ada", "Password": "hunter2"},
	}
	require.NoError(t, store.Save(context.Background(), sess))

	loaded, err := store.Load(context.Background(), "conn-2")
	require.NoError(t, err)
	assert.Equal(t, middleware.Masked, loaded.Data["Password"])
	assert.Equal(t, "ada", loaded.Data["user"])
}

func TestBuildSessionStore_EncryptedRoundTrip(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.EncryptionKey = testKey(t)

	store, err := buildSessionStore(cfg, nil, nil)
	require.NoError(t, err)

	sess := &domain.Session{
		ID:        "conn-3",
		CreatedAt: time.Now(),
		Data:      map[string]any{"user": "ada"},
	}
	require.NoError(t, store.Save(context.Background(), sess))

	loaded, err := store.Load(context.Background(), "conn-3")
	require.NoError(t, err)
	assert.Equal(t, "ada", loaded.Data["user"])
}

func TestBuildSessionStore_MasksBeforeEncrypting(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.MaskPatterns = []string{"(?i)card"}
	cfg.Session.EncryptionKey = testKey(t)

	store, err := buildSessionStore(cfg, nil, nil)
	require.NoError(t, err)

	sess := &domain.Session{
		ID:        "conn-4",
		CreatedAt: time.Now(),
		Data:      map[string]any{"user": "ada", "card": "4111"},
	}
	require.NoError(t, store.Save(context.Background(), sess))

	// Decrypting on load must reveal the masked value, proving the mask
	// was applied before sealing.
	loaded, err := store.Load(context.Background(), "conn-4")
	require.NoError(t, err)
	assert.Equal(t, middleware.Masked, loaded.Data["card"])
	assert.Equal(t, "ada", loaded.Data["user"])
}

func TestMiddlewareChain_FallbackKeyValidated(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.EncryptionKey = testKey(t)
	cfg.Session.FallbackKeys = []string{"short"}

	_, err := middlewareChain(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session fallback key 0")
}

func TestMiddlewareChain_EmptyByDefault(t *testing.T) {
	chain, err := middlewareChain(defaultConfig())
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestDecodeKey(t *testing.T) {
	key, err := decodeKey(testKey(t))
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = decodeKey("%%%")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not base64")

	_, err = decodeKey(base64.StdEncoding.EncodeToString([]byte("tiny")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
}
