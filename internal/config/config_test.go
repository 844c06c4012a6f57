package config

import (
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "${GOOGLE_TRANSLATE_API_KEY}", cfg.Translate.Google.APIKey)
	assert.Equal(t, "zh-TW", cfg.Translate.Target)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.Translate.Provider = "deepl" }},
		{"target", func(c *Config) { c.Translate.Target = "not a tag!" }},
		{"category", func(c *Config) { c.Editor.DefaultCategory = "Chapter" }},
		{"layout", func(c *Config) { c.Editor.DefaultLayout = "nested" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")
		assert.Equal(t, "secret123", ResolveEnvVars("${TEST_API_KEY}"))
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		assert.Empty(t, ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"))
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		assert.Equal(t, "literal-value", ResolveEnvVars("literal-value"))
	})
}

func TestConfig_ToTranslateConfig(t *testing.T) {
	t.Setenv("TEST_GOOGLE_KEY", "g-key-123")

	cfg := DefaultConfig()
	cfg.Translate.Google.APIKey = "${TEST_GOOGLE_KEY}"
	cfg.Translate.OpenAI.APIKey = "direct-key"
	cfg.Translate.TimeoutSeconds = 5

	tc := cfg.ToTranslateConfig(nil)
	assert.Equal(t, "g-key-123", tc.Google.APIKey)
	assert.Equal(t, "direct-key", tc.OpenAI.APIKey)
	assert.Equal(t, 5*time.Second, tc.Timeout)
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
translate:
  provider: openai
  target: ja
server:
  port: "9090"
`)

		mgr, err := NewManager(configFile)
		require.NoError(t, err)

		cfg := mgr.Get()
		assert.Equal(t, "openai", cfg.Translate.Provider)
		assert.Equal(t, "ja", cfg.Translate.Target)
		assert.Equal(t, "9090", cfg.Server.Port)
		// Unset keys keep their defaults.
		assert.Equal(t, "gpt-4o-mini", cfg.Translate.OpenAI.Model)
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		mgr, err := NewManager(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "8080", mgr.Get().Server.Port)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("CLICKREAD_TRANSLATE_PROVIDER", "none")
		configFile := writeConfig(t, "translate:\n  provider: openai\n")

		mgr, err := NewManager(configFile)
		require.NoError(t, err)
		assert.Equal(t, "none", mgr.Get().Translate.Provider)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		configFile := writeConfig(t, "editor:\n  default_category: Chapter\n")
		_, err := NewManager(configFile)
		assert.Error(t, err)
	})
}

func TestManager_Set(t *testing.T) {
	configFile := writeConfig(t, "translate:\n  provider: google\n")

	mgr, err := NewManager(configFile)
	require.NoError(t, err)

	require.NoError(t, mgr.Set("translate.provider", "openai"))
	assert.Equal(t, "openai", mgr.Get().Translate.Provider)
	data, err := os.ReadFile(configFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "openai", "config file updated")

	assert.Error(t, mgr.Set("translate.provider", "deepl"))
	assert.Equal(t, "openai", mgr.Get().Translate.Provider, "rejected value must not apply")

	assert.ErrorIs(t, mgr.Set("no.such.key", "x"), ErrNoDefault)
	assert.ErrorIs(t, mgr.Set("bad key", "x"), ErrInvalidKey)
}

func TestManager_Entries(t *testing.T) {
	configFile := writeConfig(t, "server:\n  port: \"7000\"\n")
	mgr, err := NewManager(configFile)
	require.NoError(t, err)

	entries := mgr.Entries()
	require.Len(t, entries, len(DefaultEntries()))
	assert.True(t, sort.SliceIsSorted(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key }), "entries sorted by key")
	for _, e := range entries {
		if e.Key == "server.port" {
			assert.Equal(t, "7000", e.Value, "effective port")
		}
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "server:\n  port: \"8080\"\n"))
	require.NoError(t, err)

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	assert.Len(t, mgr.callbacks, 3)
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "server:\n  port: \"8080\"\n"))
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Server.Port
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, `
translate:
  target: zh-TW
`)

	mgr, err := NewManager(configFile)
	require.NoError(t, err)
	require.Equal(t, "zh-TW", mgr.Get().Translate.Target)

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Translate.Target)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	newContent := `
translate:
  target: ja
`
	require.NoError(t, os.WriteFile(configFile, []byte(newContent), 0644))

	// fsnotify is async
	require.Eventually(t, func() bool { return callbackCount.Load() > 0 }, 2*time.Second, 50*time.Millisecond,
		"callback was not invoked after config file change")

	assert.Equal(t, "ja", mgr.Get().Translate.Target)
	assert.Equal(t, "ja", lastValue.Load())
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	mgr, err := NewManager(path)
	require.NoError(t, err, "written default config loads")
	assert.Equal(t, "${GOOGLE_TRANSLATE_API_KEY}", mgr.Get().Translate.Google.APIKey)
}
