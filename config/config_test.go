package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
token: abc
dev_mode: true
db_url: postgres://joku@localhost/joku
redis:
  addr: localhost:6379
  db: 2
autoload:
  - levelling
  - jokusoramame.plugins.economy
game_rotation:
  - with fire
  - the long game
log_channels:
  error_channel: 123456789
owner_ids: [1, 2]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Token)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, int64(123456789), cfg.LogChannels.ErrorChannel)
	assert.Equal(t, []string{"with fire", "the long game"}, cfg.GameRotation)
	assert.Equal(t, 1, cfg.ShardCount)
	assert.Equal(t, "none", cfg.Metrics.Exporter)
	assert.True(t, cfg.IsOwner(2))
	assert.False(t, cfg.IsOwner(3))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("JOKU_TOKEN", "from-env")
	t.Setenv("JOKU_REDIS_ADDR", "redis:6380")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
}

func TestLoad_MissingRequired(t *testing.T) {
	_, err := Load(writeConfig(t, "token: abc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db_url is required")
}

func TestAutoload(t *testing.T) {
	tests := []struct {
		name     string
		autoload []string
		expected []string
	}{
		{"empty", nil, []string{"core"}},
		{"prepends core", []string{"levelling"}, []string{"core", "levelling"}},
		{"core already present", []string{"levelling", "core"}, []string{"levelling", "core"}},
		{"namespaced core", []string{"jokusoramame.plugins.core"}, []string{"jokusoramame.plugins.core"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AutoloadList: tt.autoload}
			assert.Equal(t, tt.expected, cfg.Autoload())
		})
	}
}

func TestPrefixes(t *testing.T) {
	cfg := NewTestConfig()
	assert.Equal(t, []string{"j!", "j?", "j::", "j->"}, cfg.Prefixes())

	cfg.DevMode = true
	assert.Equal(t, []string{"jd!", "jd::"}, cfg.Prefixes())
}

func TestSetTestConfig(t *testing.T) {
	defer ResetConfig()

	cfg := NewTestConfig()
	cfg.Token = "swapped"
	SetTestConfig(cfg)
	assert.Same(t, cfg, Get())
}
