package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "saturn", cfg.Name)
	assert.Equal(t, ChainPolicyDirect, cfg.Saturation.ChainPolicy)
	assert.Equal(t, 10*time.Minute, cfg.GetTimeout())
	assert.Equal(t, runtime.NumCPU(), cfg.GetWorkers())
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("SATURN_WORKERS", "")
	t.Setenv("SATURN_DB", "")

	path := filepath.Join(t.TempDir(), "nested", "saturn.yaml")

	cfg := DefaultConfig()
	cfg.Saturation.Workers = 3
	cfg.Saturation.ChainPolicy = ChainPolicyToldSuper
	cfg.Store.DatabasePath = "/tmp/tax.db"
	cfg.Logging.Categories = map[string]bool{"index": false}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.GetWorkers())
	assert.Equal(t, ChainPolicyToldSuper, loaded.Saturation.ChainPolicy)
	assert.Equal(t, "/tmp/tax.db", loaded.Store.DatabasePath)
	assert.Equal(t, map[string]bool{"index": false}, loaded.Logging.Categories)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Saturation, cfg.Saturation)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("saturation: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDurationGetters(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected time.Duration
	}{
		{"explicit", "30s", 30 * time.Second},
		{"disabled", "0", 0},
		{"empty", "", 0},
		{"garbage falls back", "soon", 10 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Saturation.Timeout = tt.value
			assert.Equal(t, tt.expected, cfg.GetTimeout())
		})
	}

	cfg := DefaultConfig()
	cfg.Watch.Debounce = "-1s"
	cfg.Saturation.ProgressInterval = "nope"
	assert.Equal(t, 300*time.Millisecond, cfg.GetDebounce())
	assert.Equal(t, 2*time.Second, cfg.GetProgressInterval())
}

func TestValidate(t *testing.T) {
	t.Run("bad policy", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Saturation.ChainPolicy = "fastest"
		assert.ErrorContains(t, cfg.Validate(), "invalid chain policy")
	})

	t.Run("negative workers", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Saturation.Workers = -2
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Saturation.Timeout = "forever"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad format", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Logging.Format = "xml"
		assert.Error(t, cfg.Validate())
	})
}
