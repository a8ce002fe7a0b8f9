package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Isolate from any config file in the real home directory
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))
	os.Unsetenv("MEMLIMIT_MIN_MB")
	os.Unsetenv("MEMLIMIT_MAX_MB")
	os.Unsetenv("MEMLIMIT_ALLOCATOR")
	os.Unsetenv("MEMLIMIT_LOG_LEVEL")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, uint64(0), cfg.MinMB)
	assert.Equal(t, uint64(4096), cfg.MaxMB)
	assert.Empty(t, cfg.Allocator)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.RecordFile)
	assert.Empty(t, cfg.AddressSpaceLimit)
}

func TestLoadConfig_EnvVarOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MEMLIMIT_MAX_MB", "128")
	t.Setenv("MEMLIMIT_ALLOCATOR", "heap")
	t.Setenv("MEMLIMIT_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, uint64(128), cfg.MaxMB)
	assert.Equal(t, "heap", cfg.Allocator)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "memlimit.yaml")
	content := "min_mb: 16\nmax_mb: 64\nrecord_file: /tmp/probe.jsonl\naddress_space_limit: 2G\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(16), cfg.MinMB)
	assert.Equal(t, uint64(64), cfg.MaxMB)
	assert.Equal(t, "/tmp/probe.jsonl", cfg.RecordFile)
	assert.Equal(t, "2G", cfg.AddressSpaceLimit)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{
			name:     "expand tilde",
			input:    "~/.memlimit/probe.jsonl",
			contains: ".memlimit/probe.jsonl",
		},
		{
			name:     "absolute path unchanged",
			input:    "/var/log/memlimit.jsonl",
			contains: "/var/log/memlimit.jsonl",
		},
		{
			name:     "empty path",
			input:    "",
			contains: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if tt.input == "" {
				assert.Equal(t, tt.contains, result)
			} else {
				assert.Contains(t, result, filepath.FromSlash(tt.contains))
			}
		})
	}
}
