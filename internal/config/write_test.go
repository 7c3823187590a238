package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteNew_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	cfg := DefaultConfig()
	cfg.Auth.ClientID = "app-123"
	cfg.Sync.IntervalSeconds = 90

	require.NoError(t, WriteNew(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(configFilePermissions), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestWriteNew_RefusesOverwrite(t *testing.T) {
	path := writeTestConfig(t, "# mine\n")

	err := WriteNew(path, DefaultConfig())
	assert.ErrorIs(t, err, ErrConfigExists)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "# mine\n", string(data))
}

func TestRenderEffective_HidesSecret(t *testing.T) {
	r := &Resolved{Config: *DefaultConfig(), Path: "/etc/x.toml", TokenPath: "/d/token.json"}
	r.Auth.ClientSecret = "top-secret"

	var buf bytes.Buffer
	require.NoError(t, RenderEffective(r, &buf))

	out := buf.String()
	assert.NotContains(t, out, "top-secret")
	assert.Contains(t, out, "client_secret    = (set)")
	assert.Contains(t, out, "interval_seconds = 30")
	assert.Contains(t, out, "/d/token.json")
}
