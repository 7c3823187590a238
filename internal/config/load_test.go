package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeTestConfig(t, `
[auth]
client_id = "app-123"
client_secret = "s3cret"
redirect_uri = "app-scheme://oauth-callback"

[vault]
dir = "/srv/notes"
locale = "de"

[sync]
interval_seconds = 120
remote_dir = "/Apps/Notes"
watch = true

[logging]
log_level = "debug"

[network]
timeout = "45s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "app-123", cfg.Auth.ClientID)
	assert.Equal(t, "s3cret", cfg.Auth.ClientSecret)
	assert.Equal(t, "/srv/notes", cfg.Vault.Dir)
	assert.Equal(t, "de", cfg.Vault.Locale)
	assert.Equal(t, 120, cfg.Sync.IntervalSeconds)
	assert.Equal(t, 2*time.Minute, cfg.SyncInterval())
	assert.Equal(t, "/Apps/Notes", cfg.Sync.RemoteDir)
	assert.True(t, cfg.Sync.Watch)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.HTTPTimeout())
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := writeTestConfig(t, "[auth]\nclient_id = \"app\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.Sync, cfg.Sync)
	assert.Equal(t, def.Vault, cfg.Vault)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval())
}

func TestLoad_UnknownKeySuggests(t *testing.T) {
	path := writeTestConfig(t, "[sync]\ninterval_second = 60\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "sync.interval_second"`)
	assert.Contains(t, err.Error(), `did you mean "sync.interval_seconds"`)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeTestConfig(t, "[sync\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing config file")
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeTestConfig(t, "[sync]\ninterval_seconds = 1\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "sync.interval_seconds")
}

func TestLoadOrDefault_Missing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestResolve_Precedence(t *testing.T) {
	path := writeTestConfig(t, `
[auth]
client_id = "from-file"
client_secret = "file-secret"

[vault]
dir = "/file/vault"
`)

	dataDir := t.TempDir()

	t.Run("file only", func(t *testing.T) {
		r, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: path}, dataDir)
		require.NoError(t, err)
		assert.Equal(t, "from-file", r.Auth.ClientID)
		assert.Equal(t, "/file/vault", r.Vault.Dir)
		assert.Equal(t, path, r.Path)
		assert.Equal(t, filepath.Join(dataDir, "token.json"), r.TokenPath)
		assert.Equal(t, filepath.Join(dataDir, "ledger.db"), r.LedgerPath)
		assert.Equal(t, filepath.Join(dataDir, "sync.lock"), r.LockPath)
	})

	t.Run("env beats file", func(t *testing.T) {
		r, err := Resolve(EnvOverrides{
			ClientID:     "from-env",
			ClientSecret: "env-secret",
			VaultDir:     "/env/vault",
		}, CLIOverrides{ConfigPath: path}, dataDir)
		require.NoError(t, err)
		assert.Equal(t, "from-env", r.Auth.ClientID)
		assert.Equal(t, "env-secret", r.Auth.ClientSecret)
		assert.Equal(t, "/env/vault", r.Vault.Dir)
	})

	t.Run("cli beats env", func(t *testing.T) {
		vault := "/cli/vault"
		r, err := Resolve(EnvOverrides{VaultDir: "/env/vault"}, CLIOverrides{ConfigPath: path, VaultDir: &vault}, dataDir)
		require.NoError(t, err)
		assert.Equal(t, "/cli/vault", r.Vault.Dir)
	})

	t.Run("cli config path beats env config path", func(t *testing.T) {
		r, err := Resolve(EnvOverrides{ConfigPath: "/does/not/exist.toml"}, CLIOverrides{ConfigPath: path}, dataDir)
		require.NoError(t, err)
		assert.Equal(t, path, r.Path)
	})
}

func TestResolve_TildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	r, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml")}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Notes"), r.Vault.Dir)
}

func TestResolve_RelativeVaultRejected(t *testing.T) {
	vault := "relative/notes"

	_, err := Resolve(EnvOverrides{}, CLIOverrides{ConfigPath: filepath.Join(t.TempDir(), "none.toml"), VaultDir: &vault}, t.TempDir())
	assert.ErrorContains(t, err, "vault.dir")
}

func TestSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Auth.ClientID = "cid"
	cfg.Auth.ClientSecret = "sec"

	s := cfg.Settings("refresh")
	assert.Equal(t, Settings{
		ClientID:     "cid",
		ClientSecret: "sec",
		RefreshToken: "refresh",
		SyncInterval: 30 * time.Second,
	}, s)
}
