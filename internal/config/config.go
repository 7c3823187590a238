// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for onedrive-notes. Values resolve
// through a four-layer chain: defaults -> config file -> environment -> CLI flags.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Auth    AuthConfig    `toml:"auth"    json:"auth"`
	Vault   VaultConfig   `toml:"vault"   json:"vault"`
	Sync    SyncConfig    `toml:"sync"    json:"sync"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Network NetworkConfig `toml:"network" json:"network"`
}

// AuthConfig identifies the application registration used for OAuth.
type AuthConfig struct {
	ClientID     string `toml:"client_id"     json:"client_id"`
	ClientSecret string `toml:"client_secret" json:"-"`
	RedirectURI  string `toml:"redirect_uri"  json:"redirect_uri"`
}

// VaultConfig locates the local note vault.
type VaultConfig struct {
	Dir    string `toml:"dir"    json:"dir"`
	Locale string `toml:"locale" json:"locale"` // BCP 47 tag for name collation
}

// SyncConfig controls the periodic upload of vault notes.
type SyncConfig struct {
	IntervalSeconds int    `toml:"interval_seconds" json:"interval_seconds"`
	RemoteDir       string `toml:"remote_dir"       json:"remote_dir"`
	Watch           bool   `toml:"watch"            json:"watch"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	LogLevel string `toml:"log_level" json:"log_level"`
}

// NetworkConfig controls HTTP client behavior.
type NetworkConfig struct {
	Timeout string `toml:"timeout" json:"timeout"`
}

// Settings is the persisted state the application needs to run: the app
// registration, the long-lived refresh token, and the sync cadence.
type Settings struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	SyncInterval time.Duration
}

// SyncInterval returns the configured interval as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

// HTTPTimeout returns the parsed network timeout. Validation guarantees the
// value parses; the default is returned defensively otherwise.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Network.Timeout)
	if err != nil {
		d, _ = time.ParseDuration(defaultTimeout)
	}

	return d
}

// Settings joins the config with the stored refresh token.
func (c *Config) Settings(refreshToken string) Settings {
	return Settings{
		ClientID:     c.Auth.ClientID,
		ClientSecret: c.Auth.ClientSecret,
		RefreshToken: refreshToken,
		SyncInterval: c.SyncInterval(),
	}
}

// CLIOverrides holds values from CLI flags. Pointer fields distinguish
// "not specified" (nil) from "explicitly set".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	VaultDir   *string // --vault flag
}

// Resolved is the effective configuration plus the paths derived from it.
type Resolved struct {
	Config
	Path       string `json:"config_path"` // config file path (may not exist)
	DataDir    string `json:"data_dir"`
	TokenPath  string `json:"token_path"`
	LedgerPath string `json:"ledger_path"`
	LockPath   string `json:"lock_path"`
}
