package config

// Default values for configuration options: layer 0 of the override chain.
const (
	defaultVaultDir        = "~/Notes"
	defaultLocale          = "en"
	defaultIntervalSeconds = 30
	defaultRemoteDir       = "/Notes"
	defaultLogLevel        = "info"
	defaultTimeout         = "30s"
)

// DefaultConfig returns a Config populated with all default values.
// It is the starting point for TOML decoding, so unset fields keep defaults.
func DefaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			Dir:    defaultVaultDir,
			Locale: defaultLocale,
		},
		Sync: SyncConfig{
			IntervalSeconds: defaultIntervalSeconds,
			RemoteDir:       defaultRemoteDir,
		},
		Logging: LoggingConfig{LogLevel: defaultLogLevel},
		Network: NetworkConfig{Timeout: defaultTimeout},
	}
}
