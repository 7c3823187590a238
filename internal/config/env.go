package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig       = "ONEDRIVE_NOTES_CONFIG"
	EnvClientID     = "ONEDRIVE_NOTES_CLIENT_ID"
	EnvClientSecret = "ONEDRIVE_NOTES_CLIENT_SECRET"
	EnvVault        = "ONEDRIVE_NOTES_VAULT"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath   string // ONEDRIVE_NOTES_CONFIG: override config file path
	ClientID     string // ONEDRIVE_NOTES_CLIENT_ID
	ClientSecret string // ONEDRIVE_NOTES_CLIENT_SECRET: keeps the secret out of the file
	VaultDir     string // ONEDRIVE_NOTES_VAULT
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		VaultDir:     os.Getenv(EnvVault),
	}
}
