package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
// dataDir is where the token file, ledger and lock live; empty means
// DefaultDataDir().
func Resolve(env EnvOverrides, cli CLIOverrides, dataDir string) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.ClientID != "" {
		cfg.Auth.ClientID = env.ClientID
	}

	if env.ClientSecret != "" {
		cfg.Auth.ClientSecret = env.ClientSecret
	}

	if env.VaultDir != "" {
		cfg.Vault.Dir = env.VaultDir
	}

	if cli.VaultDir != nil {
		cfg.Vault.Dir = *cli.VaultDir
	}

	cfg.Vault.Dir = expandTilde(cfg.Vault.Dir)

	if err := ValidateResolved(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	return &Resolved{
		Config:     *cfg,
		Path:       cfgPath,
		DataDir:    dataDir,
		TokenPath:  filepath.Join(dataDir, tokenFileName),
		LedgerPath: filepath.Join(dataDir, ledgerFileName),
		LockPath:   filepath.Join(dataDir, lockFileName),
	}, nil
}
