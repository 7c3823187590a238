package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Validation range constants.
const (
	minIntervalSeconds = 5
	minTimeout         = 1 * time.Second
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateVault(&cfg.Vault)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints that only make sense after env and CLI
// overrides have been applied.
func ValidateResolved(cfg *Config) error {
	var errs []error

	if cfg.Vault.Dir == "" {
		errs = append(errs, errors.New("vault.dir: must not be empty"))
	} else if !filepath.IsAbs(cfg.Vault.Dir) {
		errs = append(errs, fmt.Errorf("vault.dir: must be absolute after expansion, got %q", cfg.Vault.Dir))
	}

	return errors.Join(errs...)
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if a.RedirectURI != "" && !strings.Contains(a.RedirectURI, "://") {
		errs = append(errs, fmt.Errorf("auth.redirect_uri: %q is not an absolute URI", a.RedirectURI))
	}

	return errs
}

func validateVault(v *VaultConfig) []error {
	var errs []error

	if _, err := language.Parse(v.Locale); err != nil {
		errs = append(errs, fmt.Errorf("vault.locale: %q is not a valid language tag: %w", v.Locale, err))
	}

	return errs
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	if s.IntervalSeconds < minIntervalSeconds {
		errs = append(errs, fmt.Errorf("sync.interval_seconds: must be at least %d, got %d",
			minIntervalSeconds, s.IntervalSeconds))
	}

	if !strings.HasPrefix(s.RemoteDir, "/") {
		errs = append(errs, fmt.Errorf("sync.remote_dir: must start with \"/\", got %q", s.RemoteDir))
	} else if filepath.ToSlash(s.RemoteDir) == "/" {
		errs = append(errs, errors.New("sync.remote_dir: must not be the drive root"))
	}

	return errs
}

func validateLogging(l *LoggingConfig) []error {
	if !validLogLevels[l.LogLevel] {
		return []error{fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", l.LogLevel)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	d, err := time.ParseDuration(n.Timeout)
	if err != nil {
		return []error{fmt.Errorf("network.timeout: %w", err)}
	}

	if d < minTimeout {
		return []error{fmt.Errorf("network.timeout: must be at least %s, got %s", minTimeout, d)}
	}

	return nil
}
