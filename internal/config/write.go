package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// configFilePermissions keeps the file private because it may hold client_secret.
const configFilePermissions = 0o600

// configDirPermissions is the permission mode for the config directory.
const configDirPermissions = 0o755

// ErrConfigExists is returned by WriteNew when the target file already exists.
var ErrConfigExists = errors.New("config: file already exists")

const configHeader = `# onedrive-notes configuration
#
# auth.client_id / auth.client_secret identify your Azure app registration.
# The secret may instead be supplied via ONEDRIVE_NOTES_CLIENT_SECRET.
# sync.interval_seconds is how often "sync --watch" pushes changed notes.

`

// WriteNew encodes cfg as TOML and writes it to path atomically. It refuses
// to overwrite an existing file so user edits are never lost.
func WriteNew(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	slog.Info("writing config file", slog.String("path", path))

	return atomicWriteFile(path, buf.Bytes())
}

// atomicWriteFile writes data to a temp file in the same directory and then
// renames it over path, so readers never see a partial file.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.toml.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()

		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, configFilePermissions); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
