// Package tokenfile reads and writes the OAuth token file. It is a leaf
// package: the CLI converts between File and graph.Token.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the data directory.
const DirPerms = 0o700

// File is the on-disk format of the token file.
type File struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// Load reads a saved token file. Returns (nil, nil) if the file does not exist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.RefreshToken == "" {
		return nil, fmt.Errorf("tokenfile: %s has no refresh token (re-login required)", path)
	}

	return &tf, nil
}

// Save writes the token file atomically (temp file + fsync + rename) with
// 0600 permissions. SavedAt is set to the current time. Never logs token values.
func Save(path string, tf File) error {
	tf.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, err)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	if err := writeAndSync(tmp, data); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if err := f.Chmod(FilePerms); err != nil {
		f.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	return nil
}

// Remove deletes the token file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("tokenfile: removing %s: %w", path, err)
	}

	return nil
}
