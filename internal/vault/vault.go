// Package vault reads and writes Markdown notes in a local vault directory.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

// NoteExt is the file extension of every note.
const NoteExt = ".md"

const (
	notePerms = 0o644
	dirPerms  = 0o755
)

// ErrNoteExists is returned by CreateNote when a note with the same name exists.
var ErrNoteExists = errors.New("vault: note already exists")

// Vault is a directory of Markdown notes.
type Vault struct {
	dir    string
	logger *slog.Logger
}

// New returns a Vault rooted at dir. The directory is created on first write.
func New(dir string, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}

	return &Vault{dir: dir, logger: logger}
}

// Dir returns the vault root.
func (v *Vault) Dir() string {
	return v.dir
}

// NoteName derives a note name from a remote file name by dropping the last
// extension: "notes.txt" -> "notes", "a.tar.gz" -> "a.tar". Names without an
// extension, or consisting only of one (".bashrc"), are kept whole. The
// result is NFC-normalized.
func NoteName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}

	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}

	return norm.NFC.String(base)
}

// DecodeText converts downloaded bytes into note text: a leading UTF-8 byte
// order mark is dropped and invalid sequences become U+FFFD. Valid UTF-8
// passes through unchanged.
func DecodeText(data []byte) (string, error) {
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("vault: decoding content: %w", err)
	}

	return string(out), nil
}

// CreateNote writes content as a new note named after fileName and returns
// the note's path relative to the vault. It never overwrites: an existing
// note yields ErrNoteExists.
func (v *Vault) CreateNote(fileName string, content []byte) (string, error) {
	name := NoteName(fileName)
	if name == "" {
		return "", fmt.Errorf("vault: cannot derive a note name from %q", fileName)
	}

	text, err := DecodeText(content)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(v.dir, dirPerms); err != nil {
		return "", fmt.Errorf("vault: creating %s: %w", v.dir, err)
	}

	rel := name + NoteExt
	full := filepath.Join(v.dir, rel)

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, notePerms)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrNoteExists, rel)
	}

	if err != nil {
		return "", fmt.Errorf("vault: creating note %s: %w", rel, err)
	}

	if _, err := f.WriteString(text); err != nil {
		f.Close()
		_ = os.Remove(full)

		return "", fmt.Errorf("vault: writing note %s: %w", rel, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("vault: closing note %s: %w", rel, err)
	}

	v.logger.Info("note created",
		slog.String("note", rel),
		slog.Int("bytes", len(text)),
	)

	return rel, nil
}

// Note is a Markdown file found in the vault.
type Note struct {
	RelPath string // slash-separated, relative to the vault root, NFC
	AbsPath string
	Size    int64
}

// Notes walks the vault and returns every Markdown note. Hidden files and
// directories (leading ".") are skipped. A missing vault yields no notes.
func (v *Vault) Notes() ([]Note, error) {
	var notes []Note

	err := filepath.WalkDir(v.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == v.dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}

			return err
		}

		if p != v.dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() || !IsNote(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(v.dir, p)
		if err != nil {
			return err
		}

		notes = append(notes, Note{
			RelPath: norm.NFC.String(filepath.ToSlash(rel)),
			AbsPath: p,
			Size:    info.Size(),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: scanning %s: %w", v.dir, err)
	}

	return notes, nil
}

// IsNote reports whether name has the note extension.
func IsNote(name string) bool {
	return strings.EqualFold(filepath.Ext(name), NoteExt)
}
