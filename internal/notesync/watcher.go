package notesync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/tonimelisma/onedrive-notes/internal/vault"
)

// Watcher reports note changes under a vault directory.
type Watcher struct {
	root   string
	fsw    *fsnotify.Watcher
	logger *slog.Logger
}

// NewWatcher registers watches on root and every non-hidden directory below
// it. Changes made after NewWatcher returns are observed by Run.
func NewWatcher(root string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("notesync: creating watcher: %w", err)
	}

	w := &Watcher{root: root, fsw: fsw, logger: logger}

	if _, err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// Run forwards a nudge for every note created, written, renamed or removed
// until ctx is canceled, then releases the watcher. Nudges are dropped while
// one is already pending in the channel, so nudges should have capacity 1.
func (w *Watcher) Run(ctx context.Context, nudges chan<- struct{}) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}

			if w.handle(ev) {
				nudge(nudges)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}

			w.logger.Warn("vault watcher error", slog.String("error", err.Error()))
		}
	}
}

// handle reacts to one event and reports whether notes may have changed.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Notes written before the watch was added are found by the walk.
			found, err := w.addTree(ev.Name)
			if err != nil {
				w.logger.Warn("watching new directory",
					slog.String("path", ev.Name), slog.String("error", err.Error()))
			}

			return found
		}
	}

	if !vault.IsNote(name) {
		return false
	}

	w.logger.Debug("note changed", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))

	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
		ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}

// addTree watches dir and its non-hidden subdirectories and reports whether
// any note already exists below dir.
func (w *Watcher) addTree(dir string) (bool, error) {
	found := false

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if p != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.IsDir() {
			found = found || vault.IsNote(d.Name())
			return nil
		}

		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("notesync: watching %s: %w", p, err)
		}

		return nil
	})

	return found, err
}

func nudge(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
