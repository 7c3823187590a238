// Package notesync pushes vault notes to OneDrive. Engine performs one pass
// (hash every note, upload the changed ones, record them in the ledger),
// Scheduler repeats passes on a timer and on watcher nudges, and Watcher
// turns filesystem events under the vault into nudges.
package notesync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/onedrive-notes/internal/graph"
	"github.com/tonimelisma/onedrive-notes/internal/ledger"
	"github.com/tonimelisma/onedrive-notes/internal/vault"
)

// ErrSyncInProgress is returned by RunOnce when another pass, in this or any
// other process, holds the sync lock.
var ErrSyncInProgress = errors.New("notesync: sync already in progress")

// Uploader stores a file at a remote path, overwriting any existing file.
type Uploader interface {
	Upload(ctx context.Context, remotePath string, data []byte) (*graph.Item, error)
}

// NoteSource enumerates local notes.
type NoteSource interface {
	Notes() ([]vault.Note, error)
}

// Store persists upload records and run history.
type Store interface {
	Notes(ctx context.Context) (map[string]ledger.NoteRecord, error)
	RecordUpload(ctx context.Context, rec ledger.NoteRecord) error
	Forget(ctx context.Context, path string) error
	StartRun(ctx context.Context) (ledger.Run, error)
	FinishRun(ctx context.Context, run ledger.Run) error
}

// Report summarizes one pass.
type Report struct {
	RunID     string
	Scanned   int
	Uploaded  int
	Unchanged int
	Failed    int
	Forgotten int
	Duration  time.Duration
}

// Engine runs sync passes.
type Engine struct {
	notes     NoteSource
	uploader  Uploader
	store     Store
	remoteDir string
	lockPath  string
	logger    *slog.Logger
	nowFunc   func() time.Time
}

// EngineConfig collects the collaborators of an Engine.
type EngineConfig struct {
	Notes     NoteSource
	Uploader  Uploader
	Store     Store
	RemoteDir string // absolute remote folder notes are mirrored into
	LockPath  string // file guarding against concurrent passes
	Logger    *slog.Logger
}

// NewEngine returns an Engine for cfg.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		notes:     cfg.Notes,
		uploader:  cfg.Uploader,
		store:     cfg.Store,
		remoteDir: graph.CleanPath(cfg.RemoteDir),
		lockPath:  cfg.LockPath,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// RemotePath maps a vault-relative note path to its remote location.
func (e *Engine) RemotePath(rel string) string {
	return norm.NFC.String(path.Join(e.remoteDir, rel))
}

// RunOnce performs a single pass. Failures of individual notes are counted
// in the report and logged; the pass goes on with the next note. An
// authentication failure or cancellation ends the pass early with an error.
func (e *Engine) RunOnce(ctx context.Context) (Report, error) {
	lock := flock.New(e.lockPath)

	locked, err := lock.TryLock()
	if err != nil {
		return Report{}, fmt.Errorf("notesync: acquiring lock %s: %w", e.lockPath, err)
	}

	if !locked {
		return Report{}, ErrSyncInProgress
	}

	defer func() {
		if err := lock.Unlock(); err != nil {
			e.logger.Warn("releasing sync lock", slog.String("error", err.Error()))
		}
	}()

	run, err := e.store.StartRun(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("notesync: %w", err)
	}

	start := e.nowFunc()
	report := Report{RunID: run.ID}

	passErr := e.pass(ctx, &report)
	report.Duration = e.nowFunc().Sub(start)

	run.Uploaded = report.Uploaded
	run.Failed = report.Failed

	switch {
	case passErr != nil:
		run.Err = passErr.Error()
	case report.Failed > 0:
		run.Err = fmt.Sprintf("%d notes failed", report.Failed)
	}

	// The run row is closed even when ctx was canceled mid-pass.
	finishErr := e.store.FinishRun(context.WithoutCancel(ctx), run)
	if finishErr != nil {
		finishErr = fmt.Errorf("notesync: %w", finishErr)
	}

	e.logger.Info("sync pass finished",
		slog.String("run_id", report.RunID),
		slog.Int("scanned", report.Scanned),
		slog.Int("uploaded", report.Uploaded),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", report.Duration),
	)

	return report, errors.Join(passErr, finishErr)
}

func (e *Engine) pass(ctx context.Context, report *Report) error {
	notes, err := e.notes.Notes()
	if err != nil {
		return fmt.Errorf("notesync: listing notes: %w", err)
	}

	records, err := e.store.Notes(ctx)
	if err != nil {
		return fmt.Errorf("notesync: %w", err)
	}

	seen := make(map[string]bool, len(notes))

	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("notesync: pass canceled: %w", err)
		}

		seen[n.RelPath] = true
		report.Scanned++

		uploaded, err := e.syncNote(ctx, n, records)

		var authErr *graph.AuthError

		switch {
		case errors.As(err, &authErr):
			report.Failed++
			return fmt.Errorf("notesync: uploading %s: %w", n.RelPath, err)
		case err != nil && ctx.Err() != nil:
			report.Failed++
			return fmt.Errorf("notesync: pass canceled: %w", ctx.Err())
		case err != nil:
			report.Failed++
			e.logger.Warn("note sync failed",
				slog.String("note", n.RelPath),
				slog.String("error", err.Error()),
			)
		case uploaded:
			report.Uploaded++
		default:
			report.Unchanged++
		}
	}

	// Records of notes deleted locally are dropped so a recreated note is
	// uploaded again. The remote copy is left alone.
	for rel := range records {
		if seen[rel] {
			continue
		}

		if err := e.store.Forget(ctx, rel); err != nil {
			e.logger.Warn("forgetting removed note", slog.String("note", rel), slog.String("error", err.Error()))
			continue
		}

		report.Forgotten++
	}

	return nil
}

// syncNote uploads n when its content differs from the recorded upload.
func (e *Engine) syncNote(ctx context.Context, n vault.Note, records map[string]ledger.NoteRecord) (bool, error) {
	data, err := os.ReadFile(n.AbsPath)
	if err != nil {
		return false, fmt.Errorf("reading note: %w", err)
	}

	hash := hashContent(data)

	if rec, ok := records[n.RelPath]; ok && rec.Hash == hash {
		return false, nil
	}

	remote := e.RemotePath(n.RelPath)

	item, err := e.uploader.Upload(ctx, remote, data)
	if err != nil {
		return false, err
	}

	e.logger.Debug("note uploaded",
		slog.String("note", n.RelPath),
		slog.String("remote", remote),
		slog.Int("bytes", len(data)),
	)

	rec := ledger.NoteRecord{
		Path:       n.RelPath,
		Hash:       hash,
		Size:       int64(len(data)),
		UploadedAt: e.nowFunc(),
	}
	if item != nil {
		rec.RemoteID = item.ID
	}

	if err := e.store.RecordUpload(ctx, rec); err != nil {
		return false, err
	}

	return true, nil
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
