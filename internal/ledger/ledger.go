// Package ledger records which notes have been uploaded, and with what
// content hash, in a local SQLite database. It also keeps a history of sync
// runs for "status" and debugging.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	sqlSelectNotes = `SELECT path, hash, size, remote_id, uploaded_at FROM notes`

	sqlUpsertNote = `INSERT INTO notes (path, hash, size, remote_id, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
		 hash = excluded.hash,
		 size = excluded.size,
		 remote_id = excluded.remote_id,
		 uploaded_at = excluded.uploaded_at`

	sqlDeleteNote = `DELETE FROM notes WHERE path = ?`

	sqlInsertRun = `INSERT INTO sync_runs (id, started_at) VALUES (?, ?)`

	sqlFinishRun = `UPDATE sync_runs
		SET finished_at = ?, uploaded = ?, failed = ?, error = ?
		WHERE id = ?`

	sqlRecentRuns = `SELECT id, started_at, finished_at, uploaded, failed, error
		FROM sync_runs ORDER BY started_at DESC LIMIT ?`
)

// NoteRecord is the last successful upload of one note.
type NoteRecord struct {
	Path       string // vault-relative, slash-separated
	Hash       string // hex SHA-256 of the uploaded bytes
	Size       int64
	RemoteID   string
	UploadedAt time.Time
}

// Run is one sync pass. FinishedAt is zero while the run is in flight.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Uploaded   int
	Failed     int
	Err        string
}

// Ledger is the sync state database. It is safe for concurrent use; writes
// are serialized on a single connection.
type Ledger struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the database at dbPath and applies
// migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("ledger opened", slog.String("db_path", dbPath))

	return &Ledger{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close releases the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Notes returns every recorded note keyed by path.
func (l *Ledger) Notes(ctx context.Context) (map[string]NoteRecord, error) {
	rows, err := l.db.QueryContext(ctx, sqlSelectNotes)
	if err != nil {
		return nil, fmt.Errorf("ledger: loading notes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]NoteRecord)

	for rows.Next() {
		var (
			rec        NoteRecord
			remoteID   sql.NullString
			uploadedAt int64
		)

		if err := rows.Scan(&rec.Path, &rec.Hash, &rec.Size, &remoteID, &uploadedAt); err != nil {
			return nil, fmt.Errorf("ledger: scanning note: %w", err)
		}

		rec.RemoteID = remoteID.String
		rec.UploadedAt = time.Unix(0, uploadedAt)
		out[rec.Path] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating notes: %w", err)
	}

	return out, nil
}

// RecordUpload stores rec, replacing any earlier record for the same path.
// A zero UploadedAt is stamped with the current time.
func (l *Ledger) RecordUpload(ctx context.Context, rec NoteRecord) error {
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = l.nowFunc()
	}

	_, err := l.db.ExecContext(ctx, sqlUpsertNote,
		rec.Path, rec.Hash, rec.Size, nullString(rec.RemoteID), rec.UploadedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("ledger: recording %s: %w", rec.Path, err)
	}

	return nil
}

// Forget drops the record for path. Forgetting an unknown path is not an error.
func (l *Ledger) Forget(ctx context.Context, path string) error {
	if _, err := l.db.ExecContext(ctx, sqlDeleteNote, path); err != nil {
		return fmt.Errorf("ledger: forgetting %s: %w", path, err)
	}

	return nil
}

// StartRun inserts a new in-flight run with a fresh id.
func (l *Ledger) StartRun(ctx context.Context) (Run, error) {
	run := Run{ID: uuid.NewString(), StartedAt: l.nowFunc()}

	if _, err := l.db.ExecContext(ctx, sqlInsertRun, run.ID, run.StartedAt.UnixNano()); err != nil {
		return Run{}, fmt.Errorf("ledger: starting run: %w", err)
	}

	return run, nil
}

// FinishRun stores the outcome of run. A zero FinishedAt is stamped with the
// current time.
func (l *Ledger) FinishRun(ctx context.Context, run Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = l.nowFunc()
	}

	res, err := l.db.ExecContext(ctx, sqlFinishRun,
		run.FinishedAt.UnixNano(), run.Uploaded, run.Failed, nullString(run.Err), run.ID)
	if err != nil {
		return fmt.Errorf("ledger: finishing run %s: %w", run.ID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ledger: finishing run %s: %w", run.ID, ErrUnknownRun)
	}

	return nil
}

// ErrUnknownRun is returned by FinishRun for an id StartRun never issued.
var ErrUnknownRun = errors.New("ledger: unknown run")

// RecentRuns returns up to limit runs, newest first.
func (l *Ledger) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: loading runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			run        Run
			startedAt  int64
			finishedAt sql.NullInt64
			errText    sql.NullString
		)

		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Uploaded, &run.Failed, &errText); err != nil {
			return nil, fmt.Errorf("ledger: scanning run: %w", err)
		}

		run.StartedAt = time.Unix(0, startedAt)
		if finishedAt.Valid {
			run.FinishedAt = time.Unix(0, finishedAt.Int64)
		}

		run.Err = errText.String
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating runs: %w", err)
	}

	return runs, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: s, Valid: true}
}
