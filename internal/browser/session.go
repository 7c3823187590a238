package browser

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/onedrive-notes/internal/graph"
)

// Lister lists a remote folder.
type Lister interface {
	ListChildren(ctx context.Context, remotePath string) ([]graph.Item, error)
}

// Downloader fetches a remote file's content.
type Downloader interface {
	Download(ctx context.Context, itemID string) ([]byte, error)
}

// NoteCreator turns downloaded content into a new note.
type NoteCreator interface {
	CreateNote(fileName string, content []byte) (string, error)
}

// Notifier shows a message to the user.
type Notifier func(level Level, message string)

// Session drives Reduce: it owns the current State, runs each effect and
// dispatches the resulting action until no effect remains. It handles one
// action at a time and is not safe for concurrent use.
type Session struct {
	state      State
	lister     Lister
	downloader Downloader
	notes      NoteCreator
	notify     Notifier
	logger     *slog.Logger
}

// NewSession returns a Session starting from initial. A nil notify drops
// notifications (they are still logged).
func NewSession(initial State, lister Lister, downloader Downloader, notes NoteCreator,
	notify Notifier, logger *slog.Logger,
) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	if notify == nil {
		notify = func(Level, string) {}
	}

	return &Session{
		state:      initial,
		lister:     lister,
		downloader: downloader,
		notes:      notes,
		notify:     notify,
		logger:     logger,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Dispatch applies a and every follow-up action produced by its effects,
// then returns the settled state. Failures never escape: they become
// ListingFailed or ImportFailed actions and from there notifications.
func (s *Session) Dispatch(ctx context.Context, a Action) State {
	for a != nil {
		var eff Effect

		s.state, eff = Reduce(s.state, a)
		a = s.run(ctx, eff)
	}

	return s.state
}

// run executes eff and returns the action reporting its outcome, if any.
func (s *Session) run(ctx context.Context, eff Effect) Action {
	switch eff := eff.(type) {
	case FetchListing:
		s.logger.Debug("listing folder", slog.String("path", eff.Path))

		entries, err := s.lister.ListChildren(ctx, eff.Path)
		if err != nil {
			s.logger.Warn("listing failed",
				slog.String("path", eff.Path),
				slog.String("error", err.Error()),
			)

			return ListingFailed{Seq: eff.Seq, Err: err}
		}

		return ListingLoaded{Seq: eff.Seq, Entries: entries}

	case ImportFile:
		return s.importFile(ctx, eff.Entry)

	case Notify:
		s.notify(eff.Level, eff.Message)
	}

	return nil
}

func (s *Session) importFile(ctx context.Context, entry graph.Item) Action {
	data, err := s.downloader.Download(ctx, entry.ID)
	if err != nil {
		s.logger.Error("downloading file for import",
			slog.String("name", entry.Name),
			slog.String("id", entry.ID),
			slog.String("error", err.Error()),
		)

		return ImportFailed{Name: entry.Name, Err: err}
	}

	note, err := s.notes.CreateNote(entry.Name, data)
	if err != nil {
		s.logger.Error("creating note",
			slog.String("name", entry.Name),
			slog.String("error", err.Error()),
		)

		return ImportFailed{Name: entry.Name, Err: err}
	}

	s.logger.Info("file imported",
		slog.String("name", entry.Name),
		slog.String("note", note),
	)

	return ImportSucceeded{Name: entry.Name}
}
