package notesync

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultDebounce is how long the scheduler waits after the last nudge
// before starting a pass, so a burst of saves yields one upload.
const DefaultDebounce = 2 * time.Second

// Runner performs one sync pass.
type Runner interface {
	RunOnce(ctx context.Context) (Report, error)
}

// Scheduler runs passes every Interval and shortly after nudges. A failed
// pass is logged and never stops later ones.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	debounce time.Duration
	logger   *slog.Logger
}

// NewScheduler returns a Scheduler ticking every interval.
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		runner:   runner,
		interval: interval,
		debounce: DefaultDebounce,
		logger:   logger,
	}
}

// SetDebounce overrides DefaultDebounce.
func (s *Scheduler) SetDebounce(d time.Duration) {
	s.debounce = d
}

// Run performs a pass immediately, then on every tick and after every
// debounced burst of nudges, until ctx is canceled. nudges may be nil.
func (s *Scheduler) Run(ctx context.Context, nudges <-chan struct{}) error {
	s.logger.Info("sync scheduler started",
		slog.Duration("interval", s.interval),
		slog.Duration("debounce", s.debounce),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Stopped until the first nudge arms it.
	debounce := time.NewTimer(s.debounce)
	debounce.Stop()

	defer debounce.Stop()

	s.tick(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync scheduler stopped")
			return nil

		case <-ticker.C:
			s.tick(ctx, "interval")

		case <-nudges:
			debounce.Reset(s.debounce)

		case <-debounce.C:
			s.tick(ctx, "change")
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, reason string) {
	_, err := s.runner.RunOnce(ctx)

	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Info("sync pass skipped, another pass is running", slog.String("trigger", reason))
	case ctx.Err() != nil:
		s.logger.Debug("sync pass interrupted by shutdown", slog.String("trigger", reason))
	default:
		s.logger.Error("sync pass failed",
			slog.String("trigger", reason),
			slog.String("error", err.Error()),
		)
	}
}
