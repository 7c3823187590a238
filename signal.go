package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// forceExit ends the process on a second signal. Tests replace it.
var forceExit = func() { os.Exit(1) }

// shutdownContext returns a context canceled by the first SIGINT/SIGTERM.
// A second signal calls forceExit, so a stuck upload can still be
// interrupted. The returned stop function releases the signal handler.
func shutdownContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
			cancel()
		case <-done:
			return
		case <-parent.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", slog.String("signal", sig.String()))
			forceExit()
		case <-done:
		case <-parent.Done():
		}
	}()

	stop := func() {
		select {
		case <-done:
		default:
			close(done)
		}

		cancel()
	}

	return ctx, stop
}
