package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/onedrive-notes/internal/ledger"
	"github.com/tonimelisma/onedrive-notes/internal/notesync"
	"github.com/tonimelisma/onedrive-notes/internal/vault"
)

const (
	dataDirPerms  = 0o700
	vaultDirPerms = 0o755
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upload changed vault notes to OneDrive",
		Long: `Uploads every note whose content changed since its last upload to
sync.remote_dir. With --watch (or sync.watch = true) it keeps running,
syncing every sync.interval_seconds and shortly after notes are saved.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}

	cmd.Flags().Bool("watch", false, "keep running and sync periodically and on changes")

	return cmd
}

// syncReportJSON is the JSON schema for `sync --json`.
type syncReportJSON struct {
	RunID     string `json:"run_id"`
	Scanned   int    `json:"scanned"`
	Uploaded  int    `json:"uploaded"`
	Unchanged int    `json:"unchanged"`
	Failed    int    `json:"failed"`
	Forgotten int    `json:"forgotten"`
	Duration  string `json:"duration"`
}

func runSync(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	watch := resolvedCfg.Sync.Watch
	if cmd.Flags().Changed("watch") {
		w, err := cmd.Flags().GetBool("watch")
		if err != nil {
			return err
		}

		watch = w
	}

	s, err := newSession(resolvedCfg, logger)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(resolvedCfg.DataDir, dataDirPerms); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	vaultDir := resolvedCfg.Vault.Dir
	if err := os.MkdirAll(vaultDir, vaultDirPerms); err != nil {
		return fmt.Errorf("creating vault directory: %w", err)
	}

	ctx, stop := shutdownContext(cmd.Context(), logger)
	defer stop()

	store, err := ledger.Open(ctx, resolvedCfg.LedgerPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	engine := notesync.NewEngine(notesync.EngineConfig{
		Notes:     vault.New(vaultDir, logger),
		Uploader:  s.client,
		Store:     store,
		RemoteDir: resolvedCfg.Sync.RemoteDir,
		LockPath:  resolvedCfg.LockPath,
		Logger:    logger,
	})

	if !watch {
		report, err := engine.RunOnce(ctx)
		if err != nil {
			return err
		}

		return printSyncReport(cmd.OutOrStdout(), report)
	}

	watcher, err := notesync.NewWatcher(vaultDir, logger)
	if err != nil {
		return err
	}

	nudges := make(chan struct{}, 1)
	scheduler := notesync.NewScheduler(engine, resolvedCfg.SyncInterval(), logger)

	statusf("Syncing %s to %s every %s. Press Ctrl-C to stop.\n",
		vaultDir, resolvedCfg.Sync.RemoteDir, resolvedCfg.SyncInterval())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(gctx, nudges) })
	g.Go(func() error { return watcher.Run(gctx, nudges) })

	return g.Wait()
}

func printSyncReport(w io.Writer, r notesync.Report) error {
	if flagJSON {
		return printJSON(w, syncReportJSON{
			RunID:     r.RunID,
			Scanned:   r.Scanned,
			Uploaded:  r.Uploaded,
			Unchanged: r.Unchanged,
			Failed:    r.Failed,
			Forgotten: r.Forgotten,
			Duration:  r.Duration.String(),
		})
	}

	statusf("Sync complete: %d uploaded, %d unchanged, %d failed (%d notes scanned)\n",
		r.Uploaded, r.Unchanged, r.Failed, r.Scanned)

	if r.Failed > 0 {
		return fmt.Errorf("%d notes failed to upload; see the log for details", r.Failed)
	}

	return nil
}
