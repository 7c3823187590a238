package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/tonimelisma/onedrive-notes/internal/browser"
	"github.com/tonimelisma/onedrive-notes/internal/graph"
	"github.com/tonimelisma/onedrive-notes/internal/vault"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a OneDrive folder",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <item-id>",
		Short: "Show metadata for a OneDrive item",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <item-id> [local-path]",
		Short: "Download a OneDrive file, or import it as a note with --note",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runGet,
	}

	cmd.Flags().Bool("note", false, "import into the vault as a Markdown note")

	return cmd
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-file> <remote-path>",
		Short: "Upload a local file to OneDrive, replacing any existing file",
		Args:  cobra.ExactArgs(2),
		RunE:  runPut,
	}
}

// vaultLocale parses vault.locale; validation has already accepted it.
func vaultLocale() language.Tag {
	tag, err := language.Parse(resolvedCfg.Vault.Locale)
	if err != nil {
		return language.English
	}

	return tag
}

// itemJSON is the JSON schema for ls/stat output.
type itemJSON struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Folder     bool      `json:"folder"`
	Size       int64     `json:"size"`
	ChildCount *int      `json:"child_count,omitempty"`
	MimeType   string    `json:"mime_type,omitempty"`
	Parent     string    `json:"parent,omitempty"`
	Modified   time.Time `json:"modified,omitzero"`
}

func toItemJSON(it graph.Item) itemJSON {
	out := itemJSON{
		ID:       it.ID,
		Name:     it.Name,
		Folder:   it.IsFolder,
		Size:     it.Size,
		MimeType: it.MimeType,
		Parent:   it.ParentPath,
		Modified: it.ModifiedAt,
	}

	if it.IsFolder && it.ChildCount != graph.ChildCountUnknown {
		n := it.ChildCount
		out.ChildCount = &n
	}

	return out
}

func runLs(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	remotePath := "/"
	if len(args) > 0 {
		remotePath = args[0]
	}

	remotePath = graph.CleanPath(remotePath)

	s, err := newSession(resolvedCfg, logger)
	if err != nil {
		return err
	}

	items, err := s.client.ListChildren(cmd.Context(), remotePath)
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return fmt.Errorf("%s: no such folder", remotePath)
		}

		return err
	}

	items = browser.SortEntries(items, vaultLocale())

	if flagJSON {
		out := make([]itemJSON, 0, len(items))
		for _, it := range items {
			out = append(out, toItemJSON(it))
		}

		return printJSON(cmd.OutOrStdout(), out)
	}

	printItemsTable(cmd.OutOrStdout(), items)

	return nil
}

func printItemsTable(w io.Writer, items []graph.Item) {
	now := time.Now()
	rows := make([][]string, 0, len(items))

	for _, it := range items {
		name, size := it.Name, browser.FormatSize(it.Size)
		if it.IsFolder {
			name += "/"
			size = "-"
		}

		rows = append(rows, []string{name, size, formatTime(it.ModifiedAt, now), it.ID})
	}

	printTable(w, []string{"NAME", "SIZE", "MODIFIED", "ID"}, rows)
}

func runStat(cmd *cobra.Command, args []string) error {
	s, err := newSession(resolvedCfg, buildLogger())
	if err != nil {
		return err
	}

	item, err := s.client.GetMetadata(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if flagJSON {
		return printJSON(w, toItemJSON(*item))
	}

	kind := "file"
	if item.IsFolder {
		kind = "folder"
	}

	fmt.Fprintf(w, "Name:     %s\n", item.Name)
	fmt.Fprintf(w, "ID:       %s\n", item.ID)
	fmt.Fprintf(w, "Type:     %s\n", kind)
	fmt.Fprintf(w, "Size:     %s (%d bytes)\n", browser.FormatSize(item.Size), item.Size)

	if item.ParentPath != "" {
		fmt.Fprintf(w, "Parent:   %s\n", item.ParentPath)
	}

	if item.MimeType != "" {
		fmt.Fprintf(w, "MIME:     %s\n", item.MimeType)
	}

	fmt.Fprintf(w, "Modified: %s\n", formatTime(item.ModifiedAt, time.Now()))

	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	s, err := newSession(resolvedCfg, logger)
	if err != nil {
		return err
	}

	item, err := s.client.GetMetadata(ctx, args[0])
	if err != nil {
		return err
	}

	if item.IsFolder {
		return fmt.Errorf("%s is a folder", item.Name)
	}

	asNote, err := cmd.Flags().GetBool("note")
	if err != nil {
		return err
	}

	if asNote {
		return importNote(ctx, s, item, logger)
	}

	dest := item.Name
	if len(args) > 1 {
		dest = args[1]
	}

	return downloadToFile(ctx, s, item, dest, logger)
}

// importNote downloads item and stores it as a new vault note.
func importNote(ctx context.Context, s *session, item *graph.Item, logger *slog.Logger) error {
	data, err := s.client.Download(ctx, item.ID)
	if err != nil {
		return err
	}

	rel, err := vault.New(resolvedCfg.Vault.Dir, logger).CreateNote(item.Name, data)
	if err != nil {
		return err
	}

	statusf("Imported %s as %s\n", item.Name, filepath.Join(resolvedCfg.Vault.Dir, rel))

	return nil
}

// downloadToFile streams item into dest through a temp file, so an
// interrupted download never leaves a truncated file behind.
func downloadToFile(ctx context.Context, s *session, item *graph.Item, dest string, logger *slog.Logger) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".onedrive-notes-*.partial")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	bar := newProgressBar(item.Size, "downloading "+item.Name)

	n, err := s.client.DownloadTo(ctx, item.ID, io.MultiWriter(tmp, bar))
	_ = bar.Finish()

	if err != nil {
		tmp.Close()
		cleanup()

		return err
	}

	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		cleanup()
		return fmt.Errorf("moving download into place: %w", err)
	}

	logger.Info("downloaded", slog.String("id", item.ID), slog.String("dest", dest), slog.Int64("bytes", n))
	statusf("Downloaded %s (%s)\n", dest, browser.FormatSize(n))

	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	localPath, remotePath := args[0], graph.CleanPath(args[1])

	// A trailing slash names a folder: keep the local file name.
	if strings.HasSuffix(args[1], "/") {
		remotePath = path.Join(remotePath, filepath.Base(localPath))
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory", localPath)
	}

	s, err := newSession(resolvedCfg, logger)
	if err != nil {
		return err
	}

	bar := newProgressBar(info.Size(), "uploading "+filepath.Base(localPath))
	r := progressbar.NewReader(f, bar)

	item, err := s.client.UploadFrom(cmd.Context(), remotePath, &r, info.Size())
	_ = bar.Finish()

	if err != nil {
		return err
	}

	logger.Info("uploaded", slog.String("remote", remotePath), slog.String("id", item.ID))
	statusf("Uploaded %s to %s\n", localPath, remotePath)

	return nil
}

// newProgressBar returns a byte progress bar on stderr, silent with --quiet
// or --json.
func newProgressBar(size int64, description string) *progressbar.ProgressBar {
	if flagQuiet || flagJSON {
		return progressbar.DefaultBytesSilent(size, description)
	}

	return progressbar.NewOptions64(size,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
