package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-notes/internal/graph"
	"github.com/tonimelisma/onedrive-notes/internal/ledger"
	"github.com/tonimelisma/onedrive-notes/internal/tokenfile"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize access to OneDrive",
		Long: `Prints the Microsoft sign-in URL. After consenting, paste the URL the
browser was redirected to (or just its code parameter).`,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved token",
		RunE:  runLogout,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show login state and recent sync runs",
		RunE:  runStatus,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	ac, err := authConfig(resolvedCfg)
	if err != nil {
		return err
	}

	flow := graph.NewOAuthFlow(ac, logger)

	// The prompt is always shown, even with --quiet.
	fmt.Fprintf(os.Stderr, "Open this URL and grant access:\n\n  %s\n\n", flow.AuthorizationURL())
	fmt.Fprint(os.Stderr, "Paste the redirect URL or code: ")

	line, err := readLine(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}

	code, err := graph.CodeFromRedirect(line)
	if err != nil {
		return err
	}

	ctx := withHTTPClient(cmd.Context(), newHTTPClient())

	tok, err := flow.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	if tok.RefreshToken == "" {
		return errors.New("no refresh token returned; make sure the app registration allows offline_access")
	}

	if err := tokenfile.Save(resolvedCfg.TokenPath, toTokenFile(tok)); err != nil {
		return err
	}

	logger.Info("login successful", "token_path", resolvedCfg.TokenPath)

	if name := accountName(ctx, logger); name != "" {
		statusf("Logged in as %s.\n", name)
		return nil
	}

	statusf("Login successful.\n")

	return nil
}

// accountName looks up the signed-in account for the login greeting. The
// lookup is best effort: the token is already saved.
func accountName(ctx context.Context, logger *slog.Logger) string {
	s, err := newSession(resolvedCfg, logger)
	if err != nil {
		return ""
	}

	u, err := s.client.Me(ctx)
	if err != nil {
		logger.Warn("fetching account profile", "error", err)
		return ""
	}

	if u.Email == "" {
		return u.DisplayName
	}

	if u.DisplayName == "" {
		return u.Email
	}

	return fmt.Sprintf("%s <%s>", u.DisplayName, u.Email)
}

// readLine returns the first line of r without its line ending.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	if err := tokenfile.Remove(resolvedCfg.TokenPath); err != nil {
		return err
	}

	logger.Info("logout successful", "token_path", resolvedCfg.TokenPath)
	statusf("Logged out.\n")

	return nil
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	LoggedIn     bool        `json:"logged_in"`
	TokenExpires *time.Time  `json:"token_expires,omitempty"`
	TokenExpired bool        `json:"token_expired"`
	Vault        string      `json:"vault"`
	RemoteDir    string      `json:"remote_dir"`
	SyncInterval string      `json:"sync_interval"`
	Runs         []statusRun `json:"recent_runs"`
}

type statusRun struct {
	ID       string     `json:"id"`
	Started  time.Time  `json:"started"`
	Finished *time.Time `json:"finished,omitempty"`
	Uploaded int        `json:"uploaded"`
	Failed   int        `json:"failed"`
	Error    string     `json:"error,omitempty"`
}

const statusRunLimit = 5

func runStatus(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	tf, err := tokenfile.Load(resolvedCfg.TokenPath)
	if err != nil {
		return err
	}

	var refresh string
	if tf != nil {
		refresh = tf.RefreshToken
	}

	settings := resolvedCfg.Settings(refresh)

	out := statusOutput{
		LoggedIn:     settings.RefreshToken != "",
		Vault:        resolvedCfg.Vault.Dir,
		RemoteDir:    resolvedCfg.Sync.RemoteDir,
		SyncInterval: settings.SyncInterval.String(),
		Runs:         []statusRun{},
	}

	if tf != nil && !tf.ExpiresAt.IsZero() {
		exp := tf.ExpiresAt
		out.TokenExpires = &exp
		out.TokenExpired = fromTokenFile(tf).Expired(time.Now())
	}

	runs, err := recentRuns(cmd.Context(), logger)
	if err != nil {
		return err
	}

	for _, r := range runs {
		sr := statusRun{ID: r.ID, Started: r.StartedAt, Uploaded: r.Uploaded, Failed: r.Failed, Error: r.Err}
		if !r.FinishedAt.IsZero() {
			fin := r.FinishedAt
			sr.Finished = &fin
		}

		out.Runs = append(out.Runs, sr)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), out)
	}

	printStatusText(cmd.OutOrStdout(), out)

	return nil
}

// recentRuns reads run history when a ledger exists; status never creates one.
func recentRuns(ctx context.Context, logger *slog.Logger) ([]ledger.Run, error) {
	if _, err := os.Stat(resolvedCfg.LedgerPath); errors.Is(err, os.ErrNotExist) {
		logger.Debug("no ledger yet", "path", resolvedCfg.LedgerPath)
		return nil, nil
	}

	l, err := ledger.Open(ctx, resolvedCfg.LedgerPath, logger)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	return l.RecentRuns(ctx, statusRunLimit)
}

func printStatusText(w io.Writer, out statusOutput) {
	now := time.Now()

	switch {
	case !out.LoggedIn:
		fmt.Fprintln(w, "Account: not logged in")
	case out.TokenExpires == nil:
		fmt.Fprintln(w, "Account: logged in")
	case out.TokenExpired:
		fmt.Fprintf(w, "Account: logged in (access token expired %s, refreshes on next use)\n",
			formatTime(*out.TokenExpires, now))
	default:
		fmt.Fprintf(w, "Account: logged in (access token valid until %s)\n", formatTime(*out.TokenExpires, now))
	}

	fmt.Fprintf(w, "Vault:   %s\n", out.Vault)
	fmt.Fprintf(w, "Remote:  %s (every %s)\n", out.RemoteDir, out.SyncInterval)

	if len(out.Runs) == 0 {
		fmt.Fprintln(w, "\nNo sync runs yet.")
		return
	}

	fmt.Fprintln(w)

	rows := make([][]string, 0, len(out.Runs))
	for _, r := range out.Runs {
		finished := "running"
		if r.Finished != nil {
			finished = formatTime(*r.Finished, now)
		}

		rows = append(rows, []string{
			formatTime(r.Started, now), finished,
			fmt.Sprint(r.Uploaded), fmt.Sprint(r.Failed), r.Error,
		})
	}

	printTable(w, []string{"STARTED", "FINISHED", "UPLOADED", "FAILED", "ERROR"}, rows)
}
