package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/onedrive-notes/internal/browser"
	"github.com/tonimelisma/onedrive-notes/internal/vault"
)

// browseMenuSize is the number of menu rows promptui shows at once.
const browseMenuSize = 15

func newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse OneDrive interactively and import files as notes",
		Long: `Opens a folder browser at the drive root. Selecting a folder enters it;
selecting a file imports it into the vault as a new Markdown note.
Without a terminal, the root listing is printed once.`,
		Args: cobra.NoArgs,
		RunE: runBrowse,
	}
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := cmd.Context()

	s, err := newSession(resolvedCfg, logger)
	if err != nil {
		return err
	}

	initial := browser.NewState()
	initial.Locale = vaultLocale()

	sess := browser.NewSession(initial, s.client, s.client,
		vault.New(resolvedCfg.Vault.Dir, logger), notifyStderr, logger)

	st := sess.Dispatch(ctx, browser.Open{})

	if !isatty.IsTerminal(os.Stdin.Fd()) || !isatty.IsTerminal(os.Stdout.Fd()) {
		return printBrowserState(cmd.OutOrStdout(), st)
	}

	for {
		choices := menuChoices(st)

		labels := make([]string, len(choices))
		for i, c := range choices {
			labels[i] = c.label
		}

		prompt := promptui.Select{
			Label:        breadcrumbLine(st),
			Items:        labels,
			Size:         browseMenuSize,
			HideSelected: true,
		}

		idx, _, err := prompt.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("browse prompt: %w", err)
		}

		if choices[idx].action == nil {
			return nil
		}

		st = sess.Dispatch(ctx, choices[idx].action)
	}
}

// notifyStderr shows browser notifications; errors stay visible with --quiet.
func notifyStderr(level browser.Level, msg string) {
	if level == browser.LevelError {
		fmt.Fprintln(os.Stderr, msg)
		return
	}

	statusf("%s\n", msg)
}

// choice is one menu row and the action it dispatches; nil quits.
type choice struct {
	label  string
	action browser.Action
}

// menuChoices renders st as menu rows: navigation first, then entries in
// display order, then quit.
func menuChoices(st browser.State) []choice {
	var out []choice

	if len(st.Breadcrumbs) > 1 {
		out = append(out, choice{label: "..", action: browser.SelectParent{}})
	}

	for i := len(st.Breadcrumbs) - 3; i >= 0; i-- {
		out = append(out, choice{
			label:  "<- " + st.CrumbLabel(i),
			action: browser.SelectBreadcrumb{Index: i},
		})
	}

	if st.Phase == browser.PhaseError {
		out = append(out, choice{label: "Retry", action: browser.Open{}})
	}

	for _, e := range st.Entries {
		if e.IsFolder {
			out = append(out, choice{label: e.Name + "/", action: browser.SelectFolder{Name: e.Name}})
			continue
		}

		out = append(out, choice{
			label:  fmt.Sprintf("%s  (%s)", e.Name, browser.FormatSize(e.Size)),
			action: browser.SelectFile{Entry: e},
		})
	}

	return append(out, choice{label: "Quit"})
}

// breadcrumbLine renders the trail as "Root > Docs > 2024".
func breadcrumbLine(st browser.State) string {
	parts := make([]string, len(st.Breadcrumbs))
	for i := range st.Breadcrumbs {
		parts[i] = st.CrumbLabel(i)
	}

	return strings.Join(parts, " > ")
}

// printBrowserState is the non-interactive rendering of one listing.
func printBrowserState(w io.Writer, st browser.State) error {
	fmt.Fprintln(w, breadcrumbLine(st))

	if st.Phase == browser.PhaseError {
		return fmt.Errorf("listing %s: %w", st.Path(), st.Err)
	}

	if len(st.Entries) == 0 {
		fmt.Fprintln(w, "(empty folder)")
		return nil
	}

	printItemsTable(w, st.Entries)

	return nil
}
