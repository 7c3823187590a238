package browser

import (
	"fmt"
	"slices"
	"strings"
)

// Notification texts shown to the user.
const (
	msgLoadFailed = "Failed to load OneDrive files"
	msgImported   = `File "%s" imported successfully`
	msgImportFail = `Failed to import file "%s"`
)

// Reduce applies a to s and returns the next state together with the effect
// the driver must run, or nil. It is pure: no I/O, no clock, no mutation of s.
func Reduce(s State, a Action) (State, Effect) {
	switch a := a.(type) {
	case Open:
		return fetch(s, s.Breadcrumbs)

	case SelectFolder:
		if a.Name == "" || strings.Contains(a.Name, "/") {
			return s, nil
		}

		crumbs := append(slices.Clone(s.Breadcrumbs), a.Name)

		return fetch(s, crumbs)

	case SelectParent:
		if len(s.Breadcrumbs) <= 1 {
			return s, nil
		}

		return fetch(s, slices.Clone(s.Breadcrumbs[:len(s.Breadcrumbs)-1]))

	case SelectBreadcrumb:
		if a.Index < 0 || a.Index >= len(s.Breadcrumbs) {
			return s, nil
		}

		return fetch(s, slices.Clone(s.Breadcrumbs[:a.Index+1]))

	case SelectFile:
		if a.Entry.IsFolder {
			return Reduce(s, SelectFolder{Name: a.Entry.Name})
		}

		return s, ImportFile{Entry: a.Entry}

	case ListingLoaded:
		if a.Seq != s.seq {
			return s, nil
		}

		s.Phase = PhaseDisplaying
		s.Entries = SortEntries(a.Entries, s.Locale)
		s.Err = nil

		return s, nil

	case ListingFailed:
		if a.Seq != s.seq {
			return s, nil
		}

		s.Phase = PhaseError
		s.Entries = nil
		s.Err = a.Err

		return s, Notify{Level: LevelError, Message: msgLoadFailed}

	case ImportSucceeded:
		return s, Notify{Level: LevelInfo, Message: fmt.Sprintf(msgImported, a.Name)}

	case ImportFailed:
		return s, Notify{Level: LevelError, Message: fmt.Sprintf(msgImportFail, a.Name)}
	}

	return s, nil
}

// fetch moves s to Loading at crumbs and requests the listing.
func fetch(s State, crumbs []string) (State, Effect) {
	s.Breadcrumbs = crumbs
	s.Phase = PhaseLoading
	s.Entries = nil
	s.Err = nil
	s.seq++

	return s, FetchListing{Path: s.Path(), Seq: s.seq}
}
