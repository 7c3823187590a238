// Package browser implements the OneDrive folder browser as a pure state
// machine. Reduce maps (State, Action) to (State, Effect); Session executes
// effects against the Graph client and the vault and feeds the outcomes
// back in as actions. Renderers only read State and dispatch actions.
package browser

import (
	"strings"

	"golang.org/x/text/language"

	"github.com/tonimelisma/onedrive-notes/internal/graph"
)

// RootCrumb is Breadcrumbs[0] for every state.
const RootCrumb = "/"

// Phase is the browser's coarse state.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseDisplaying
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseDisplaying:
		return "displaying"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the browser. Reduce never mutates the
// slices of the State it receives.
type State struct {
	Phase       Phase
	Breadcrumbs []string // [RootCrumb, seg1, seg2, ...]
	Entries     []graph.Item
	Err         error

	// Locale drives name collation within the folder and file groups.
	Locale language.Tag

	// seq identifies the listing currently awaited; outcomes carrying any
	// other sequence number are stale.
	seq uint64
}

// NewState returns the initial state: loading the drive root.
func NewState() State {
	return State{
		Phase:       PhaseLoading,
		Breadcrumbs: []string{RootCrumb},
		Locale:      language.English,
	}
}

// Path returns the remote folder path the breadcrumbs describe.
func (s State) Path() string {
	if len(s.Breadcrumbs) <= 1 {
		return "/"
	}

	return "/" + strings.Join(s.Breadcrumbs[1:], "/")
}

// Seq returns the sequence number of the awaited listing.
func (s State) Seq() uint64 {
	return s.seq
}

// CrumbLabel returns the display label for breadcrumb i.
func (s State) CrumbLabel(i int) string {
	if i == 0 {
		return "Root"
	}

	return s.Breadcrumbs[i]
}

// Action is an input to Reduce.
type Action interface {
	isAction()
}

// Open (re)loads the current folder.
type Open struct{}

// SelectFolder descends into the named child folder.
type SelectFolder struct{ Name string }

// SelectParent moves one level up.
type SelectParent struct{}

// SelectBreadcrumb jumps to the ancestor at Index.
type SelectBreadcrumb struct{ Index int }

// SelectFile imports the entry as a note.
type SelectFile struct{ Entry graph.Item }

// ListingLoaded reports a successful listing for the fetch tagged Seq.
type ListingLoaded struct {
	Seq     uint64
	Entries []graph.Item
}

// ListingFailed reports a failed listing for the fetch tagged Seq.
type ListingFailed struct {
	Seq uint64
	Err error
}

// ImportSucceeded reports that the named remote file became a note.
type ImportSucceeded struct{ Name string }

// ImportFailed reports that importing the named remote file failed.
type ImportFailed struct {
	Name string
	Err  error
}

func (Open) isAction()             {}
func (SelectFolder) isAction()     {}
func (SelectParent) isAction()     {}
func (SelectBreadcrumb) isAction() {}
func (SelectFile) isAction()       {}
func (ListingLoaded) isAction()    {}
func (ListingFailed) isAction()    {}
func (ImportSucceeded) isAction()  {}
func (ImportFailed) isAction()     {}

// Effect is a side effect requested by Reduce. A nil Effect means none.
type Effect interface {
	isEffect()
}

// FetchListing asks the driver to list Path and reply with ListingLoaded or
// ListingFailed carrying Seq.
type FetchListing struct {
	Path string
	Seq  uint64
}

// ImportFile asks the driver to download Entry and create a note from it.
type ImportFile struct{ Entry graph.Item }

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

// Notify asks the driver to show a user-visible message.
type Notify struct {
	Level   Level
	Message string
}

func (FetchListing) isEffect() {}
func (ImportFile) isEffect()   {}
func (Notify) isEffect()       {}
