package graph

import "time"

// ChildCountUnknown indicates the child count was not present in the API response.
const ChildCountUnknown = -1

// Item is a OneDrive drive item (file or folder) as seen in a listing.
// Fields are normalized from the Graph API response; callers never see raw API data.
type Item struct {
	ID         string
	Name       string
	ParentPath string // "/" for items at the drive root; empty if the API omitted it
	IsFolder   bool
	ChildCount int // ChildCountUnknown if not present
	Size       int64
	MimeType   string
	ETag       string
	ModifiedAt time.Time // zero if absent or invalid
}
