package browser

import (
	"fmt"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/tonimelisma/onedrive-notes/internal/graph"
)

// SortEntries returns a sorted copy of entries: folders before files, each
// group ordered by name under the collation rules of locale. Equal names
// keep their input order.
func SortEntries(entries []graph.Item, locale language.Tag) []graph.Item {
	out := slices.Clone(entries)

	// A Collator keeps scratch buffers and is not safe for concurrent use.
	col := collate.New(locale)

	slices.SortStableFunc(out, func(a, b graph.Item) int {
		if a.IsFolder != b.IsFolder {
			if a.IsFolder {
				return -1
			}

			return 1
		}

		return col.CompareString(a.Name, b.Name)
	})

	return out
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatSize renders a byte count with 1024-based units and one decimal
// place: 0 -> "0.0 B", 1536 -> "1.5 KB". Anything past GB stays in GB.
func FormatSize(bytes int64) string {
	size := float64(max(bytes, 0))
	unit := 0

	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}

	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}
