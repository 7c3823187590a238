package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/tonimelisma/onedrive-notes/internal/graph"
)

func names(items []graph.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}

	return out
}

func TestSortEntries_FoldersFirst(t *testing.T) {
	in := []graph.Item{
		{Name: "b.txt"},
		{Name: "Zeta", IsFolder: true},
		{Name: "a.txt"},
		{Name: "alpha", IsFolder: true},
	}

	got := SortEntries(in, language.English)

	assert.Equal(t, []string{"alpha", "Zeta", "a.txt", "b.txt"}, names(got))
	assert.Equal(t, "b.txt", in[0].Name, "input must not be reordered")
}

func TestSortEntries_LocaleCollation(t *testing.T) {
	in := []graph.Item{
		{Name: "cherry"},
		{Name: "zebra"},
		{Name: "Banana"},
		{Name: "éclair"},
		{Name: "apple"},
	}

	got := SortEntries(in, language.English)

	// Byte order would put "Banana" first and "éclair" last.
	assert.Equal(t, []string{"apple", "Banana", "cherry", "éclair", "zebra"}, names(got))
}

func TestSortEntries_Empty(t *testing.T) {
	assert.Empty(t, SortEntries(nil, language.English))
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0.0 B"},
		{1, "1.0 B"},
		{1023, "1023.0 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2048.0 GB"},
		{-5, "0.0 B"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSize(tt.bytes))
		})
	}
}
