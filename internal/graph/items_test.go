package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"Docs", "/Docs"},
		{"/Docs/", "/Docs"},
		{"  /Docs//Work  ", "/Docs/Work"},
		{"/Docs/../Notes", "/Notes"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanPath(tt.in), "CleanPath(%q)", tt.in)
	}
}

func TestEncodePathSegments(t *testing.T) {
	assert.Equal(t, "/My%20Docs/a%23b/c%3Fd", encodePathSegments("/My Docs/a#b/c?d"))
	assert.Equal(t, "/plain", encodePathSegments("/plain"))
}

func TestListChildren_Root(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/me/drive/root/children", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("$top"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"value": [
			{"id": "f1", "name": "Docs", "folder": {"childCount": 3},
			 "parentReference": {"path": "/drive/root:"},
			 "lastModifiedDateTime": "2024-06-20T14:45:00Z"},
			{"id": "i1", "name": "notes.txt", "size": 1536,
			 "file": {"mimeType": "text/plain"},
			 "parentReference": {"path": "/drive/root:"}}
		]}`)
	}))
	defer srv.Close()

	items, err := newTestClient(t, srv.URL).ListChildren(context.Background(), "/")
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "Docs", items[0].Name)
	assert.True(t, items[0].IsFolder)
	assert.Equal(t, 3, items[0].ChildCount)
	assert.Equal(t, "/", items[0].ParentPath)
	assert.Equal(t, time.Date(2024, 6, 20, 14, 45, 0, 0, time.UTC), items[0].ModifiedAt)

	assert.Equal(t, "notes.txt", items[1].Name)
	assert.False(t, items[1].IsFolder)
	assert.Equal(t, ChildCountUnknown, items[1].ChildCount)
	assert.Equal(t, int64(1536), items[1].Size)
	assert.Equal(t, "text/plain", items[1].MimeType)
	assert.True(t, items[1].ModifiedAt.IsZero())
}

func TestListChildren_NestedPathEncoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/drive/root:/My Docs/a#b:/children", r.URL.Path)
		assert.Contains(t, r.URL.EscapedPath(), "a%23b")

		fmt.Fprint(w, `{"value": [{"id": "x", "name": "x.md",
			"parentReference": {"path": "/drive/root:/My Docs/a#b"}}]}`)
	}))
	defer srv.Close()

	items, err := newTestClient(t, srv.URL).ListChildren(context.Background(), "My Docs/a#b/")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "/My Docs/a#b", items[0].ParentPath)
}

func TestListChildren_Pagination(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("$skiptoken") == "" {
			fmt.Fprintf(w, `{"value": [{"id": "a", "name": "a"}],
				"@odata.nextLink": "%s/me/drive/root/children?$skiptoken=p2"}`, srv.URL)

			return
		}

		fmt.Fprint(w, `{"value": [{"id": "b", "name": "b"}]}`)
	}))
	defer srv.Close()

	items, err := newTestClient(t, srv.URL).ListChildren(context.Background(), "/")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
}

func TestListChildren_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"itemNotFound"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).ListChildren(context.Background(), "/missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListChildren_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"value": [`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).ListChildren(context.Background(), "/")

	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, "children", decErr.Op)
}

func TestGetMetadata_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/drive/items/item-123", r.URL.Path)

		fmt.Fprint(w, `{"id": "item-123", "name": "plan.md", "size": 42, "eTag": "e1",
			"file": {"mimeType": "text/markdown"},
			"parentReference": {"id": "p", "path": "/drive/root:/Notes"},
			"lastModifiedDateTime": "2025-01-02T03:04:05Z"}`)
	}))
	defer srv.Close()

	item, err := newTestClient(t, srv.URL).GetMetadata(context.Background(), "item-123")
	require.NoError(t, err)
	assert.Equal(t, "plan.md", item.Name)
	assert.Equal(t, int64(42), item.Size)
	assert.Equal(t, "e1", item.ETag)
	assert.Equal(t, "/Notes", item.ParentPath)
	assert.Equal(t, 2025, item.ModifiedAt.Year())
}

func TestGetMetadata_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GetMetadata(context.Background(), "item-123")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestParseTimestamp_Invalid(t *testing.T) {
	item := (&driveItemResponse{ID: "x", LastModifiedDateTime: "yesterday"}).toItem(newTestClient(t, "http://unused").logger)
	assert.True(t, item.ModifiedAt.IsZero())
}
