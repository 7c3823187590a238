package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// listChildrenPageSize is the $top value for ListChildren requests.
// 200 is the maximum allowed by the Graph API for drive item collections.
const listChildrenPageSize = 200

// rootRefPrefix prefixes parentReference.path values for items on the user's drive.
const rootRefPrefix = "/drive/root:"

// CleanPath normalizes a remote path to the absolute, slash-separated form
// used throughout: "/" for the root, "/a/b" otherwise.
func CleanPath(p string) string {
	return path.Clean("/" + strings.TrimSpace(p))
}

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so the
// resulting path is safe for interpolation into Graph API URLs.
func encodePathSegments(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// driveItemResponse mirrors the Graph API driveItem JSON.
// Unexported; callers use Item via toItem() normalization.
type driveItemResponse struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	Size                 int64        `json:"size"`
	ETag                 string       `json:"eTag"`
	LastModifiedDateTime string       `json:"lastModifiedDateTime"`
	ParentReference      *parentRef   `json:"parentReference"`
	File                 *fileFacet   `json:"file"`
	Folder               *folderFacet `json:"folder"`
}

type parentRef struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

type fileFacet struct {
	MimeType string `json:"mimeType"`
}

type folderFacet struct {
	ChildCount int `json:"childCount"`
}

type listChildrenResponse struct {
	Value    []driveItemResponse `json:"value"`
	NextLink string              `json:"@odata.nextLink"` //nolint:tagliatelle // OData annotation key
}

// toItem normalizes a Graph API driveItem response into our Item type.
func (d *driveItemResponse) toItem(logger *slog.Logger) Item {
	item := Item{
		ID:         d.ID,
		Name:       d.Name,
		Size:       d.Size,
		ETag:       d.ETag,
		IsFolder:   d.Folder != nil,
		ChildCount: ChildCountUnknown,
	}

	if d.Folder != nil {
		item.ChildCount = d.Folder.ChildCount
	}

	if d.File != nil {
		item.MimeType = d.File.MimeType
	}

	if d.ParentReference != nil && strings.HasPrefix(d.ParentReference.Path, rootRefPrefix) {
		item.ParentPath = CleanPath(strings.TrimPrefix(d.ParentReference.Path, rootRefPrefix))
	}

	item.ModifiedAt = parseTimestamp(d.LastModifiedDateTime, d.ID, logger)

	return item
}

// parseTimestamp parses an RFC3339 timestamp. Empty or invalid values yield
// the zero time; only invalid ones are logged.
func parseTimestamp(raw, itemID string, logger *slog.Logger) time.Time {
	if raw == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		logger.Warn("invalid timestamp, ignoring",
			slog.String("item_id", itemID),
			slog.String("raw", raw),
			slog.String("error", err.Error()),
		)

		return time.Time{}
	}

	return t
}

// childrenPath returns the API path listing the children of remotePath.
func childrenPath(remotePath string) string {
	remotePath = CleanPath(remotePath)
	if remotePath == "/" {
		return fmt.Sprintf("/me/drive/root/children?$top=%d", listChildrenPageSize)
	}

	return fmt.Sprintf("/me/drive/root:%s:/children?$top=%d", encodePathSegments(remotePath), listChildrenPageSize)
}

// ListChildren returns the children of the folder at remotePath, following
// pagination. A missing folder yields an error matching ErrNotFound.
func (c *Client) ListChildren(ctx context.Context, remotePath string) ([]Item, error) {
	remotePath = CleanPath(remotePath)

	c.logger.Info("listing children", slog.String("path", remotePath))

	var items []Item

	apiPath := childrenPath(remotePath)
	page := 1

	for apiPath != "" {
		pageItems, nextPath, err := c.listChildrenPage(ctx, apiPath, page)
		if err != nil {
			return nil, err
		}

		items = append(items, pageItems...)
		apiPath = nextPath
		page++
	}

	c.logger.Info("listed children",
		slog.String("path", remotePath),
		slog.Int("total_items", len(items)),
	)

	return items, nil
}

// listChildrenPage fetches a single page of children and returns the items
// and the next page path (empty if no more pages).
func (c *Client) listChildrenPage(ctx context.Context, apiPath string, page int) ([]Item, string, error) {
	resp, err := c.Do(ctx, http.MethodGet, apiPath, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	var lcr listChildrenResponse
	if err := json.NewDecoder(resp.Body).Decode(&lcr); err != nil {
		return nil, "", &DecodeError{Op: "children", Err: err}
	}

	items := make([]Item, 0, len(lcr.Value))
	for i := range lcr.Value {
		items = append(items, lcr.Value[i].toItem(c.logger))
	}

	c.logger.Debug("fetched children page",
		slog.Int("page", page),
		slog.Int("count", len(items)),
	)

	if lcr.NextLink == "" {
		return items, "", nil
	}

	nextPath, err := c.stripBaseURL(lcr.NextLink)
	if err != nil {
		return nil, "", err
	}

	return items, nextPath, nil
}

// GetMetadata retrieves a single drive item by ID.
func (c *Client) GetMetadata(ctx context.Context, itemID string) (*Item, error) {
	c.logger.Info("getting item", slog.String("item_id", itemID))

	resp, err := c.Do(ctx, http.MethodGet, "/me/drive/items/"+url.PathEscape(itemID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.decodeItem(resp, "item")
}

func (c *Client) decodeItem(resp *http.Response, op string) (*Item, error) {
	var dir driveItemResponse
	if err := json.NewDecoder(resp.Body).Decode(&dir); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}

	item := dir.toItem(c.logger)

	return &item, nil
}
