package graph

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Upload writes data to remotePath, replacing any existing file there.
// There is no conflict detection and no ETag check.
func (c *Client) Upload(ctx context.Context, remotePath string, data []byte) (*Item, error) {
	return c.UploadFrom(ctx, remotePath, bytes.NewReader(data), int64(len(data)))
}

// UploadFrom is Upload for exactly size bytes read from r.
func (c *Client) UploadFrom(ctx context.Context, remotePath string, r io.Reader, size int64) (*Item, error) {
	remotePath = CleanPath(remotePath)
	if remotePath == "/" {
		return nil, fmt.Errorf("graph: cannot upload to the drive root itself")
	}

	c.logger.Info("uploading item",
		slog.String("path", remotePath),
		slog.Int64("size", size),
	)

	apiPath := "/me/drive/root:" + encodePathSegments(remotePath) + ":/content"

	resp, err := c.do(ctx, http.MethodPut, apiPath, r, "application/octet-stream", size)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.decodeItem(resp, "upload")
}
