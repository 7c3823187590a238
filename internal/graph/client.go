package graph

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultBaseURL is the Graph API root used in production.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const userAgent = "onedrive-notes/0.1"

// maxErrorBody caps how much of an error response is kept in APIError.Message.
const maxErrorBody = 64 * 1024

// TokenSource provides bearer tokens. Defined at the consumer;
// *TokenStore is the production implementation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is an HTTP client for the OneDrive endpoints of the Graph API.
// Every request is sent exactly once: there is no retry, backoff or
// rate-limit handling. Non-2xx answers become *APIError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenSource
	logger     *slog.Logger
}

// NewClient creates a Graph API client.
// baseURL is typically DefaultBaseURL; tests pass an httptest server URL.
func NewClient(baseURL string, httpClient *http.Client, token TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		token:      token,
		logger:     logger,
	}
}

// Do executes an HTTP request against the Graph API. The path is appended
// to the client's base URL. For non-nil bodies, Content-Type is set to
// application/json. The caller closes the response body on success.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}

	return c.do(ctx, method, path, body, contentType, -1)
}

// do sends one request. size >= 0 sets Content-Length for bodies net/http
// cannot measure itself.
func (c *Client) do(
	ctx context.Context, method, path string, body io.Reader, contentType string, size int64,
) (*http.Response, error) {
	// The token is obtained before the request is built so that an expired
	// token is refreshed ahead of the API call.
	tok, err := c.token.Token(ctx)
	if err != nil {
		return nil, err
	}

	// net/http treats ContentLength 0 on an opaque body as unknown and
	// would send it chunked.
	if body != nil && size == 0 {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("graph: creating request: %w", err)
	}

	if body != nil && size >= 0 {
		req.ContentLength = size
	}

	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("User-Agent", userAgent)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("graph: request canceled: %w", ctx.Err())
		}

		return nil, fmt.Errorf("graph: %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		c.logger.Debug("request succeeded",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)

		return resp, nil
	}

	defer resp.Body.Close()

	errBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("request-id"),
		Message:    string(errBody),
		Err:        classifyStatus(resp.StatusCode),
	}

	c.logger.Warn("request failed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.String("request_id", apiErr.RequestID),
	)

	return nil, apiErr
}

// stripBaseURL turns an absolute @odata.nextLink back into a path relative
// to the client's base URL.
func (c *Client) stripBaseURL(link string) (string, error) {
	if !strings.HasPrefix(link, c.baseURL) {
		return "", fmt.Errorf("graph: next link %q does not start with base URL", link)
	}

	return strings.TrimPrefix(link, c.baseURL), nil
}
