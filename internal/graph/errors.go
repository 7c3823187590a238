// Package graph provides an HTTP client for the OneDrive endpoints of the
// Microsoft Graph API, the OAuth2 authorization-code flow and the token store
// that keeps the bearer token fresh.
package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, graph.ErrNotFound) to check.
var (
	ErrBadRequest   = errors.New("graph: bad request")
	ErrUnauthorized = errors.New("graph: unauthorized")
	ErrForbidden    = errors.New("graph: forbidden")
	ErrNotFound     = errors.New("graph: not found")
	ErrConflict     = errors.New("graph: conflict")
	ErrThrottled    = errors.New("graph: throttled")
	ErrServerError  = errors.New("graph: server error")

	// ErrNotLoggedIn is wrapped by AuthError when no refresh token is stored.
	ErrNotLoggedIn = errors.New("graph: not logged in")
)

// APIError is a non-2xx answer from the storage API. It wraps a sentinel
// from classifyStatus so callers can test with errors.Is.
type APIError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("graph: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AuthError is a failure of the identity provider's token endpoint, either
// during the authorization-code exchange or a refresh.
type AuthError struct {
	StatusCode  int    // 0 when no response was received
	Code        string // OAuth error code, e.g. "invalid_grant"
	Description string
	Err         error
}

func (e *AuthError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("graph: token endpoint: %s: %s", e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("graph: token endpoint: %s", e.Code)
	case e.StatusCode != 0:
		return fmt.Sprintf("graph: token endpoint: HTTP %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("graph: authentication failed: %v", e.Err)
	default:
		return "graph: authentication failed"
	}
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// DecodeError reports a response body that could not be decoded.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("graph: decoding %s response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes without a dedicated sentinel.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
