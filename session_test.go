package main

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/onedrive-notes/internal/config"
	"github.com/tonimelisma/onedrive-notes/internal/tokenfile"
)

func TestAuthConfig(t *testing.T) {
	cfg := &config.Resolved{Config: *config.DefaultConfig(), Path: "/etc/notes.toml"}

	_, err := authConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.client_id is not set")
	assert.Contains(t, err.Error(), "/etc/notes.toml")

	cfg.Auth.ClientID = "id"
	cfg.Auth.ClientSecret = "secret"

	ac, err := authConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "id", ac.ClientID)
	assert.Equal(t, "secret", ac.ClientSecret)
	assert.Equal(t, cfg.Auth.RedirectURI, ac.RedirectURI)
}

func TestNewSession_NotLoggedIn(t *testing.T) {
	cfg := &config.Resolved{Config: *config.DefaultConfig(), TokenPath: filepath.Join(t.TempDir(), "token.json")}
	cfg.Auth.ClientID = "id"

	_, err := newSession(cfg, testLogger(t))
	assert.ErrorIs(t, err, errNotLoggedIn)
}

func TestNewSession_LoadsToken(t *testing.T) {
	cfg := &config.Resolved{Config: *config.DefaultConfig(), TokenPath: filepath.Join(t.TempDir(), "token.json")}
	cfg.Auth.ClientID = "id"

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	require.NoError(t, tokenfile.Save(cfg.TokenPath, tokenfile.File{
		AccessToken: "a", RefreshToken: "r", ExpiresAt: exp,
	}))

	s, err := newSession(cfg, testLogger(t))
	require.NoError(t, err)
	require.NotNil(t, s.client)

	tok, err := s.store.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", tok)
}

func TestTokenFileRoundTrip(t *testing.T) {
	tf := &tokenfile.File{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Unix(1700000000, 0)}

	assert.Equal(t, *tf, toTokenFile(fromTokenFile(tf)))
}

func TestWithHTTPClient(t *testing.T) {
	hc := &http.Client{}
	ctx := withHTTPClient(context.Background(), hc)

	assert.Same(t, hc, ctx.Value(oauth2.HTTPClient))
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"newline", "https://localhost/?code=x\nmore", "https://localhost/?code=x", false},
		{"crlf", "abc\r\n", "abc", false},
		{"no trailing newline", "abc", "abc", false},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readLine(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(tWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type tWriter struct{ t *testing.T }

func (w tWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
