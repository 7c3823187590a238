package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/onedrive-notes/internal/config"
	"github.com/tonimelisma/onedrive-notes/internal/graph"
	"github.com/tonimelisma/onedrive-notes/internal/tokenfile"
)

// errNotLoggedIn is shown when no token file exists.
var errNotLoggedIn = errors.New("not logged in, run 'onedrive-notes login' first")

// graphBaseURL is the Graph endpoint. Tests point it at httptest servers.
var graphBaseURL = graph.DefaultBaseURL

// tokenURL overrides the identity provider's token endpoint when set.
var tokenURL string

// authConfig maps the resolved configuration onto the graph package's view.
func authConfig(cfg *config.Resolved) (graph.AuthConfig, error) {
	if cfg.Auth.ClientID == "" {
		return graph.AuthConfig{}, fmt.Errorf("auth.client_id is not set (config file %s or $%s)",
			cfg.Path, config.EnvClientID)
	}

	return graph.AuthConfig{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		RedirectURI:  cfg.Auth.RedirectURI,
		TokenURL:     tokenURL,
	}, nil
}

// session bundles the token store and Graph client for one command.
type session struct {
	store  *graph.TokenStore
	client *graph.Client
	logger *slog.Logger
}

// newSession loads the saved token and builds a Graph client whose token
// refreshes are written back to the token file.
func newSession(cfg *config.Resolved, logger *slog.Logger) (*session, error) {
	ac, err := authConfig(cfg)
	if err != nil {
		return nil, err
	}

	tf, err := tokenfile.Load(cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	if tf == nil {
		return nil, errNotLoggedIn
	}

	httpClient := newHTTPClient()
	tokenPath := cfg.TokenPath

	persist := func(tok graph.Token) error {
		logger.Debug("persisting refreshed token", slog.String("path", tokenPath))
		return tokenfile.Save(tokenPath, toTokenFile(tok))
	}

	store := graph.NewTokenStore(ac, fromTokenFile(tf), httpClient, persist, logger)
	client := graph.NewClient(graphBaseURL, httpClient, store, logger)

	return &session{store: store, client: client, logger: logger}, nil
}

// withHTTPClient makes oauth2 use hc for calls made under ctx.
func withHTTPClient(ctx context.Context, hc *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, hc)
}

func toTokenFile(tok graph.Token) tokenfile.File {
	return tokenfile.File{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
	}
}

func fromTokenFile(tf *tokenfile.File) graph.Token {
	return graph.Token{
		AccessToken:  tf.AccessToken,
		RefreshToken: tf.RefreshToken,
		ExpiresAt:    tf.ExpiresAt,
	}
}
