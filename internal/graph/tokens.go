package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// defaultTokenLifetime is assumed when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

// maxTokenBody caps how much of a token endpoint response is read.
const maxTokenBody = 64 * 1024

// Token is the credential triple kept by TokenStore.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is missing or past its expiry at now.
func (t Token) Expired(now time.Time) bool {
	return t.AccessToken == "" || !now.Before(t.ExpiresAt)
}

func fromOAuth2(t *oauth2.Token) Token {
	return Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.Expiry,
	}
}

// TokenStore holds the current token and refreshes it with the
// refresh_token grant when it is missing or expired. It implements
// TokenSource for Client.
type TokenStore struct {
	mu  sync.Mutex
	tok Token

	cfg        *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger

	// onChange is called after every successful refresh so the host can
	// persist the rotated token. Errors are logged, not returned.
	onChange func(Token) error

	// nowFunc returns the current time. Tests override it.
	nowFunc func() time.Time
}

// NewTokenStore creates a TokenStore seeded with tok. onChange may be nil.
// httpClient is used for the token endpoint; nil means http.DefaultClient.
func NewTokenStore(
	ac AuthConfig, tok Token, httpClient *http.Client, onChange func(Token) error, logger *slog.Logger,
) *TokenStore {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &TokenStore{
		tok:        tok,
		cfg:        ac.oauthConfig(),
		httpClient: httpClient,
		logger:     logger,
		onChange:   onChange,
		nowFunc:    time.Now,
	}
}

// Current returns a copy of the stored token.
func (s *TokenStore) Current() Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.tok
}

// Token returns a valid access token, refreshing first if needed.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureValidLocked(ctx); err != nil {
		return "", err
	}

	return s.tok.AccessToken, nil
}

// EnsureValid refreshes the access token when it is missing or expired.
// On failure the stored token is left exactly as it was.
func (s *TokenStore) EnsureValid(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensureValidLocked(ctx)
}

func (s *TokenStore) ensureValidLocked(ctx context.Context) error {
	now := s.nowFunc()
	if !s.tok.Expired(now) {
		return nil
	}

	if s.tok.RefreshToken == "" {
		return &AuthError{Err: ErrNotLoggedIn}
	}

	s.logger.Debug("refreshing access token",
		slog.Bool("had_access_token", s.tok.AccessToken != ""),
		slog.Time("expired_at", s.tok.ExpiresAt),
	)

	fresh, err := s.refresh(ctx, now)
	if err != nil {
		s.logger.Warn("token refresh failed", slog.String("error", err.Error()))
		return err
	}

	next := Token{
		AccessToken:  fresh.AccessToken,
		RefreshToken: s.tok.RefreshToken,
		ExpiresAt:    fresh.ExpiresAt,
	}

	// The refresh token is replaced only when the provider rotated it.
	rotated := fresh.RefreshToken != "" && fresh.RefreshToken != s.tok.RefreshToken
	if rotated {
		next.RefreshToken = fresh.RefreshToken
	}

	s.tok = next

	s.logger.Info("access token refreshed",
		slog.Time("expiry", next.ExpiresAt),
		slog.Bool("refresh_token_rotated", rotated),
	)

	if s.onChange != nil {
		if err := s.onChange(next); err != nil {
			s.logger.Warn("persisting refreshed token failed", slog.String("error", err.Error()))
		}
	}

	return nil
}

// tokenResponse is the token endpoint's JSON body, success or error.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// refresh posts the refresh_token grant, scopes included, to the token
// endpoint. Non-2xx answers become *AuthError.
func (s *TokenStore) refresh(ctx context.Context, now time.Time) (Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.tok.RefreshToken},
		"client_id":     {s.cfg.ClientID},
		"scope":         {strings.Join(s.cfg.Scopes, " ")},
	}

	if s.cfg.ClientSecret != "" {
		form.Set("client_secret", s.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, &AuthError{Err: fmt.Errorf("creating refresh request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Token{}, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return Token{}, &AuthError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading token response: %w", err)}
	}

	var tr tokenResponse
	decodeErr := json.Unmarshal(body, &tr)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Token{}, &AuthError{
			StatusCode:  resp.StatusCode,
			Code:        tr.Error,
			Description: tr.ErrorDescription,
		}
	}

	if decodeErr != nil {
		return Token{}, &AuthError{StatusCode: resp.StatusCode, Err: &DecodeError{Op: "token", Err: decodeErr}}
	}

	if tr.AccessToken == "" {
		return Token{}, &AuthError{StatusCode: resp.StatusCode, Err: errors.New("token response has no access_token")}
	}

	return Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    s.expiry(now, tr.ExpiresIn),
	}, nil
}

// expiry turns expires_in into an instant, assuming defaultTokenLifetime
// when the endpoint did not say.
func (s *TokenStore) expiry(now time.Time, expiresIn int64) time.Time {
	if expiresIn <= 0 {
		s.logger.Warn("token response has no expires_in, assuming default lifetime",
			slog.Duration("lifetime", defaultTokenLifetime))

		return now.Add(defaultTokenLifetime)
	}

	return now.Add(time.Duration(expiresIn) * time.Second)
}
