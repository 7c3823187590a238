package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// DefaultRedirectURI is the custom-scheme callback registered for the app.
// The user's browser lands there after consent; the CLI reads it back from
// what the user pastes.
const DefaultRedirectURI = "app-scheme://oauth-callback"

// DefaultScopes are requested on authorization and sent on code exchange.
var DefaultScopes = []string{"Files.ReadWrite.All", "offline_access"}

// AuthConfig carries everything needed to talk to the identity provider.
// Zero-valued endpoint URLs fall back to the Microsoft "common" tenant.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
}

// oauthConfig builds the oauth2.Config shared by OAuthFlow and TokenStore.
// Credentials are always sent in the form body, as the Microsoft v2.0
// endpoint expects for confidential web clients.
func (ac AuthConfig) oauthConfig() *oauth2.Config {
	endpoint := microsoft.AzureADEndpoint("common")
	if ac.AuthURL != "" {
		endpoint.AuthURL = ac.AuthURL
	}

	if ac.TokenURL != "" {
		endpoint.TokenURL = ac.TokenURL
	}

	endpoint.AuthStyle = oauth2.AuthStyleInParams

	redirect := ac.RedirectURI
	if redirect == "" {
		redirect = DefaultRedirectURI
	}

	scopes := ac.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	return &oauth2.Config{
		ClientID:     ac.ClientID,
		ClientSecret: ac.ClientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirect,
		Scopes:       scopes,
	}
}

// OAuthFlow runs the one-time authorization-code login.
type OAuthFlow struct {
	cfg    *oauth2.Config
	logger *slog.Logger
}

// NewOAuthFlow creates an OAuthFlow for the given application registration.
func NewOAuthFlow(ac AuthConfig, logger *slog.Logger) *OAuthFlow {
	if logger == nil {
		logger = slog.Default()
	}

	return &OAuthFlow{cfg: ac.oauthConfig(), logger: logger}
}

// AuthorizationURL returns the provider URL the user opens to grant access.
// The result depends only on the configuration: no state or PKCE values.
func (f *OAuthFlow) AuthorizationURL() string {
	return f.cfg.AuthCodeURL("", oauth2.SetAuthURLParam("response_mode", "query"))
}

// ExchangeCode trades an authorization code for a token pair.
func (f *OAuthFlow) ExchangeCode(ctx context.Context, code string) (Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Token{}, &AuthError{Err: errors.New("empty authorization code")}
	}

	f.logger.Info("exchanging authorization code")

	tok, err := f.cfg.Exchange(ctx, code,
		oauth2.SetAuthURLParam("scope", strings.Join(f.cfg.Scopes, " ")),
	)
	if err != nil {
		return Token{}, authErrorFrom(err)
	}

	if tok.RefreshToken == "" {
		f.logger.Warn("token endpoint returned no refresh token; offline_access may be missing")
	}

	out := fromOAuth2(tok)
	if out.ExpiresAt.IsZero() {
		out.ExpiresAt = time.Now().Add(defaultTokenLifetime)
	}

	f.logger.Info("authorization code exchanged", slog.Time("expiry", out.ExpiresAt))

	return out, nil
}

// CodeFromRedirect extracts the authorization code from what the user pasted
// after consent: either the full callback URL or the bare code. A callback
// carrying an error parameter yields an AuthError.
func CodeFromRedirect(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("graph: no authorization code given")
	}

	if !strings.Contains(raw, "?") && !strings.Contains(raw, "://") {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("graph: parsing redirect URL: %w", err)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", &AuthError{Code: e, Description: q.Get("error_description")}
	}

	code := q.Get("code")
	if code == "" {
		return "", fmt.Errorf("graph: redirect URL has no code parameter")
	}

	return code, nil
}

// authErrorFrom converts an oauth2 library error into an AuthError.
func authErrorFrom(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		ae := &AuthError{
			Code:        re.ErrorCode,
			Description: re.ErrorDescription,
			Err:         err,
		}

		if re.Response != nil {
			ae.StatusCode = re.Response.StatusCode
		}

		return ae
	}

	return &AuthError{Err: err}
}
