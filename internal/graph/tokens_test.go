package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestStore creates a TokenStore against tokenURL with a fixed clock.
func newTestStore(t *testing.T, tokenURL string, tok Token, onChange func(Token) error) *TokenStore {
	t.Helper()

	s := NewTokenStore(AuthConfig{ClientID: "cid", ClientSecret: "secret", TokenURL: tokenURL}, tok, nil, onChange, nil)
	s.nowFunc = func() time.Time { return testNow }

	return s
}

func tokenHandler(t *testing.T, body string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "rt", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "Files.ReadWrite.All offline_access", r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func TestToken_Expired(t *testing.T) {
	assert.True(t, Token{}.Expired(testNow))
	assert.True(t, Token{AccessToken: "a", ExpiresAt: testNow}.Expired(testNow), "expiry instant itself counts as expired")
	assert.True(t, Token{AccessToken: "a", ExpiresAt: testNow.Add(-time.Second)}.Expired(testNow))
	assert.False(t, Token{AccessToken: "a", ExpiresAt: testNow.Add(time.Second)}.Expired(testNow))
}

func TestTokenStore_ValidTokenNoRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("token endpoint must not be called for a valid token")
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL, Token{AccessToken: "live", RefreshToken: "rt", ExpiresAt: testNow.Add(time.Hour)}, nil)

	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "live", tok)
}

func TestTokenStore_ExpiredRefreshes(t *testing.T) {
	srv := httptest.NewServer(tokenHandler(t,
		`{"access_token":"fresh","refresh_token":"rotated","token_type":"Bearer","expires_in":3600}`))
	defer srv.Close()

	var persisted []Token

	s := newTestStore(t, srv.URL,
		Token{AccessToken: "stale", RefreshToken: "rt", ExpiresAt: testNow.Add(-time.Minute)},
		func(tok Token) error {
			persisted = append(persisted, tok)
			return nil
		})

	require.NoError(t, s.EnsureValid(context.Background()))

	cur := s.Current()
	assert.Equal(t, "fresh", cur.AccessToken)
	assert.Equal(t, "rotated", cur.RefreshToken)
	assert.False(t, cur.ExpiresAt.IsZero())

	require.Len(t, persisted, 1)
	assert.Equal(t, cur, persisted[0])
}

func TestTokenStore_RefreshSendsConfiguredScopes(t *testing.T) {
	var form map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		form = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	s := NewTokenStore(AuthConfig{ClientID: "cid", TokenURL: srv.URL, Scopes: []string{"Files.Read", "offline_access"}},
		Token{RefreshToken: "rt"}, nil, nil, nil)

	require.NoError(t, s.EnsureValid(context.Background()))

	assert.Equal(t, []string{"Files.Read offline_access"}, form["scope"])
	assert.Equal(t, []string{"refresh_token"}, form["grant_type"])
	assert.Equal(t, []string{"rt"}, form["refresh_token"])
	assert.Equal(t, []string{"cid"}, form["client_id"])
	assert.NotContains(t, form, "client_secret", "public clients send no secret")
}

func TestTokenStore_MissingExpiresInAssumesDefaultLifetime(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"fresh","token_type":"Bearer"}`)
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL, Token{RefreshToken: "rt"}, nil)

	for range 3 {
		tok, err := s.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fresh", tok)
	}

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, testNow.Add(defaultTokenLifetime), s.Current().ExpiresAt)
}

func TestTokenStore_RefreshNonJSONErrorKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, "upstream down")
	}))
	defer srv.Close()

	seed := Token{AccessToken: "stale", RefreshToken: "rt", ExpiresAt: testNow.Add(-time.Minute)}
	s := newTestStore(t, srv.URL, seed, nil)

	err := s.EnsureValid(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusInternalServerError, authErr.StatusCode)
	assert.Equal(t, seed, s.Current())
}

func TestTokenStore_MissingAccessTokenRefreshes(t *testing.T) {
	srv := httptest.NewServer(tokenHandler(t, `{"access_token":"fresh","token_type":"Bearer","expires_in":60}`))
	defer srv.Close()

	s := newTestStore(t, srv.URL, Token{RefreshToken: "rt"}, nil)

	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, "rt", s.Current().RefreshToken, "refresh token kept when none is returned")
}

func TestTokenStore_RefreshFailureLeavesTokenUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"revoked"}`)
	}))
	defer srv.Close()

	seed := Token{AccessToken: "stale", RefreshToken: "rt", ExpiresAt: testNow.Add(-time.Minute)}
	called := false

	s := newTestStore(t, srv.URL, seed, func(Token) error {
		called = true
		return nil
	})

	err := s.EnsureValid(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "invalid_grant", authErr.Code)
	assert.Equal(t, seed, s.Current())
	assert.False(t, called)
}

func TestTokenStore_NotLoggedIn(t *testing.T) {
	s := newTestStore(t, "http://unused", Token{}, nil)

	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestTokenStore_PersistErrorIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(tokenHandler(t, `{"access_token":"fresh","token_type":"Bearer","expires_in":60}`))
	defer srv.Close()

	s := newTestStore(t, srv.URL, Token{RefreshToken: "rt"}, func(Token) error {
		return fmt.Errorf("disk full")
	})

	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
}

// recordingServer serves both the token endpoint and the Graph API and
// records the order of requests.
type recordingServer struct {
	mu    sync.Mutex
	calls []string
}

func (rs *recordingServer) record(r *http.Request) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.calls = append(rs.calls, r.Method+" "+r.URL.Path)
}

func (rs *recordingServer) snapshot() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	return append([]string(nil), rs.calls...)
}

func TestListChildren_ExpiredTokenRefreshesOnceFirst(t *testing.T) {
	for _, p := range []string{"/", "/Docs", "/Docs/Work Stuff"} {
		t.Run(p, func(t *testing.T) {
			rs := &recordingServer{}

			mux := http.NewServeMux()
			mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
				rs.record(r)
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
			})
			mux.HandleFunc("/me/drive/", func(w http.ResponseWriter, r *http.Request) {
				rs.record(r)
				assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
				fmt.Fprint(w, `{"value": []}`)
			})

			srv := httptest.NewServer(mux)
			defer srv.Close()

			store := NewTokenStore(AuthConfig{ClientID: "cid", TokenURL: srv.URL + "/token"},
				Token{AccessToken: "old", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute)}, nil, nil, nil)
			client := NewClient(srv.URL, nil, store, nil)

			_, err := client.ListChildren(context.Background(), p)
			require.NoError(t, err)

			calls := rs.snapshot()
			require.Len(t, calls, 2)
			assert.Equal(t, "POST /token", calls[0])
			assert.Contains(t, calls[1], "GET /me/drive/root")
		})
	}
}

func TestStorageErrorsLeaveTokenStoreUnchanged(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/token", func(_ http.ResponseWriter, _ *http.Request) {
				t.Error("token endpoint must not be called")
			})
			mux.HandleFunc("/me/drive/", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(status)
			})

			srv := httptest.NewServer(mux)
			defer srv.Close()

			seed := Token{AccessToken: "live", RefreshToken: "rt", ExpiresAt: time.Now().Add(time.Hour)}
			store := NewTokenStore(AuthConfig{ClientID: "cid", TokenURL: srv.URL + "/token"}, seed, nil, nil, nil)
			client := NewClient(srv.URL, nil, store, nil)

			_, err := client.ListChildren(context.Background(), "/Docs")
			require.Error(t, err)
			assert.ErrorIs(t, err, classifyStatus(status))

			_, err = client.GetMetadata(context.Background(), "id-1")
			assert.ErrorIs(t, err, classifyStatus(status))

			_, err = client.Download(context.Background(), "id-1")
			assert.ErrorIs(t, err, classifyStatus(status))

			_, err = client.Upload(context.Background(), "/Docs/a.md", []byte("x"))
			assert.ErrorIs(t, err, classifyStatus(status))

			assert.Equal(t, seed, store.Current())
		})
	}
}
