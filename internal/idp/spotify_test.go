package idp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpotify serves the token endpoint and /me, recording the last
// token request form.
type fakeSpotify struct {
	server      *httptest.Server
	lastForm    url.Values
	tokenCalls  atomic.Int32
	tokenStatus int
	tokenBody   map[string]any
	meStatus    int
	meBody      map[string]any
}

func newFakeSpotify(t *testing.T) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{
		tokenStatus: http.StatusOK,
		tokenBody: map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         "user-read-email user-read-private",
		},
		meStatus: http.StatusOK,
		meBody: map[string]any{
			"id":           "spotify-user",
			"display_name": "Spotify User",
			"email":        "listener@example.com",
			"images":       []map[string]any{{"url": "https://i.scdn.co/image/avatar"}},
		},
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/token":
			f.tokenCalls.Add(1)
			require.NoError(t, r.ParseForm())
			f.lastForm = r.PostForm
			w.WriteHeader(f.tokenStatus)
			require.NoError(t, json.NewEncoder(w).Encode(f.tokenBody))
		case "/v1/me":
			if r.Header.Get("Authorization") != "Bearer access-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(f.meStatus)
			require.NoError(t, json.NewEncoder(w).Encode(f.meBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSpotify) provider() *SpotifyProvider {
	return NewSpotifyProvider(ClientConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:3000/auth/spotify/callback",
		AuthURL:      f.server.URL + "/authorize",
		TokenURL:     f.server.URL + "/api/token",
		APIBaseURL:   f.server.URL + "/v1",
		Timeout:      5 * time.Second,
	})
}

func TestSpotifyProvider_Type(t *testing.T) {
	provider := NewSpotifyProvider(ClientConfig{ClientID: "client-id"})
	assert.Equal(t, "spotify", provider.Type())
}

func TestSpotifyProvider_AuthURL(t *testing.T) {
	provider := NewSpotifyProvider(ClientConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:3000/auth/spotify/callback",
	})

	authURL, err := url.Parse(provider.AuthURL("test-state"))
	require.NoError(t, err)

	assert.Equal(t, "accounts.spotify.com", authURL.Host)
	assert.Equal(t, "/authorize", authURL.Path)

	q := authURL.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://localhost:3000/auth/spotify/callback", q.Get("redirect_uri"))
	assert.Equal(t, "test-state", q.Get("state"))
	assert.Equal(t, "true", q.Get("show_dialog"))
	assert.Equal(t, "user-read-email user-read-private user-top-read user-read-recently-played playlist-read-private", q.Get("scope"))
	assert.Empty(t, q.Get("client_secret"))
}

func TestSpotifyProvider_AuthURL_ConfiguredScopes(t *testing.T) {
	provider := NewSpotifyProvider(ClientConfig{
		ClientID: "client-id",
		Scopes:   []string{"user-read-email"},
		AuthURL:  "https://accounts.internal/authorize",
	})

	authURL, err := url.Parse(provider.AuthURL("s"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.internal", authURL.Host)
	assert.Equal(t, "user-read-email", authURL.Query().Get("scope"))
}

func TestSpotifyProvider_ExchangeCode(t *testing.T) {
	fake := newFakeSpotify(t)

	tokens, err := fake.provider().ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, "user-read-email user-read-private", tokens.Scope)
	assert.InDelta(t, time.Hour.Seconds(), tokens.ExpiresIn.Seconds(), 5)

	assert.Equal(t, int32(1), fake.tokenCalls.Load())
	assert.Equal(t, "authorization_code", fake.lastForm.Get("grant_type"))
	assert.Equal(t, "auth-code", fake.lastForm.Get("code"))
	assert.Equal(t, "http://localhost:3000/auth/spotify/callback", fake.lastForm.Get("redirect_uri"))
	assert.Equal(t, "client-id", fake.lastForm.Get("client_id"))
	assert.Equal(t, "client-secret", fake.lastForm.Get("client_secret"))
}

func TestSpotifyProvider_ExchangeCode_Rejected(t *testing.T) {
	fake := newFakeSpotify(t)
	fake.tokenStatus = http.StatusBadRequest
	fake.tokenBody = map[string]any{"error": "invalid_grant", "error_description": "Invalid authorization code"}

	tokens, err := fake.provider().ExchangeCode(context.Background(), "used-code")
	require.Error(t, err)
	assert.Nil(t, tokens)

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, OpExchange, providerErr.Op)
	assert.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
}

func TestSpotifyProvider_Refresh(t *testing.T) {
	fake := newFakeSpotify(t)
	delete(fake.tokenBody, "refresh_token")
	fake.tokenBody["access_token"] = "access-2"

	tokens, err := fake.provider().Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)

	assert.Equal(t, "access-2", tokens.AccessToken)
	// Not rotated: the previous refresh token is carried over.
	assert.Equal(t, "refresh-1", tokens.RefreshToken)

	assert.Equal(t, "refresh_token", fake.lastForm.Get("grant_type"))
	assert.Equal(t, "refresh-1", fake.lastForm.Get("refresh_token"))
	assert.Equal(t, "client-id", fake.lastForm.Get("client_id"))
	assert.Equal(t, "client-secret", fake.lastForm.Get("client_secret"))
}

func TestSpotifyProvider_Refresh_Rotated(t *testing.T) {
	fake := newFakeSpotify(t)
	fake.tokenBody["refresh_token"] = "refresh-2"

	tokens, err := fake.provider().Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-2", tokens.RefreshToken)
}

func TestSpotifyProvider_Refresh_Revoked(t *testing.T) {
	fake := newFakeSpotify(t)
	fake.tokenStatus = http.StatusBadRequest
	fake.tokenBody = map[string]any{"error": "invalid_grant", "error_description": "Refresh token revoked"}

	_, err := fake.provider().Refresh(context.Background(), "revoked")

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, OpRefresh, providerErr.Op)
	assert.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
}

func TestSpotifyProvider_Identity(t *testing.T) {
	fake := newFakeSpotify(t)

	identity, err := fake.provider().Identity(context.Background(), "access-1")
	require.NoError(t, err)

	assert.Equal(t, &Identity{
		ProviderType: "spotify",
		Subject:      "spotify-user",
		Name:         "Spotify User",
		Email:        "listener@example.com",
		Picture:      "https://i.scdn.co/image/avatar",
	}, identity)
}

func TestSpotifyProvider_Identity_OptionalFields(t *testing.T) {
	fake := newFakeSpotify(t)
	fake.meBody = map[string]any{"id": "bare-user", "display_name": nil, "images": []any{}}

	identity, err := fake.provider().Identity(context.Background(), "access-1")
	require.NoError(t, err)

	assert.Equal(t, "bare-user", identity.Subject)
	assert.Equal(t, "bare-user", identity.Name)
	assert.Empty(t, identity.Email)
	assert.Empty(t, identity.Picture)
}

func TestSpotifyProvider_Identity_Errors(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		meStatus   int
		meBody     map[string]any
		wantStatus int
	}{
		{
			name:       "expired_access_token",
			token:      "stale",
			meStatus:   http.StatusOK,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "upstream_error",
			token:      "access-1",
			meStatus:   http.StatusInternalServerError,
			meBody:     map[string]any{},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "missing_id",
			token:      "access-1",
			meStatus:   http.StatusOK,
			meBody:     map[string]any{"display_name": "Nobody"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSpotify(t)
			fake.meStatus = tt.meStatus
			if tt.meBody != nil {
				fake.meBody = tt.meBody
			}

			_, err := fake.provider().Identity(context.Background(), tt.token)

			var providerErr *ProviderError
			require.True(t, errors.As(err, &providerErr))
			assert.Equal(t, OpIdentity, providerErr.Op)
			assert.Equal(t, tt.wantStatus, providerErr.StatusCode)
		})
	}
}

func TestSpotifyProvider_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	provider := NewSpotifyProvider(ClientConfig{
		ClientID:   "client-id",
		TokenURL:   server.URL + "/api/token",
		APIBaseURL: server.URL,
		Timeout:    50 * time.Millisecond,
	})

	start := time.Now()
	_, err := provider.ExchangeCode(context.Background(), "code")

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, 0, providerErr.StatusCode)
	assert.Less(t, time.Since(start), time.Second)
}
