package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/oauth-front/internal/ioutil"
	"golang.org/x/oauth2"
)

const (
	// defaultTimeout bounds a single provider call when none is configured.
	defaultTimeout = 30 * time.Second

	errorBodyLimit = 256
)

// ClientConfig holds the settings shared by every provider implementation.
// Empty endpoint fields fall back to the provider's public endpoints.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	AuthURL    string
	TokenURL   string
	APIBaseURL string

	Timeout    time.Duration
	HTTPClient *http.Client
}

// oauthClient implements token exchange, refresh and authenticated API
// calls on top of x/oauth2. Providers embed it and add identity mapping.
type oauthClient struct {
	config     oauth2.Config
	apiBaseURL string
	timeout    time.Duration
	httpClient *http.Client
}

func newOAuthClient(cfg ClientConfig, endpoint oauth2.Endpoint, defaultScopes []string, defaultAPIBaseURL string) oauthClient {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// Client credentials travel in the form body.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}

	apiBaseURL := defaultAPIBaseURL
	if cfg.APIBaseURL != "" {
		apiBaseURL = cfg.APIBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return oauthClient{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		timeout:    timeout,
		httpClient: httpClient,
	}
}

// callContext bounds ctx by the per-call timeout and routes oauth2's
// requests through our HTTP client.
func (c *oauthClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return context.WithTimeout(ctx, c.timeout)
}

func (c *oauthClient) exchange(ctx context.Context, code string) (*TokenSet, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	token, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, newProviderError(OpExchange, err)
	}
	return tokenSetFrom(token), nil
}

func (c *oauthClient) refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	// An empty access token forces the source to hit the token endpoint.
	token, err := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, newProviderError(OpRefresh, err)
	}
	return tokenSetFrom(token), nil
}

// getJSON issues one bearer-authenticated GET against the provider API and
// decodes the JSON body into out.
func (c *oauthClient) getJSON(ctx context.Context, accessToken, path string, out any) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	client := c.config.Client(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return newProviderError(OpIdentity, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return newProviderError(OpIdentity, fmt.Errorf("failed to get %s: %w", path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ProviderError{
			Op:         OpIdentity,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to get %s: %s", path, ioutil.ReadSnippet(resp.Body, errorBodyLimit)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{
			Op:         OpIdentity,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode %s: %w", path, err),
		}
	}
	return nil
}

func tokenSetFrom(token *oauth2.Token) *TokenSet {
	set := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if scope, ok := token.Extra("scope").(string); ok {
		set.Scope = scope
	}
	switch {
	case token.ExpiresIn > 0:
		set.ExpiresIn = time.Duration(token.ExpiresIn) * time.Second
	case !token.Expiry.IsZero():
		set.ExpiresIn = time.Until(token.Expiry).Round(time.Second)
	}
	return set
}
