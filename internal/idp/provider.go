package idp

import (
	"context"
	"time"
)

// Identity is the authenticated user as reported by the provider's
// current-user endpoint. It is fetched on every login and refresh and
// never cached.
type Identity struct {
	ProviderType string `json:"provider_type"`
	Subject      string `json:"sub"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Picture      string `json:"picture,omitempty"`
}

// TokenSet is the provider's answer to a code exchange or refresh.
// RefreshToken carries the previous value when the provider did not rotate it.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    time.Duration
}

// Provider abstracts identity provider operations.
type Provider interface {
	// Type returns the provider type identifier (e.g., "spotify", "github").
	Type() string

	// AuthURL generates the authorization URL for the OAuth flow.
	AuthURL(state string) string

	// ExchangeCode exchanges an authorization code for tokens.
	ExchangeCode(ctx context.Context, code string) (*TokenSet, error)

	// Refresh obtains a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)

	// Identity fetches the user owning accessToken.
	Identity(ctx context.Context, accessToken string) (*Identity, error)
}
