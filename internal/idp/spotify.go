package idp

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// DefaultSpotifyScopes is requested when no scopes are configured.
var DefaultSpotifyScopes = []string{
	"user-read-email",
	"user-read-private",
	"user-top-read",
	"user-read-recently-played",
	"playlist-read-private",
}

const spotifyAPIBaseURL = "https://api.spotify.com/v1"

// SpotifyProvider implements the Provider interface for Spotify accounts.
type SpotifyProvider struct {
	oauthClient
}

type spotifyUserResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Images      []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// NewSpotifyProvider creates a new Spotify OAuth provider.
func NewSpotifyProvider(cfg ClientConfig) *SpotifyProvider {
	return &SpotifyProvider{
		oauthClient: newOAuthClient(cfg, endpoints.Spotify, DefaultSpotifyScopes, spotifyAPIBaseURL),
	}
}

// Type returns the provider type.
func (p *SpotifyProvider) Type() string {
	return "spotify"
}

// AuthURL generates the authorization URL. Spotify otherwise skips the
// consent screen for returning users, which makes account switching
// impossible.
func (p *SpotifyProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *SpotifyProvider) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	return p.exchange(ctx, code)
}

// Refresh obtains a new access token.
func (p *SpotifyProvider) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	return p.refresh(ctx, refreshToken)
}

// Identity fetches the current user from /me.
func (p *SpotifyProvider) Identity(ctx context.Context, accessToken string) (*Identity, error) {
	var user spotifyUserResponse
	if err := p.getJSON(ctx, accessToken, "/me", &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, &ProviderError{Op: OpIdentity, StatusCode: 200, Err: errMissingSubject}
	}

	identity := &Identity{
		ProviderType: p.Type(),
		Subject:      user.ID,
		Name:         user.DisplayName,
		Email:        user.Email,
	}
	if identity.Name == "" {
		identity.Name = user.ID
	}
	if len(user.Images) > 0 {
		identity.Picture = user.Images[0].URL
	}
	return identity, nil
}
