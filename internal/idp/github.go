package idp

import (
	"context"
	"strconv"

	"github.com/dgellow/oauth-front/internal/log"
	"golang.org/x/oauth2/endpoints"
)

const githubAPIBaseURL = "https://api.github.com"

// GitHubProvider implements the Provider interface for GitHub OAuth.
// GitHub uses OAuth 2.0 (not OIDC) and has its own API for user info.
type GitHubProvider struct {
	oauthClient
}

// githubUserResponse represents GitHub's user API response.
type githubUserResponse struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// githubEmailResponse represents an email from GitHub's emails API.
type githubEmailResponse struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// NewGitHubProvider creates a new GitHub OAuth provider.
func NewGitHubProvider(cfg ClientConfig) *GitHubProvider {
	return &GitHubProvider{
		oauthClient: newOAuthClient(cfg, endpoints.GitHub, []string{"read:user", "user:email"}, githubAPIBaseURL),
	}
}

// Type returns the provider type.
func (p *GitHubProvider) Type() string {
	return "github"
}

// AuthURL generates the authorization URL.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for tokens.
func (p *GitHubProvider) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	return p.exchange(ctx, code)
}

// Refresh obtains a new access token. Only GitHub Apps with expiring user
// tokens issue refresh tokens; classic OAuth apps fail here.
func (p *GitHubProvider) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	return p.refresh(ctx, refreshToken)
}

// Identity fetches user identity from GitHub's API.
func (p *GitHubProvider) Identity(ctx context.Context, accessToken string) (*Identity, error) {
	var user githubUserResponse
	if err := p.getJSON(ctx, accessToken, "/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, &ProviderError{Op: OpIdentity, StatusCode: 200, Err: errMissingSubject}
	}

	// GitHub only shows verified emails in the profile; a private email
	// has to be looked up separately. Email is optional, so a failed lookup
	// (typically a token without user:email) leaves it empty.
	email := user.Email
	if email == "" {
		primary, err := p.fetchPrimaryEmail(ctx, accessToken)
		if err != nil {
			log.LogDebugWithFields("github", "Email lookup failed", map[string]any{
				"subject": user.ID,
				"error":   err.Error(),
			})
		}
		email = primary
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}

	return &Identity{
		ProviderType: p.Type(),
		Subject:      strconv.FormatInt(user.ID, 10),
		Name:         name,
		Email:        email,
		Picture:      user.AvatarURL,
	}, nil
}

// fetchPrimaryEmail returns the primary verified address, the first
// verified one otherwise, or "" when the account has none.
func (p *GitHubProvider) fetchPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	var emails []githubEmailResponse
	if err := p.getJSON(ctx, accessToken, "/user/emails", &emails); err != nil {
		return "", err
	}

	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Email, nil
		}
	}

	// Fallback to first verified email
	for _, email := range emails {
		if email.Verified {
			return email.Email, nil
		}
	}

	return "", nil
}
