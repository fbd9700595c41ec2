package idp

import (
	"fmt"
	"net/http"

	"github.com/dgellow/oauth-front/internal/config"
)

// NewProvider creates a Provider based on the ProviderConfig. httpClient
// may be nil.
func NewProvider(cfg config.ProviderConfig, httpClient *http.Client) (Provider, error) {
	clientCfg := ClientConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: string(cfg.ClientSecret),
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		APIBaseURL:   cfg.APIBaseURL,
		Timeout:      cfg.Timeout,
		HTTPClient:   httpClient,
	}

	switch cfg.Type {
	case config.ProviderSpotify:
		return NewSpotifyProvider(clientCfg), nil

	case config.ProviderGitHub:
		return NewGitHubProvider(clientCfg), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
