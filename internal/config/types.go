package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// Provider types understood by the idp factory.
const (
	ProviderSpotify = "spotify"
	ProviderGitHub  = "github"
)

// SupportedProviders lists the values accepted for OAUTH_PROVIDER.
var SupportedProviders = []string{ProviderSpotify, ProviderGitHub}

// Config is the whole process configuration, read from the environment.
type Config struct {
	Port        int      `env:"APP_PORT"     envDefault:"3000"`
	AppEnv      string   `env:"APP_ENV"`
	NodeEnv     string   `env:"NODE_ENV"`
	FrontendURL string   `env:"FRONTEND_URL"`
	CORSOrigins []string `env:"CORS_ORIGIN"  envDefault:"http://localhost:3000" envSeparator:","`

	JWTSecret     Secret `env:"APP_JWT_SECRET"`
	EncryptionKey Secret `env:"ENCRYPTION_KEY"`
	DatabaseURL   Secret `env:"DATABASE_URL"`

	Provider  ProviderConfig
	RateLimit RateLimitConfig

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// ProviderConfig configures the upstream OAuth2 identity provider.
// Empty endpoint overrides fall back to the provider's public endpoints.
type ProviderConfig struct {
	Type         string        `env:"OAUTH_PROVIDER"      envDefault:"spotify"`
	ClientID     string        `env:"OAUTH_CLIENT_ID"`
	ClientSecret Secret        `env:"OAUTH_CLIENT_SECRET"`
	RedirectURI  string        `env:"OAUTH_REDIRECT_URI"`
	Scopes       []string      `env:"OAUTH_SCOPES"        envSeparator:","`
	AuthURL      string        `env:"OAUTH_AUTH_URL"`
	TokenURL     string        `env:"OAUTH_TOKEN_URL"`
	APIBaseURL   string        `env:"OAUTH_API_BASE_URL"`
	Timeout      time.Duration `env:"PROVIDER_TIMEOUT"    envDefault:"30s"`
}

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	PerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	Burst     int `env:"RATE_LIMIT_BURST"      envDefault:"60"`
}

// Environment returns APP_ENV, falling back to NODE_ENV, then "development".
func (c Config) Environment() string {
	if env := strings.TrimSpace(c.AppEnv); env != "" {
		return strings.ToLower(env)
	}
	if env := strings.TrimSpace(c.NodeEnv); env != "" {
		return strings.ToLower(env)
	}
	return "development"
}

// IsProduction reports whether cookies must carry the Secure attribute.
func (c Config) IsProduction() bool {
	return c.Environment() == "production"
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
