package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// minSecretLength is the shortest APP_JWT_SECRET accepted without a warning.
const minSecretLength = 32

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue. Path is the environment
// variable at fault.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationResult) addWarning(path, format string, args ...any) {
	v.Warnings = append(v.Warnings, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateConfig returns the first violation found in config, if any.
func ValidateConfig(config *Config) error {
	result := Validate(config)
	if !result.IsValid() {
		return result.Errors[0]
	}
	return nil
}

// Validate checks every setting and collects all errors and warnings.
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{}

	if config.Port < 1 || config.Port > 65535 {
		result.addError("APP_PORT", "must be between 1 and 65535 (got %d)", config.Port)
	}

	validateProvider(&config.Provider, result)

	secret := strings.TrimSpace(string(config.JWTSecret))
	switch {
	case secret == "":
		result.addError("APP_JWT_SECRET", "is required. Generate with: openssl rand -base64 32")
	case len(secret) < minSecretLength:
		result.addWarning("APP_JWT_SECRET", "is shorter than %d characters", minSecretLength)
	}

	if config.FrontendURL == "" {
		result.addError("FRONTEND_URL", "is required")
	} else if u, err := parseAbsoluteURL(config.FrontendURL); err != nil {
		result.addError("FRONTEND_URL", "%v", err)
	} else {
		if u.RawQuery != "" || u.Fragment != "" {
			result.addError("FRONTEND_URL", "must not carry a query or fragment")
		}
		if config.IsProduction() && u.Scheme != "https" {
			result.addWarning("FRONTEND_URL", "is not https in production")
		}
	}

	for _, origin := range config.CORSOrigins {
		if _, err := parseAbsoluteURL(origin); err != nil {
			result.addError("CORS_ORIGIN", "invalid origin %q: %v", origin, err)
		}
	}

	if config.EncryptionKey == "" && config.IsProduction() {
		result.addWarning("ENCRYPTION_KEY", "is not set; refresh tokens are stored in cookies unsealed")
	}

	if config.RateLimit.PerMinute <= 0 {
		result.addError("RATE_LIMIT_PER_MINUTE", "must be positive (got %d)", config.RateLimit.PerMinute)
	}
	if config.RateLimit.Burst <= 0 {
		result.addError("RATE_LIMIT_BURST", "must be positive (got %d)", config.RateLimit.Burst)
	}

	if !slices.Contains([]string{"error", "warn", "warning", "info", "debug", "trace"}, strings.ToLower(config.LogLevel)) {
		result.addError("LOG_LEVEL", "unsupported level %q", config.LogLevel)
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(config.LogFormat)) {
		result.addError("LOG_FORMAT", "unsupported format %q (use text or json)", config.LogFormat)
	}

	return result
}

func validateProvider(p *ProviderConfig, result *ValidationResult) {
	if !slices.Contains(SupportedProviders, p.Type) {
		result.addError("OAUTH_PROVIDER", "unsupported provider %q (supported: %s)", p.Type, strings.Join(SupportedProviders, ", "))
	}
	if p.ClientID == "" {
		result.addError("OAUTH_CLIENT_ID", "is required")
	}
	if p.ClientSecret == "" {
		result.addError("OAUTH_CLIENT_SECRET", "is required")
	}
	if p.RedirectURI == "" {
		result.addError("OAUTH_REDIRECT_URI", "is required")
	} else if _, err := parseAbsoluteURL(p.RedirectURI); err != nil {
		result.addError("OAUTH_REDIRECT_URI", "%v", err)
	}

	overrides := []struct {
		name  string
		value string
	}{
		{"OAUTH_AUTH_URL", p.AuthURL},
		{"OAUTH_TOKEN_URL", p.TokenURL},
		{"OAUTH_API_BASE_URL", p.APIBaseURL},
	}
	for _, o := range overrides {
		if o.value == "" {
			continue
		}
		if _, err := parseAbsoluteURL(o.value); err != nil {
			result.addError(o.name, "%v", err)
		}
	}

	if p.Timeout <= 0 {
		result.addError("PROVIDER_TIMEOUT", "must be positive (got %s)", p.Timeout)
	}
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL %q has no host", raw)
	}
	return u, nil
}
