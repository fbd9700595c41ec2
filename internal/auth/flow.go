package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgellow/oauth-front/internal/cookie"
	"github.com/dgellow/oauth-front/internal/crypto"
	"github.com/dgellow/oauth-front/internal/idp"
	jsonwriter "github.com/dgellow/oauth-front/internal/json"
	"github.com/dgellow/oauth-front/internal/log"
	"github.com/dgellow/oauth-front/internal/metrics"
	"github.com/dgellow/oauth-front/internal/session"
)

const (
	// StateTTL is how long a login attempt may take before the callback.
	StateTTL = 10 * time.Minute

	// RefreshTTL is the lifetime of the refresh token cookie.
	RefreshTTL = 30 * 24 * time.Hour
)

// Error codes appended to the frontend URL on failed logins.
const (
	ErrorCodeStateMismatch = "state_mismatch"
	ErrorCodeOAuthFailed   = "oauth_failed"
)

// ErrStateMismatch means the callback could not be tied to a login started
// by this browser.
var ErrStateMismatch = errors.New("oauth state mismatch")

// errNoRefreshToken covers a missing cookie as well as one that cannot be
// opened.
var errNoRefreshToken = errors.New("no usable refresh token")

// FlowConfig wires a Flow. Sealer and Metrics are optional; GenerateState
// defaults to crypto.GenerateState.
type FlowConfig struct {
	Provider      idp.Provider
	Codec         *session.Codec
	Jar           *cookie.Jar
	GenerateState func() (string, error)
	FrontendURL   string
	Sealer        *crypto.Sealer
	Metrics       *metrics.Metrics
}

// Flow runs the authorization code flow against one provider and manages
// the session and refresh cookies. It keeps no per-user state.
type Flow struct {
	provider      idp.Provider
	codec         *session.Codec
	jar           *cookie.Jar
	generateState func() (string, error)
	frontendURL   string
	sealer        *crypto.Sealer
	metrics       *metrics.Metrics
}

// NewFlow validates cfg and builds a Flow.
func NewFlow(cfg FlowConfig) (*Flow, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("session codec is required")
	}
	if cfg.Jar == nil {
		return nil, fmt.Errorf("cookie jar is required")
	}
	frontendURL := strings.TrimSpace(cfg.FrontendURL)
	if strings.TrimRight(frontendURL, "/") == "" {
		return nil, fmt.Errorf("frontend URL is required")
	}

	generateState := cfg.GenerateState
	if generateState == nil {
		generateState = crypto.GenerateState
	}

	return &Flow{
		provider:      cfg.Provider,
		codec:         cfg.Codec,
		jar:           cfg.Jar,
		generateState: generateState,
		frontendURL:   frontendURL,
		sealer:        cfg.Sealer,
		metrics:       cfg.Metrics,
	}, nil
}

// ProviderType is the provider segment served by this flow's routes.
func (f *Flow) ProviderType() string {
	return f.provider.Type()
}

// LoginHandler starts a login: it stores a fresh state in a cookie and
// redirects the browser to the provider's consent page.
func (f *Flow) LoginHandler(w http.ResponseWriter, r *http.Request) {
	state, err := f.generateState()
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to generate OAuth state", map[string]any{
			"error": err.Error(),
		})
		f.metrics.RecordFlow("login", metrics.OutcomeFailed)
		f.redirectError(w, r, ErrorCodeOAuthFailed)
		return
	}

	f.jar.Set(w, cookie.StateCookie, state, StateTTL)
	f.metrics.RecordFlow("login", metrics.OutcomeSuccess)

	log.LogDebugWithFields("auth", "Redirecting to provider", map[string]any{
		"provider": f.provider.Type(),
	})
	http.Redirect(w, r, f.provider.AuthURL(state), http.StatusFound)
}

// CallbackHandler completes a login started by LoginHandler.
func (f *Flow) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	stored, _ := f.jar.Get(r, cookie.StateCookie)

	if err := validateState(query.Get("state"), stored); err != nil {
		log.LogWarnWithFields("auth", "Rejected OAuth callback", map[string]any{
			"reason": err.Error(),
		})
		f.metrics.RecordFlow("callback", metrics.OutcomeRejected)
		f.redirectError(w, r, ErrorCodeStateMismatch)
		return
	}

	code := query.Get("code")
	if code == "" {
		log.LogWarnWithFields("auth", "Rejected OAuth callback", map[string]any{
			"reason": "missing code",
		})
		f.metrics.RecordFlow("callback", metrics.OutcomeRejected)
		f.redirectError(w, r, ErrorCodeStateMismatch)
		return
	}

	refreshValue, credential, identity, err := f.completeLogin(r.Context(), code)
	if err != nil {
		log.LogErrorWithFields("auth", "OAuth callback failed", map[string]any{
			"provider": f.provider.Type(),
			"error":    err.Error(),
		})
		f.metrics.RecordFlow("callback", metrics.OutcomeFailed)
		f.redirectError(w, r, ErrorCodeOAuthFailed)
		return
	}

	if refreshValue != "" {
		f.jar.Set(w, cookie.RefreshCookie, refreshValue, RefreshTTL)
	} else {
		log.LogWarnWithFields("auth", "Provider returned no refresh token", map[string]any{
			"subject": identity.Subject,
		})
	}
	f.jar.Set(w, cookie.SessionCookie, credential, session.TTL)
	f.jar.Clear(w, cookie.StateCookie)

	log.LogInfoWithFields("auth", "User authenticated", map[string]any{
		"provider": f.provider.Type(),
		"subject":  identity.Subject,
	})
	f.metrics.RecordFlow("callback", metrics.OutcomeSuccess)
	http.Redirect(w, r, f.frontendURL, http.StatusFound)
}

// completeLogin exchanges the code, looks up the user and mints the
// session. Nothing is written to the response here, so a failure at any
// step leaves no cookies behind.
func (f *Flow) completeLogin(ctx context.Context, code string) (refreshValue, credential string, identity *idp.Identity, err error) {
	start := time.Now()
	tokens, err := f.provider.ExchangeCode(ctx, code)
	f.metrics.ObserveProvider(string(idp.OpExchange), err, time.Since(start))
	if err != nil {
		return "", "", nil, err
	}

	identity, credential, err = f.mintSession(ctx, tokens.AccessToken)
	if err != nil {
		return "", "", nil, err
	}

	if tokens.RefreshToken != "" {
		refreshValue, err = f.sealRefreshToken(tokens.RefreshToken)
		if err != nil {
			return "", "", nil, err
		}
	}
	return refreshValue, credential, identity, nil
}

// RefreshHandler mints a new session credential from the refresh token
// cookie. Responds {"ok": true} or 401 {"ok": false}.
func (f *Flow) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := f.refreshTokenFrom(r)
	if err != nil {
		log.LogDebugWithFields("auth", "Refresh without usable cookie", map[string]any{
			"reason": err.Error(),
		})
		f.metrics.RecordFlow("refresh", metrics.OutcomeRejected)
		jsonwriter.WriteStatus(w, http.StatusUnauthorized, false)
		return
	}

	ctx := r.Context()
	start := time.Now()
	tokens, err := f.provider.Refresh(ctx, refreshToken)
	f.metrics.ObserveProvider(string(idp.OpRefresh), err, time.Since(start))
	if err != nil {
		f.refreshFailed(w, err)
		return
	}

	identity, credential, err := f.mintSession(ctx, tokens.AccessToken)
	if err != nil {
		f.refreshFailed(w, err)
		return
	}

	var rotated string
	if tokens.RefreshToken != "" && tokens.RefreshToken != refreshToken {
		rotated, err = f.sealRefreshToken(tokens.RefreshToken)
		if err != nil {
			f.refreshFailed(w, err)
			return
		}
	}

	if rotated != "" {
		f.jar.Set(w, cookie.RefreshCookie, rotated, RefreshTTL)
	}
	f.jar.Set(w, cookie.SessionCookie, credential, session.TTL)

	log.LogInfoWithFields("auth", "Session refreshed", map[string]any{
		"subject": identity.Subject,
		"rotated": rotated != "",
	})
	f.metrics.RecordFlow("refresh", metrics.OutcomeSuccess)
	jsonwriter.WriteStatus(w, http.StatusOK, true)
}

func (f *Flow) refreshFailed(w http.ResponseWriter, err error) {
	log.LogWarnWithFields("auth", "Refresh failed", map[string]any{
		"provider": f.provider.Type(),
		"error":    err.Error(),
	})
	f.metrics.RecordFlow("refresh", metrics.OutcomeFailed)
	jsonwriter.WriteStatus(w, http.StatusUnauthorized, false)
}

// meResponse is the body of a successful identity lookup.
type meResponse struct {
	User *session.Claims `json:"user"`
}

// MeHandler returns the claims of the caller's session. The credential is
// read from the session cookie, falling back to a bearer header.
func (f *Flow) MeHandler(w http.ResponseWriter, r *http.Request) {
	credential, ok := f.jar.Get(r, cookie.SessionCookie)
	if !ok {
		credential, ok = bearerToken(r)
	}
	if !ok {
		f.metrics.RecordFlow("me", metrics.OutcomeRejected)
		jsonwriter.WriteUnauthorizedBearer(w, session.Issuer)
		return
	}

	claims, err := f.codec.Verify(credential)
	if err != nil {
		log.LogDebugWithFields("auth", "Session rejected", map[string]any{
			"expired": session.IsExpired(err),
		})
		f.metrics.RecordFlow("me", metrics.OutcomeRejected)
		jsonwriter.WriteUnauthorizedBearer(w, session.Issuer)
		return
	}

	f.metrics.RecordFlow("me", metrics.OutcomeSuccess)
	_ = jsonwriter.Write(w, meResponse{User: claims})
}

// LogoutHandler drops the session and refresh cookies. It always succeeds.
func (f *Flow) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	f.jar.Clear(w, cookie.SessionCookie)
	f.jar.Clear(w, cookie.RefreshCookie)

	f.metrics.RecordFlow("logout", metrics.OutcomeSuccess)
	jsonwriter.WriteStatus(w, http.StatusOK, true)
}

// mintSession fetches the identity behind accessToken and signs a session
// credential for it.
func (f *Flow) mintSession(ctx context.Context, accessToken string) (*idp.Identity, string, error) {
	start := time.Now()
	identity, err := f.provider.Identity(ctx, accessToken)
	f.metrics.ObserveProvider(string(idp.OpIdentity), err, time.Since(start))
	if err != nil {
		return nil, "", err
	}

	credential, err := f.codec.Issue(session.FromIdentity(*identity), session.TTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session: %w", err)
	}
	return identity, credential, nil
}

func (f *Flow) sealRefreshToken(refreshToken string) (string, error) {
	if f.sealer == nil {
		return refreshToken, nil
	}
	sealed, err := f.sealer.Seal(refreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to seal refresh token: %w", err)
	}
	return sealed, nil
}

func (f *Flow) refreshTokenFrom(r *http.Request) (string, error) {
	value, ok := f.jar.Get(r, cookie.RefreshCookie)
	if !ok {
		return "", errNoRefreshToken
	}
	if f.sealer == nil {
		return value, nil
	}
	refreshToken, err := f.sealer.Open(value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errNoRefreshToken, err)
	}
	return refreshToken, nil
}

func (f *Flow) redirectError(w http.ResponseWriter, r *http.Request, code string) {
	base := strings.TrimRight(f.frontendURL, "/")
	http.Redirect(w, r, base+"/?error="+url.QueryEscape(code), http.StatusFound)
}

// validateState checks the callback state against the cookie set at login.
func validateState(returned, stored string) error {
	switch {
	case returned == "":
		return fmt.Errorf("%w: missing state parameter", ErrStateMismatch)
	case stored == "":
		return fmt.Errorf("%w: missing state cookie", ErrStateMismatch)
	case !crypto.EqualConstantTime(returned, stored):
		return fmt.Errorf("%w: state does not match cookie", ErrStateMismatch)
	}
	return nil
}

// bearerToken extracts the credential from an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
