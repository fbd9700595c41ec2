package server

import (
	"net/http"

	"github.com/dgellow/oauth-front/internal/auth"
	jsonwriter "github.com/dgellow/oauth-front/internal/json"
	"github.com/dgellow/oauth-front/internal/metrics"
)

// RouterConfig holds everything the HTTP surface is built from.
// RateLimiter and ReadinessChecks are optional.
type RouterConfig struct {
	Flow            *auth.Flow
	Metrics         *metrics.Metrics
	ReadinessChecks map[string]ReadinessCheck
	CORSOrigins     []string
	RateLimiter     *RateLimiter
	HSTS            bool
}

// NewRouter registers the auth, health and metrics routes and wraps them
// in the shared middleware stack.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	authRoute := func(h http.HandlerFunc) http.Handler {
		handler := requireProvider(cfg.Flow.ProviderType(), h)
		if cfg.RateLimiter != nil {
			handler = NewRateLimitMiddleware(cfg.RateLimiter)(handler)
		}
		return handler
	}

	mux.Handle("GET /auth/{provider}/login", authRoute(cfg.Flow.LoginHandler))
	mux.Handle("GET /auth/{provider}/callback", authRoute(cfg.Flow.CallbackHandler))
	mux.Handle("POST /auth/{provider}/refresh", authRoute(cfg.Flow.RefreshHandler))
	mux.Handle("GET /auth/{provider}/me", authRoute(cfg.Flow.MeHandler))
	mux.Handle("POST /auth/{provider}/logout", authRoute(cfg.Flow.LogoutHandler))

	mux.Handle("GET /healthz", NewHealthHandler())
	mux.Handle("GET /readyz", NewReadyHandler(cfg.ReadinessChecks))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		jsonwriter.WriteNotFound(w, "Not found")
	})

	return ChainMiddleware(mux,
		NewMetricsMiddleware(cfg.Metrics),
		NewSecurityHeadersMiddleware(cfg.HSTS),
		NewCORSMiddleware(cfg.CORSOrigins),
		NewLoggerMiddleware("http"),
		NewRecoverMiddleware("http"),
	)
}

// requireProvider answers 404 unless the {provider} path segment names the
// configured provider.
func requireProvider(providerType string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("provider") != providerType {
			jsonwriter.WriteNotFound(w, "Unknown provider")
			return
		}
		next(w, r)
	})
}
