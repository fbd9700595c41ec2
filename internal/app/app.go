package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/oauth-front/internal/auth"
	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/cookie"
	"github.com/dgellow/oauth-front/internal/crypto"
	"github.com/dgellow/oauth-front/internal/database"
	"github.com/dgellow/oauth-front/internal/idp"
	"github.com/dgellow/oauth-front/internal/log"
	"github.com/dgellow/oauth-front/internal/metrics"
	"github.com/dgellow/oauth-front/internal/server"
	"github.com/dgellow/oauth-front/internal/session"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second

	// startupPingTimeout bounds the database probe in New. An unreachable
	// database is reported but does not stop the service.
	startupPingTimeout = 5 * time.Second
)

// App is the assembled service: one provider, one HTTP surface.
type App struct {
	config     config.Config
	handler    http.Handler
	httpServer *server.HTTPServer
	db         *database.DB
}

// New builds every dependency from cfg. A missing signing secret is a
// *session.ConfigurationError and the caller should exit.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := log.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}

	log.LogInfoWithFields("app", "Building oauth-front", map[string]any{
		"provider":    cfg.Provider.Type,
		"environment": cfg.Environment(),
	})

	provider, err := idp.NewProvider(cfg.Provider, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	codec, err := session.NewCodec(string(cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	var sealer *crypto.Sealer
	if cfg.EncryptionKey != "" {
		sealer, err = crypto.NewSealer(string(cfg.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create refresh token sealer: %w", err)
		}
	} else {
		log.LogWarnWithFields("app", "ENCRYPTION_KEY not set, refresh tokens are stored unsealed", nil)
	}

	m := metrics.New()

	checks := map[string]server.ReadinessCheck{}
	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(string(cfg.DatabaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to setup database: %w", err)
		}
		checks["database"] = db.Healthy

		pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
		if err := db.Healthy(pingCtx); err != nil {
			log.LogWarnWithFields("app", "Database not reachable at startup", map[string]any{
				"error": err.Error(),
			})
		}
		cancel()
	}

	flow, err := auth.NewFlow(auth.FlowConfig{
		Provider:    provider,
		Codec:       codec,
		Jar:         cookie.NewJar(cfg.IsProduction()),
		FrontendURL: cfg.FrontendURL,
		Sealer:      sealer,
		Metrics:     m,
	})
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to create auth flow: %w", err)
	}

	handler := server.NewRouter(server.RouterConfig{
		Flow:            flow,
		Metrics:         m,
		ReadinessChecks: checks,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimiter:     server.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
		HSTS:            cfg.IsProduction(),
	})

	return &App{
		config:     cfg,
		handler:    handler,
		httpServer: server.NewHTTPServer(handler, cfg.Addr()),
		db:         db,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives, or the server
// fails, then shuts down within shutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.config.Addr())
	if err != nil {
		closeDB(a.db)
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	log.LogInfoWithFields("app", "Server listening", map[string]any{
		"addr":     ln.Addr().String(),
		"provider": a.config.Provider.Type,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.httpServer.Serve(ln); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		reason := "context cancelled"
		if cause := context.Cause(gctx); cause != nil && !errors.Is(cause, context.Canceled) {
			reason = cause.Error()
		}
		log.LogInfoWithFields("app", "Starting graceful shutdown", map[string]any{
			"reason":  reason,
			"timeout": shutdownTimeout.String(),
		})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := a.httpServer.Stop(shutdownCtx)
		closeDB(a.db)
		if err != nil {
			log.LogErrorWithFields("app", "HTTP server shutdown error", map[string]any{
				"error": err.Error(),
			})
			return err
		}

		log.LogInfoWithFields("app", "Application shutdown complete", nil)
		return nil
	})

	return g.Wait()
}

func closeDB(db *database.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.LogWarnWithFields("app", "Failed to close database", map[string]any{
			"error": err.Error(),
		})
	}
}
