package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	httpapi "github.com/aussiebroadwan/budg/internal/auth/http"
	"github.com/aussiebroadwan/budg/internal/auth/oauth"
	"github.com/aussiebroadwan/budg/internal/auth/ratelimit"
	"github.com/aussiebroadwan/budg/internal/auth/service"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/budg/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/budg/pkg/cryptox"
	"github.com/aussiebroadwan/budg/pkg/httpx"
	"github.com/aussiebroadwan/budg/pkg/jwtx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X ...app.BuildVersion=...".
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      store.Store
	signer  *jwtx.HMAC
	sealer  *cryptox.Sealer
	hasher  *cryptox.Hasher
	redis   *redis.Client // nil when counters are in process
	counter ratelimit.Counter
	limiter *ratelimit.Limiter

	// Services
	credentialService   *service.CredentialService
	tokenService        *service.TokenService
	mfaService          *service.MFAService
	loginService        *service.LoginService
	resetService        *service.PasswordResetService
	oauthService        *service.OAuthService
	gate                *service.Gate
	admission           *service.Admission
	housekeepingService *service.HousekeepingService

	providers *oauth.Registry
	states    *oauth.StateStore

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCrypto(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initRateLimiter(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initOAuth()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.DatabaseDriver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL, postgres.DefaultPool)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initCrypto loads the pepper, the token signing key and the master key
func (app *Application) initCrypto() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper, cryptox.DefaultArgon2Params)

	if app.signer, err = InitSigningKey(app.cfg, app.logger); err != nil {
		return err
	}
	if app.sealer, err = InitSealer(app.cfg, app.logger); err != nil {
		return fmt.Errorf("failed to initialize master key: %w", err)
	}
	return nil
}

// initRateLimiter selects the shared Redis counter store, or the in-process
// one when REDIS_URL is empty.
func (app *Application) initRateLimiter() error {
	if app.cfg.RedisURL == "" {
		app.counter = ratelimit.NewMemoryCounter()
		app.logger.Warn("REDIS_URL not set, rate-limit counters are per process")
	} else {
		client, err := ratelimit.NewRedisClient(app.cfg.RedisURL)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to reach redis: %w", err)
		}

		app.redis = client
		app.counter = ratelimit.NewRedisCounter(client)
		app.logger.Info("rate-limit counters in redis")
	}

	app.limiter = ratelimit.New(app.counter)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Signer:    app.signer,
		Verifier:  app.signer,
		Issuer:    app.cfg.Issuer,
		AccessTTL: app.cfg.AccessTTL(),
		ResetTTL:  app.cfg.ResetTTL(),
	}

	app.credentialService = &service.CredentialService{Store: app.db, Hasher: app.hasher}
	app.mfaService = &service.MFAService{
		Store:         app.db,
		Sealer:        app.sealer,
		Issuer:        app.cfg.MFAIssuer,
		EnrollmentTTL: app.cfg.MFAEnrollmentTTL,
	}
	app.loginService = &service.LoginService{
		Credentials: app.credentialService,
		MFA:         app.mfaService,
		Tokens:      app.tokenService,
	}
	app.resetService = &service.PasswordResetService{
		Store:  app.db,
		Tokens: app.tokenService,
		Hasher: app.hasher,
		Mailer: service.LogMailer{Logger: app.logger},
	}
	app.oauthService = &service.OAuthService{
		Store:        app.db,
		Tokens:       app.tokenService,
		MergeByEmail: app.cfg.OAuthMergeByEmail,
	}
	app.gate = &service.Gate{Tokens: app.tokenService, Store: app.db}
	app.admission = &service.Admission{
		Limiter:      app.limiter,
		Tokens:       app.tokenService,
		UserLimit:    app.cfg.RateLimitUser,
		AddressLimit: app.cfg.RateLimitIP,
		Window:       app.cfg.RateLimitWindow,
	}

	var sweepers []service.Sweeper
	if s, ok := app.counter.(service.Sweeper); ok {
		sweepers = append(sweepers, s)
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
		sweepers...,
	)
}

// initOAuth registers the providers that have credentials configured
func (app *Application) initOAuth() {
	var providers []oauth.Provider
	if c := providerConfig(app.cfg.Google); c.Enabled() {
		providers = append(providers, oauth.NewGoogle(c))
	}
	if c := providerConfig(app.cfg.Facebook); c.Enabled() {
		providers = append(providers, oauth.NewFacebook(c))
	}

	app.providers = oauth.NewRegistry(providers...)
	app.states = oauth.NewStateStore(0, oauth.DefaultStateTTL)
	app.logger.Info("oauth providers configured", "providers", app.providers.Names())
}

func providerConfig(c OAuthProviderConfig) oauth.Config {
	return oauth.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.db, app.logger, httpapi.Options{
		BuildVersion: BuildVersion,
		TrustProxy:   app.cfg.TrustProxy,
		FrontendURL:  app.cfg.FrontendURL,
		StrictLimit: httpx.RateLimitConfig{
			RequestsPerWindow: app.cfg.StrictRequests,
			Window:            app.cfg.StrictWindow,
			Burst:             app.cfg.StrictBurst,
		},
	})

	// Wire services to router
	router.Credentials = app.credentialService
	router.Tokens = app.tokenService
	router.LoginService = app.loginService
	router.MFAService = app.mfaService
	router.ResetService = app.resetService
	router.OAuthService = app.oauthService
	router.Gate = app.gate
	router.Admission = app.admission
	router.Limiter = app.limiter
	router.Providers = app.providers
	router.States = app.states
	router.ApplyRoutes()

	app.router = router

	var handler http.Handler = router
	if len(app.cfg.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   app.cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", slogx.RequestIDHeader},
			ExposedHeaders:   []string{"Retry-After", slogx.RequestIDHeader},
			AllowCredentials: true,
		}).Handler(router)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
