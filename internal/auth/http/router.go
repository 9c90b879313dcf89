package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/budg/api/auth" // Swagger docs
	"github.com/aussiebroadwan/budg/internal/auth/metrics"
	"github.com/aussiebroadwan/budg/internal/auth/oauth"
	"github.com/aussiebroadwan/budg/internal/auth/ratelimit"
	"github.com/aussiebroadwan/budg/internal/auth/service"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/pkg/httpx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

// Options tunes router behaviour that does not come from a service.
type Options struct {
	BuildVersion string

	// TrustProxy reads the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// FrontendURL receives OAuth sign-ins at /auth/callback?token=. When
	// empty the callback answers with a JSON token instead.
	FrontendURL string

	// StrictLimit is the per-address token bucket on credential routes.
	StrictLimit httpx.RateLimitConfig
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	opts      Options
	startTime time.Time
	logger    *slog.Logger
	store     store.Store

	Credentials  *service.CredentialService
	Tokens       *service.TokenService
	LoginService *service.LoginService
	MFAService   *service.MFAService
	ResetService *service.PasswordResetService
	OAuthService *service.OAuthService
	Gate         *service.Gate
	Admission    *service.Admission // Optional: no global limits when nil
	Limiter      *ratelimit.Limiter
	Providers    *oauth.Registry
	States       *oauth.StateStore
}

func NewRouter(st store.Store, logger *slog.Logger, opts Options) *Router {
	r := &Router{
		Mux:       http.NewServeMux(),
		opts:      opts,
		startTime: time.Now(),
		store:     st,
		logger:    logger,
	}

	// metrics.Middleware must wrap the mux directly so it sees the matched
	// pattern on the request the mux was handed.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.admit,
		metrics.Middleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccount()
	r.registerPasswordReset()
	r.registerMFA()
	r.registerOAuth()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Budg Authentication Service API
//	@version		0.1.0
//	@description	Identity service for Budg: password and OAuth sign-in, TOTP multi-factor authentication and password reset.
//	@description
//	@description				Access tokens are HMAC-signed JWTs and are sent as bearer credentials.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/budg
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// strict is the brute-force limiter for credential routes, keyed by client
// address. Each call yields an independent set of buckets.
func (r *Router) strict() httpx.Middleware {
	return httpx.RateLimitMiddleware(r.opts.StrictLimit, httpx.AddressKeyExtractor(r.opts.TrustProxy))
}

func (r *Router) registerAccount() {
	h := &AccountHandler{
		Credentials: r.Credentials,
		Login:       r.LoginService,
		Clock:       r.Tokens.Clock,
	}

	r.Mux.Handle("POST /auth/register", http.HandlerFunc(h.HandleRegister))

	// POST /auth/token - strict rate limit by IP (password guessing)
	r.Mux.Handle("POST /auth/token",
		httpx.Chain(http.HandlerFunc(h.HandleToken),
			r.strict(),
		),
	)

	// GET /auth/me - MFA-enabled principals need a stepped-up token
	r.Mux.Handle("GET /auth/me",
		httpx.Chain(http.HandlerFunc(h.HandleMe),
			r.authenticate(true),
		),
	)
}

func (r *Router) registerPasswordReset() {
	h := &PasswordResetHandler{ResetService: r.ResetService}

	// One bucket set for the whole flow so token guessing on verify and
	// complete shares the budget.
	limit := r.strict()

	r.Mux.Handle("POST /auth/password-reset/request", httpx.Chain(http.HandlerFunc(h.HandleRequest), limit))
	r.Mux.Handle("POST /auth/password-reset/verify", httpx.Chain(http.HandlerFunc(h.HandleVerify), limit))
	r.Mux.Handle("POST /auth/password-reset/complete", httpx.Chain(http.HandlerFunc(h.HandleComplete), limit))
}

func (r *Router) registerMFA() {
	h := &MFAHandler{
		MFAService:   r.MFAService,
		LoginService: r.LoginService,
		Clock:        r.Tokens.Clock,
	}

	r.Mux.Handle("POST /auth/mfa/enable",
		httpx.Chain(http.HandlerFunc(h.HandleEnable),
			r.authenticate(false),
		),
	)

	// verify and disable take one-time codes - strict rate limit by IP
	r.Mux.Handle("POST /auth/mfa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			r.strict(),
			r.authenticate(false),
		),
	)
	r.Mux.Handle("POST /auth/mfa/disable",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			r.strict(),
			r.authenticate(false),
		),
	)
}

func (r *Router) registerOAuth() {
	providers := r.Providers
	if providers == nil {
		providers = oauth.NewRegistry()
	}
	states := r.States
	if states == nil {
		states = oauth.NewStateStore(0, 0)
	}

	h := &OAuthHandler{
		Providers:    providers,
		States:       states,
		OAuthService: r.OAuthService,
		FrontendURL:  r.opts.FrontendURL,
		Clock:        r.Tokens.Clock,
	}

	r.Mux.Handle("GET /auth/{provider}/login", http.HandlerFunc(h.HandleLogin))
	r.Mux.Handle("GET /auth/{provider}/callback", http.HandlerFunc(h.HandleCallback))
}

func (r *Router) registerSystem() {
	// Health check endpoints are exempt from admission so probes keep working
	// under load.
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.opts.BuildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.opts.BuildVersion, r.store, r.Limiter))
	r.Mux.Handle("GET /metrics", promhttp.Handler())
}
