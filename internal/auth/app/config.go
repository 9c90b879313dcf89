package app

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env                  string        `env:"ENV" envDefault:"dev"`                        // dev, staging, prod
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`                 // debug, info, warn, error
	LogFormat            string        `env:"LOG_FORMAT" envDefault:"json"`                // json, text
	Port                 int           `env:"PORT" envDefault:"8080"`                      // HTTP server port
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`      // Graceful shutdown timeout
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`       // Audit pruning and counter sweeps
	AuditRetention       time.Duration `env:"AUDIT_RETENTION" envDefault:"2160h"`          // 90 days
	Issuer               string        `env:"AUTH_ISSUER" envDefault:"budg-auth"`          // iss claim of every token
	DatabaseDriver       string        `env:"AUTH_DATABASE_DRIVER" envDefault:"sqlite"`    // sqlite, postgres
	DatabaseFile         string        `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`     // sqlite only
	DatabaseURL          string        `env:"AUTH_DATABASE_URL"`                           // postgres only
	PepperFile           string        `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`        // Created on first start
	MasterKey            string        `env:"AUTH_MASTER_KEY"`                             // Hex, seals TOTP secrets
	MasterKeyPath        string        `env:"AUTH_MASTER_KEY_PATH"`                        // Wins over AUTH_MASTER_KEY
	JWTSecret            string        `env:"JWT_SECRET_KEY"`                              // Ephemeral outside prod when empty
	JWTAlgorithm         string        `env:"JWT_ALGORITHM" envDefault:"HS256"`            // HS256, HS384, HS512
	AccessTokenMinutes   int           `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"30"` // Access token lifetime
	ResetTokenMinutes    int           `env:"RESET_TOKEN_EXPIRE_MINUTES" envDefault:"60"`  // Reset token lifetime

	// Global admission. An empty RedisURL keeps counters in process, which
	// is only correct for a single replica.
	RedisURL        string        `env:"REDIS_URL"`
	RateLimitUser   int64         `env:"RATE_LIMIT_USER" envDefault:"100"`
	RateLimitIP     int64         `env:"RATE_LIMIT_IP" envDefault:"200"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	// Only enable behind a proxy that overwrites X-Forwarded-For; otherwise
	// clients pick their own address and escape the per-address limits.
	TrustProxy bool `env:"RATE_LIMIT_TRUST_PROXY" envDefault:"false"`

	// Per-route brute-force limiter on credential endpoints.
	StrictRequests int           `env:"RATELIMIT_STRICT_REQUESTS" envDefault:"5"`
	StrictWindow   time.Duration `env:"RATELIMIT_STRICT_WINDOW" envDefault:"1m"`
	StrictBurst    int           `env:"RATELIMIT_STRICT_BURST" envDefault:"5"`

	MFAIssuer        string        `env:"MFA_ISSUER" envDefault:"Budg"`
	MFAEnrollmentTTL time.Duration `env:"MFA_ENROLLMENT_TTL" envDefault:"10m"`

	OAuthMergeByEmail  bool     `env:"OAUTH_MERGE_BY_EMAIL" envDefault:"true"`
	FrontendURL        string   `env:"FRONTEND_URL"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	Google   OAuthProviderConfig `envPrefix:"GOOGLE_"`
	Facebook OAuthProviderConfig `envPrefix:"FACEBOOK_"`
}

// OAuthProviderConfig is one external identity provider. A provider without
// credentials is not offered.
type OAuthProviderConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURI  string `env:"REDIRECT_URI"`
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	return parseConfig(env.Options{})
}

func parseConfig(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func (c Config) ResetTTL() time.Duration {
	return time.Duration(c.ResetTokenMinutes) * time.Minute
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(slices.Contains([]string{"dev", "staging", "prod"}, c.Env), "ENV must be dev, staging or prod, got %q", c.Env)
	check(c.Port > 0 && c.Port < 65536, "PORT out of range: %d", c.Port)
	check(c.Issuer != "", "AUTH_ISSUER must not be empty")

	switch c.DatabaseDriver {
	case "sqlite":
		check(c.DatabaseFile != "", "AUTH_DATABASE_FILE is required for the sqlite driver")
	case "postgres":
		check(c.DatabaseURL != "", "AUTH_DATABASE_URL is required for the postgres driver")
	default:
		check(false, "AUTH_DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}

	check(slices.Contains([]string{"HS256", "HS384", "HS512"}, c.JWTAlgorithm),
		"JWT_ALGORITHM must be HS256, HS384 or HS512, got %q", c.JWTAlgorithm)
	check(c.JWTSecret == "" || len(c.JWTSecret) >= 32, "JWT_SECRET_KEY must be at least 32 bytes")
	check(c.AccessTokenMinutes > 0, "ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	check(c.ResetTokenMinutes > 0, "RESET_TOKEN_EXPIRE_MINUTES must be positive")

	check(c.RateLimitUser > 0, "RATE_LIMIT_USER must be positive")
	check(c.RateLimitIP > 0, "RATE_LIMIT_IP must be positive")
	check(c.RateLimitWindow > 0, "RATE_LIMIT_WINDOW must be positive")
	check(c.StrictRequests > 0 && c.StrictWindow > 0, "RATELIMIT_STRICT_REQUESTS and RATELIMIT_STRICT_WINDOW must be positive")

	check(c.MFAEnrollmentTTL > 0, "MFA_ENROLLMENT_TTL must be positive")
	check(c.ShutdownGracePeriod > 0, "SHUTDOWN_GRACE_PERIOD must be positive")
	check(c.HousekeepingInterval > 0, "HOUSEKEEPING_INTERVAL must be positive")
	check(c.AuditRetention > 0, "AUDIT_RETENTION must be positive")

	for name, p := range map[string]OAuthProviderConfig{"GOOGLE": c.Google, "FACEBOOK": c.Facebook} {
		if p.ClientID != "" || p.ClientSecret != "" {
			check(p.ClientID != "" && p.ClientSecret != "" && p.RedirectURI != "",
				"%s_CLIENT_ID, %s_CLIENT_SECRET and %s_REDIRECT_URI must be set together", name, name, name)
		}
	}

	return errors.Join(errs...)
}
