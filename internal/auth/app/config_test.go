package app

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, vars map[string]string) (Config, error) {
	t.Helper()
	return parseConfig(env.Options{Environment: vars})
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := parse(t, map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "auth.db", cfg.DatabaseFile)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL())
	assert.Equal(t, time.Hour, cfg.ResetTTL())
	assert.Equal(t, int64(100), cfg.RateLimitUser)
	assert.Equal(t, int64(200), cfg.RateLimitIP)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.False(t, cfg.TrustProxy)
	assert.True(t, cfg.OAuthMergeByEmail)
	assert.Equal(t, 90*24*time.Hour, cfg.AuditRetention)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProd())
}

func TestParseConfig_Overrides(t *testing.T) {
	cfg, err := parse(t, map[string]string{
		"ENV":                         "prod",
		"PORT":                        "9000",
		"AUTH_DATABASE_DRIVER":        "postgres",
		"AUTH_DATABASE_URL":           "postgres://auth@db/auth",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "5",
		"RATE_LIMIT_WINDOW":           "30s",
		"RATE_LIMIT_TRUST_PROXY":      "true",
		"CORS_ALLOWED_ORIGINS":        "https://app.example.com,https://admin.example.com",
		"GOOGLE_CLIENT_ID":            "gid",
		"GOOGLE_CLIENT_SECRET":        "gsecret",
		"GOOGLE_REDIRECT_URI":         "https://auth.example.com/auth/google/callback",
	})
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowedOrigins)

	assert.Equal(t, "gid", cfg.Google.ClientID)
	assert.Equal(t, "gsecret", cfg.Google.ClientSecret)
	assert.Equal(t, "https://auth.example.com/auth/google/callback", cfg.Google.RedirectURI)
	assert.Empty(t, cfg.Facebook.ClientID)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"unknown env", map[string]string{"ENV": "qa"}, "ENV must be"},
		{"port", map[string]string{"PORT": "70000"}, "PORT out of range"},
		{"driver", map[string]string{"AUTH_DATABASE_DRIVER": "mysql"}, "AUTH_DATABASE_DRIVER"},
		{"postgres without url", map[string]string{"AUTH_DATABASE_DRIVER": "postgres"}, "AUTH_DATABASE_URL"},
		{"algorithm", map[string]string{"JWT_ALGORITHM": "RS256"}, "JWT_ALGORITHM"},
		{"short secret", map[string]string{"JWT_SECRET_KEY": "short"}, "JWT_SECRET_KEY"},
		{"zero ttl", map[string]string{"ACCESS_TOKEN_EXPIRE_MINUTES": "0"}, "ACCESS_TOKEN_EXPIRE_MINUTES"},
		{"zero user limit", map[string]string{"RATE_LIMIT_USER": "0"}, "RATE_LIMIT_USER"},
		{"partial provider", map[string]string{"FACEBOOK_CLIENT_ID": "fid"}, "FACEBOOK_CLIENT_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseConfig_ReportsEveryError(t *testing.T) {
	_, err := parse(t, map[string]string{
		"PORT":               "0",
		"RATE_LIMIT_IP":      "-1",
		"MFA_ENROLLMENT_TTL": "0s",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "RATE_LIMIT_IP")
	assert.Contains(t, err.Error(), "MFA_ENROLLMENT_TTL")
}

func TestParseConfig_MalformedValue(t *testing.T) {
	_, err := parse(t, map[string]string{"PORT": "eighty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}
