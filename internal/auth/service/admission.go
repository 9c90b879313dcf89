package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/metrics"
	"github.com/aussiebroadwan/budg/internal/auth/ratelimit"
)

const (
	DefaultUserLimit    = 100
	DefaultAddressLimit = 200
	DefaultWindow       = time.Minute
)

// RateLimitedError carries how long the caller should back off.
type RateLimitedError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded", e.Scope)
}

func (e *RateLimitedError) Unwrap() error {
	return domain.ErrRateLimited.WithMessage(e.Error())
}

// Admission applies the per-principal and per-address request limits. Both
// must pass.
type Admission struct {
	Limiter      *ratelimit.Limiter
	Tokens       *TokenService
	UserLimit    int64
	AddressLimit int64
	Window       time.Duration
}

// Admit counts one request from addr, and from the principal behind bearer
// when it is a valid access token.
func (a *Admission) Admit(ctx context.Context, bearer, addr string) error {
	window := a.Window
	if window <= 0 {
		window = DefaultWindow
	}

	if bearer = strings.TrimSpace(bearer); bearer != "" {
		if claims, err := a.Tokens.Validate(bearer, domain.PurposeAccess); err == nil {
			key := ratelimit.Key(ratelimit.ScopeUser, claims.Subject)
			if err := a.check(ctx, ratelimit.ScopeUser, key, orDefault(a.UserLimit, DefaultUserLimit), window); err != nil {
				return err
			}
		}
	}

	if addr == "" {
		addr = "unknown"
	}
	key := ratelimit.Key(ratelimit.ScopeAddress, addr)
	return a.check(ctx, ratelimit.ScopeAddress, key, orDefault(a.AddressLimit, DefaultAddressLimit), window)
}

func (a *Admission) check(ctx context.Context, scope, key string, limit int64, window time.Duration) error {
	d, err := a.Limiter.Admit(ctx, key, limit, window)
	if err != nil {
		metrics.RateLimitErrorsTotal.Inc()
		return err
	}
	if !d.Allowed {
		metrics.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
		return &RateLimitedError{Scope: scope, RetryAfter: d.RetryAfter}
	}
	return nil
}

func orDefault(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}
