// Package ratelimit implements fixed-window admission control over a shared
// counter store.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Scopes checked on every request.
const (
	ScopeUser    = "user"
	ScopeAddress = "ip"
)

// Counter atomically increments a windowed counter. The first increment of a
// key starts a window of the given length; the count resets when it ends.
type Counter interface {
	// Incr returns the count after incrementing and the time left in the
	// window.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	Ping(ctx context.Context) error
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// Limiter applies fixed-window limits over a Counter.
type Limiter struct {
	counter Counter
}

func New(c Counter) *Limiter {
	return &Limiter{counter: c}
}

// Key builds the counter key for a scope and identity.
func Key(scope, identity string) string {
	return "rate_limit:" + scope + ":" + identity
}

// Admit counts one request against key and reports whether it is within
// limit for the current window.
func (l *Limiter) Admit(ctx context.Context, key string, limit int64, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{}, errors.New("ratelimit: limit and window must be positive")
	}

	count, ttl, err := l.counter.Incr(ctx, key, window)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: incr %s: %w", key, err)
	}

	d := Decision{Allowed: count <= limit, Count: count, Limit: limit}
	if !d.Allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}

func (l *Limiter) Ping(ctx context.Context) error { return l.counter.Ping(ctx) }
