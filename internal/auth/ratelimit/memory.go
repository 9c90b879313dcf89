package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is a process-local Counter for single-replica deployments
// and development. Expired windows linger until Sweep is called.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*memWindow
	now     func() time.Time
}

type memWindow struct {
	count   int64
	expires time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{windows: make(map[string]*memWindow), now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (c *MemoryCounter) WithClock(now func() time.Time) *MemoryCounter {
	c.now = now
	return c
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	w, ok := c.windows[key]
	if !ok || !now.Before(w.expires) {
		w = &memWindow{expires: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return w.count, w.expires.Sub(now), nil
}

func (c *MemoryCounter) Ping(context.Context) error { return nil }

// Sweep drops expired windows and reports how many were removed.
func (c *MemoryCounter) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, w := range c.windows {
		if !now.Before(w.expires) {
			delete(c.windows, k)
			n++
		}
	}
	return n
}
