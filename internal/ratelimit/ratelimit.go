// Package ratelimit provides per-key outbound throttling for calls to LLM
// providers and external MCP servers, built on golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a Limiter. Disabled by default, matching the service's
// stance that throttling is an operator opt-in, not a hard dependency.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	KeyTimeout        time.Duration
}

// DefaultConfig returns sensible, disabled-by-default settings.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		RequestsPerSecond: 10.0,
		BurstSize:         20,
		KeyTimeout:        5 * time.Minute,
	}
}

// Limiter throttles outbound calls per key (provider name or MCP server URL).
// A disabled Limiter's Wait is a no-op.
type Limiter struct {
	cfg    Config
	mu     sync.Mutex
	perKey map[string]*entry
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// New constructs a Limiter. When cfg.Enabled is false, Wait never blocks.
func New(cfg Config) *Limiter {
	if cfg.KeyTimeout == 0 {
		cfg.KeyTimeout = 5 * time.Minute
	}
	return &Limiter{cfg: cfg, perKey: make(map[string]*entry)}
}

// Wait blocks until a token is available for key, or returns ctx.Err() if the
// context is cancelled first. No-op when the limiter is disabled.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if !l.cfg.Enabled {
		return nil
	}
	lim := l.limiterFor(key)
	return lim.Wait(ctx)
}

func (l *Limiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.perKey[key]; ok {
		e.lastAccess = time.Now()
		return e.limiter
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.BurstSize)
	l.perKey[key] = &entry{limiter: lim, lastAccess: time.Now()}
	l.evictLocked()
	return lim
}

func (l *Limiter) evictLocked() {
	cutoff := time.Now().Add(-l.cfg.KeyTimeout)
	for k, e := range l.perKey {
		if e.lastAccess.Before(cutoff) {
			delete(l.perKey, k)
		}
	}
}
