// Package ratelimit tracks failed authentication attempts in a shared TTL
// key-value store, keyed both by identity (email) and by network origin, so
// limiting holds across horizontally scaled instances.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// CounterStore is an expiring integer counter store (Redis in production).
// Increment must set ttl when it creates the key, and must not extend the ttl
// on later increments within the window.
type CounterStore interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}

// Reason says which counter tripped the limit. It is for internal logs and
// metrics only; callers surface a single generic rate-limit error so responses
// do not reveal whether the identity or the origin is throttled.
type Reason string

const (
	ReasonIdentity Reason = "identity"
	ReasonOrigin   Reason = "origin"
)

// Decision is the outcome of CheckAllowed.
type Decision struct {
	Allowed bool
	Reason  Reason // set when denied
	// Degraded is true when the counter store was unreachable and the
	// limiter fell back to its failure policy.
	Degraded bool
}

// Config holds limiter thresholds and policy.
type Config struct {
	// IdentityMax failed attempts per identity key within Window deny further
	// attempts; OriginMax is the looser per-origin cap. Two independent
	// thresholds: one leaked credential cannot be brute-forced from a single
	// origin, and a botnet spreading across origins is still capped per identity.
	IdentityMax int
	OriginMax   int
	Window      time.Duration
	// FailOpen makes store outages degrade to "allow" with a logged warning
	// instead of denying logins. An unreachable counter store must never
	// become a denial-of-service vector against legitimate users; the
	// trade-off is brute-force exposure for the duration of the outage.
	FailOpen bool
	// StoreTimeout bounds each counter store round-trip.
	StoreTimeout time.Duration
}

const (
	identityKeyPrefix = "rate_limit:email:"
	originKeyPrefix   = "rate_limit:ip:"

	defaultIdentityMax  = 5
	defaultOriginMax    = 10
	defaultWindow       = 15 * time.Minute
	defaultStoreTimeout = 500 * time.Millisecond
)

// Limiter enforces the failed-attempt thresholds. All state lives in the
// shared store; the Limiter itself is stateless and safe for concurrent use.
type Limiter struct {
	store  CounterStore
	cfg    Config
	logger *slog.Logger
}

// NewLimiter returns a Limiter over the given store. Zero-valued Config
// fields get the platform defaults (5 per identity, 10 per origin, 15m window).
func NewLimiter(store CounterStore, cfg Config, logger *slog.Logger) *Limiter {
	if cfg.IdentityMax <= 0 {
		cfg.IdentityMax = defaultIdentityMax
	}
	if cfg.OriginMax <= 0 {
		cfg.OriginMax = defaultOriginMax
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{store: store, cfg: cfg, logger: logger}
}

// CheckAllowed reports whether an authentication attempt for the given
// identity and origin may proceed. Store failures never surface as errors:
// under FailOpen the attempt is allowed and the degradation is logged.
//
// Check-then-record is not atomic against a concurrent duplicate check; two
// simultaneous bad attempts can both pass before either records. The
// increments still land, so the window closes one attempt later at worst.
// That approximation is accepted rather than paying for a distributed lock.
func (l *Limiter) CheckAllowed(ctx context.Context, identity, origin string) Decision {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	identityCount, err := l.store.Get(ctx, identityKeyPrefix+identity)
	if err != nil {
		return l.degraded("check identity counter", err)
	}
	if identityCount >= int64(l.cfg.IdentityMax) {
		return Decision{Allowed: false, Reason: ReasonIdentity}
	}

	originCount, err := l.store.Get(ctx, originKeyPrefix+origin)
	if err != nil {
		return l.degraded("check origin counter", err)
	}
	if originCount >= int64(l.cfg.OriginMax) {
		return Decision{Allowed: false, Reason: ReasonOrigin}
	}

	return Decision{Allowed: true}
}

// RecordFailure increments both counters, starting a fresh window for a
// counter that does not exist yet. Best-effort: store failures are logged.
func (l *Limiter) RecordFailure(ctx context.Context, identity, origin string) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	if _, err := l.store.Increment(ctx, identityKeyPrefix+identity, l.cfg.Window); err != nil {
		l.logger.Warn("rate limiter: record identity failure", "error", err)
	}
	if _, err := l.store.Increment(ctx, originKeyPrefix+origin, l.cfg.Window); err != nil {
		l.logger.Warn("rate limiter: record origin failure", "error", err)
	}
}

// Clear deletes both counters, restoring the full attempt budget immediately
// after a successful authentication. Best-effort: store failures are logged.
func (l *Limiter) Clear(ctx context.Context, identity, origin string) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.StoreTimeout)
	defer cancel()

	if err := l.store.Delete(ctx, identityKeyPrefix+identity, originKeyPrefix+origin); err != nil {
		l.logger.Warn("rate limiter: clear counters", "error", err)
	}
}

func (l *Limiter) degraded(op string, err error) Decision {
	if l.cfg.FailOpen {
		l.logger.Warn("rate limiter degraded, allowing attempt", "op", op, "error", err)
		return Decision{Allowed: true, Degraded: true}
	}
	l.logger.Error("rate limiter store unavailable, denying attempt", "op", op, "error", err)
	return Decision{Allowed: false, Reason: ReasonIdentity, Degraded: true}
}
