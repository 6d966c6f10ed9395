// Package security provides password verification and login lockout tracking.
//
// Purpose:
//   This package verifies member passwords against the hash formats found in
//   Galette databases and tracks failed login attempts in Redis so that a
//   login is locked after too many failures.
//
// Dependencies:
//   - github.com/redis/go-redis/v9: Redis client for tracking attempts
//   - golang.org/x/crypto: bcrypt and argon2id
//
// Key Responsibilities:
//   - CheckPassword: verify a plaintext password against a stored hash
//   - TrackFailedAttempt: increment the failed attempt counter for a login
//   - IsLocked: report whether a login is currently locked
//   - ClearAttempts: reset counters on successful login
//
package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutTracker tracks failed authentication attempts and enforces lockout policies.
type LockoutTracker struct {
	client *redis.Client
	cfg    LockoutConfig
}

// LockoutConfig contains lockout policy configuration.
type LockoutConfig struct {
	MaxAttempts     int           // Maximum failed attempts before lockout
	LockoutDuration time.Duration // Duration of lockout
	WindowDuration  time.Duration // Time window for counting attempts
}

// NewLockoutTracker creates a new lockout tracker. A nil client disables tracking.
func NewLockoutTracker(client *redis.Client, cfg LockoutConfig) *LockoutTracker {
	return &LockoutTracker{
		client: client,
		cfg:    cfg,
	}
}

// Logins are matched case-insensitively, like Galette does.
func (t *LockoutTracker) attemptsKey(login string) string {
	return fmt.Sprintf("lockout:attempts:%s", strings.ToLower(login))
}

func (t *LockoutTracker) lockedKey(login string) string {
	return fmt.Sprintf("lockout:locked:%s", strings.ToLower(login))
}

// TrackFailedAttempt increments the failed attempt counter for a login.
// Returns the current count and whether the login is now locked.
func (t *LockoutTracker) TrackFailedAttempt(ctx context.Context, login string) (int, bool, error) {
	if t == nil || t.client == nil || t.cfg.MaxAttempts <= 0 {
		return 0, false, nil
	}

	key := t.attemptsKey(login)
	pipe := t.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.cfg.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, fmt.Errorf("lockout tracker: failed to increment counter: %w", err)
	}

	count := incr.Val()
	if count < int64(t.cfg.MaxAttempts) {
		return int(count), false, nil
	}

	if err := t.client.Set(ctx, t.lockedKey(login), count, t.cfg.LockoutDuration).Err(); err != nil {
		return int(count), true, fmt.Errorf("lockout tracker: failed to record lockout: %w", err)
	}
	return int(count), true, nil
}

// IsLocked reports whether the login is inside an active lockout period.
func (t *LockoutTracker) IsLocked(ctx context.Context, login string) (bool, error) {
	if t == nil || t.client == nil {
		return false, nil
	}
	n, err := t.client.Exists(ctx, t.lockedKey(login)).Result()
	if err != nil {
		return false, fmt.Errorf("lockout tracker: failed to read lockout: %w", err)
	}
	return n > 0, nil
}

// GetFailedAttemptCount returns the current failed attempt count for a login.
func (t *LockoutTracker) GetFailedAttemptCount(ctx context.Context, login string) (int, error) {
	if t == nil || t.client == nil {
		return 0, nil
	}
	count, err := t.client.Get(ctx, t.attemptsKey(login)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lockout tracker: failed to get count: %w", err)
	}
	return count, nil
}

// ClearAttempts resets the failed attempt counter and any lockout for a login.
func (t *LockoutTracker) ClearAttempts(ctx context.Context, login string) error {
	if t == nil || t.client == nil {
		return nil
	}
	pipe := t.client.TxPipeline()
	pipe.Del(ctx, t.attemptsKey(login))
	pipe.Del(ctx, t.lockedKey(login))
	_, err := pipe.Exec(ctx)
	return err
}
