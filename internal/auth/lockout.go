package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Lockout defaults.
const (
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 2 * time.Hour

	// lockoutWriteTimeout bounds a counter write once it is detached from
	// the request context.
	lockoutWriteTimeout = 5 * time.Second
)

// LockoutPolicy sets when an account locks and for how long.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy locks an account for 2 hours after 5 failures.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: DefaultLockoutThreshold, Duration: DefaultLockoutDuration}
}

// LockState is the lockout status of one account.
type LockState struct {
	Attempts    int
	LockedUntil *time.Time
}

// Locked reports whether the state is locked at now.
func (s LockState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// Lockout tracks failed verifications per account. Counters live with the
// credential record; an expired lock is released lazily on the next look.
type Lockout struct {
	store  LockoutStore
	policy LockoutPolicy
	now    Clock
}

// LockoutOption customises a Lockout.
type LockoutOption func(*Lockout)

// WithLockoutClock replaces the lockout's time source.
func WithLockoutClock(now Clock) LockoutOption {
	return func(l *Lockout) { l.now = now }
}

// NewLockout creates a lockout manager over store.
func NewLockout(store LockoutStore, policy LockoutPolicy, opts ...LockoutOption) *Lockout {
	if policy.Threshold <= 0 {
		policy.Threshold = DefaultLockoutThreshold
	}
	if policy.Duration <= 0 {
		policy.Duration = DefaultLockoutDuration
	}
	l := &Lockout{store: store, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the lockout policy.
func (l *Lockout) Policy() LockoutPolicy {
	return l.policy
}

// Check returns the effective state of id at now. A lock that has expired
// reads as active with 0 attempts. An active lock returns an AccountLocked
// error.
func (l *Lockout) Check(id *Identity, now time.Time) (LockState, error) {
	if id.LockUntil == nil {
		return LockState{Attempts: id.LoginAttempts}, nil
	}
	if !id.LockUntil.After(now) {
		return LockState{}, nil
	}
	until := *id.LockUntil
	return LockState{Attempts: id.LoginAttempts, LockedUntil: &until}, AccountLocked(until, now)
}

// RecordFailure counts one failed verification for id and updates id with
// the stored result. The write is detached from ctx cancellation so a
// finished verification is always counted.
func (l *Lockout) RecordFailure(ctx context.Context, id *Identity) (LockState, error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockoutWriteTimeout)
	defer cancel()

	state, err := l.store.RecordFailedLogin(wctx, id.ID, l.policy.Threshold, l.policy.Duration, l.now())
	if err != nil {
		return LockState{}, fmt.Errorf("recording failed login: %w", err)
	}
	id.LoginAttempts = state.Attempts
	id.LockUntil = state.LockedUntil
	return state, nil
}

// RecordSuccess resets the counters of id and stamps its last login.
// It returns an AccountLocked error if a concurrent failure locked the account
// after it was checked.
func (l *Lockout) RecordSuccess(ctx context.Context, id *Identity) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockoutWriteTimeout)
	defer cancel()

	now := l.now()
	if err := l.store.RecordSuccessfulLogin(wctx, id.ID, now); err != nil {
		if errors.Is(err, ErrAccountLocked) {
			until := now.Add(l.policy.Duration)
			if id.LockUntil != nil {
				until = *id.LockUntil
			}
			return AccountLocked(until, now)
		}
		return fmt.Errorf("recording successful login: %w", err)
	}

	t := now.UTC().Truncate(time.Second)
	id.LoginAttempts = 0
	id.LockUntil = nil
	id.LastLogin = &t
	return nil
}

// Unlock releases the lock on userID immediately.
func (l *Lockout) Unlock(ctx context.Context, userID string) error {
	if err := l.store.ClearLockout(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("clearing lockout: %w", err)
	}
	return nil
}
