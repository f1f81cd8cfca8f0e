package auth

import (
	"context"
	"sync"
	"time"
)

// ThrottlePolicy is a fixed-window attempt budget.
type ThrottlePolicy struct {
	MaxAttempts int
	Window      time.Duration

	// MaxEntries bounds the number of tracked identifiers. Zero means
	// DefaultThrottleMaxEntries.
	MaxEntries int
}

// Throttle defaults.
const (
	DefaultThrottleMaxEntries = 100_000
	defaultSweepInterval      = time.Minute
)

// LoginThrottlePolicy allows 5 login attempts per 15 minutes.
func LoginThrottlePolicy() ThrottlePolicy {
	return ThrottlePolicy{MaxAttempts: 5, Window: 15 * time.Minute}
}

// RegisterThrottlePolicy allows 3 registrations per hour.
func RegisterThrottlePolicy() ThrottlePolicy {
	return ThrottlePolicy{MaxAttempts: 3, Window: time.Hour}
}

type throttleEntry struct {
	count   int
	resetAt time.Time
}

// Throttle counts attempts per identifier in fixed windows. The window is a
// hard cliff: when it ends the budget is restored in full.
//
// Thread Safety: all methods are safe for concurrent use. The
// read-increment-write in Allow happens under one lock, so concurrent calls
// for one identifier never admit more than MaxAttempts.
type Throttle struct {
	name   string
	policy ThrottlePolicy
	now    Clock

	mu      sync.Mutex
	entries map[string]*throttleEntry
}

// ThrottleOption customises a Throttle.
type ThrottleOption func(*Throttle)

// WithThrottleClock replaces the throttle's time source.
func WithThrottleClock(now Clock) ThrottleOption {
	return func(t *Throttle) { t.now = now }
}

// NewThrottle creates a throttle. name distinguishes namespaces in logs.
func NewThrottle(name string, policy ThrottlePolicy, opts ...ThrottleOption) *Throttle {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.MaxEntries <= 0 {
		policy.MaxEntries = DefaultThrottleMaxEntries
	}
	t := &Throttle{
		name:    name,
		policy:  policy,
		now:     time.Now,
		entries: make(map[string]*throttleEntry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the namespace name.
func (t *Throttle) Name() string {
	return t.name
}

// Policy returns the throttle's policy.
func (t *Throttle) Policy() ThrottlePolicy {
	return t.policy
}

// Allow records an attempt for id and reports whether it is admitted.
// A denied attempt does not increment the counter.
func (t *Throttle) Allow(id string) bool {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || now.After(e.resetAt) {
		if !ok && len(t.entries) >= t.policy.MaxEntries {
			t.makeRoomLocked(now)
		}
		t.entries[id] = &throttleEntry{count: 1, resetAt: now.Add(t.policy.Window)}
		return true
	}

	if e.count < t.policy.MaxAttempts {
		e.count++
		return true
	}
	return false
}

// Remaining returns the attempts left for id in its current window.
func (t *Throttle) Remaining(id string) int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok || now.After(e.resetAt) {
		return t.policy.MaxAttempts
	}
	if left := t.policy.MaxAttempts - e.count; left > 0 {
		return left
	}
	return 0
}

// ResetTime returns when id's current window ends. ok is false when id has
// no live window.
func (t *Throttle) ResetTime(id string) (resetAt time.Time, ok bool) {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	e, found := t.entries[id]
	if !found || now.After(e.resetAt) {
		return time.Time{}, false
	}
	return e.resetAt, true
}

// Reset forgets id.
func (t *Throttle) Reset(id string) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// Len returns the number of tracked identifiers, expired ones included.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Sweep removes expired entries and returns how many were removed.
func (t *Throttle) Sweep() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sweepLocked(now)
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// uses one minute.
func (t *Throttle) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

func (t *Throttle) sweepLocked(now time.Time) int {
	removed := 0
	for id, e := range t.entries {
		if now.After(e.resetAt) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// makeRoomLocked frees one slot: expired entries go first, otherwise the
// entry whose window ends soonest is evicted.
func (t *Throttle) makeRoomLocked(now time.Time) {
	if t.sweepLocked(now) > 0 {
		return
	}
	var (
		oldestID string
		oldest   time.Time
		found    bool
	)
	for id, e := range t.entries {
		if !found || e.resetAt.Before(oldest) {
			oldestID, oldest, found = id, e.resetAt, true
		}
	}
	if found {
		delete(t.entries, oldestID)
	}
}
