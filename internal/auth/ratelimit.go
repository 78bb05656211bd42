package auth

import (
	"hash/fnv"
	"sync"
	"time"
)

// limiterShards is the number of lock stripes. Failure tracking for
// different usernames contends only within a stripe, never globally.
const limiterShards = 64

// LockoutDecision is the outcome of recording a login failure.
type LockoutDecision struct {
	// Triggered is true when this failure crossed the threshold and
	// started a new lockout window.
	Triggered bool

	// Until is the lockout deadline, set when Triggered is true or the
	// account was already locked.
	Until time.Time

	// Attempts is the failure count after this recording.
	Attempts int
}

type loginState struct {
	failures     int
	lockoutUntil time.Time

	// known is true when at least one tracked failure matched a real
	// account. Failures on nonexistent usernames are tracked (so they
	// lock out too) but audited under a placeholder name.
	known bool
}

type limiterShard struct {
	mu     sync.Mutex
	states map[string]*loginState
}

// Limiter tracks consecutive login failures per username and enforces
// a temporary lockout once the threshold is crossed. State is held in
// memory and sharded by username hash; the caller persists decisions
// for known accounts so lockouts survive restarts.
type Limiter struct {
	shards    [limiterShards]limiterShard
	threshold int
	duration  time.Duration
	clock     Clock
}

// NewLimiter creates a limiter that locks a username out for duration
// after threshold consecutive failures.
func NewLimiter(threshold int, duration time.Duration, clock Clock) *Limiter {
	if clock == nil {
		clock = time.Now
	}
	l := &Limiter{
		threshold: threshold,
		duration:  duration,
		clock:     clock,
	}
	for i := range l.shards {
		l.shards[i].states = make(map[string]*loginState)
	}
	return l
}

func (l *Limiter) shard(username string) *limiterShard {
	h := fnv.New32a()
	h.Write([]byte(username)) //nolint:errcheck // never fails
	return &l.shards[h.Sum32()%limiterShards]
}

// RecordFailure counts a failed login attempt. Crossing the threshold
// starts a lockout window and resets the counter, so a fresh set of
// attempts is needed after the lockout expires. known marks whether
// the username matched a real account.
func (l *Limiter) RecordFailure(username string, known bool) LockoutDecision {
	sh := l.shard(username)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[username]
	if !ok {
		st = &loginState{}
		sh.states[username] = st
	}
	st.known = st.known || known

	now := l.clock()
	if now.Before(st.lockoutUntil) {
		// Already locked; the failure does not extend the window.
		return LockoutDecision{Until: st.lockoutUntil, Attempts: st.failures}
	}

	st.failures++
	if st.failures >= l.threshold {
		st.lockoutUntil = now.Add(l.duration)
		st.failures = 0
		return LockoutDecision{Triggered: true, Until: st.lockoutUntil}
	}

	return LockoutDecision{Attempts: st.failures}
}

// RecordSuccess clears a username's failure state after a successful
// authentication.
func (l *Limiter) RecordSuccess(username string) {
	sh := l.shard(username)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.states, username)
}

// IsLocked reports whether a username is currently locked out, and if
// so until when. An expired lockout is cleared as a side effect.
func (l *Limiter) IsLocked(username string) (bool, time.Time) {
	sh := l.shard(username)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[username]
	if !ok {
		return false, time.Time{}
	}

	if l.clock().Before(st.lockoutUntil) {
		return true, st.lockoutUntil
	}

	st.lockoutUntil = time.Time{}
	if st.failures == 0 {
		delete(sh.states, username)
	}
	return false, time.Time{}
}

// Known reports whether the tracked failures for a username were ever
// recorded against a real account. It is false for usernames that
// locked themselves out without matching any account.
func (l *Limiter) Known(username string) bool {
	sh := l.shard(username)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[username]
	return ok && st.known
}

// State returns the current failure count and lockout deadline for a
// username. The deadline is nil when no lockout is active.
func (l *Limiter) State(username string) (int, *time.Time) {
	sh := l.shard(username)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[username]
	if !ok {
		return 0, nil
	}
	if l.clock().Before(st.lockoutUntil) {
		until := st.lockoutUntil
		return st.failures, &until
	}
	return st.failures, nil
}

// Seed primes a username's state from persisted records at startup.
// Expired lockouts are ignored.
func (l *Limiter) Seed(username string, failures int, lockoutUntil *time.Time) {
	sh := l.shard(username)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	// Persisted state only exists for real accounts.
	st := &loginState{failures: failures, known: true}
	if lockoutUntil != nil && l.clock().Before(*lockoutUntil) {
		st.lockoutUntil = *lockoutUntil
	}
	if st.failures == 0 && st.lockoutUntil.IsZero() {
		return
	}
	sh.states[username] = st
}
