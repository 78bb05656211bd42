package auth

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

const testLockout = 5 * time.Minute

func testLimiter(clock *fakeClock) *Limiter {
	return NewLimiter(5, testLockout, clock.Now)
}

func TestLimiter_ThresholdTriggersLockout(t *testing.T) {
	clock := newFakeClock()
	l := testLimiter(clock)

	for i := 0; i < 4; i++ {
		decision := l.RecordFailure("alice", true)
		if decision.Triggered {
			t.Fatalf("failure %d should not trigger lockout", i+1)
		}
	}

	decision := l.RecordFailure("alice", true)
	if !decision.Triggered {
		t.Fatal("fifth failure should trigger lockout")
	}
	want := clock.Now().Add(testLockout)
	if !decision.Until.Equal(want) {
		t.Errorf("lockout until = %v, want %v", decision.Until, want)
	}

	locked, until := l.IsLocked("alice")
	if !locked {
		t.Error("account should be locked after threshold")
	}
	if !until.Equal(want) {
		t.Errorf("IsLocked until = %v, want %v", until, want)
	}
}

func TestLimiter_SuccessResetsCounter(t *testing.T) {
	clock := newFakeClock()
	l := testLimiter(clock)

	for i := 0; i < 4; i++ {
		l.RecordFailure("alice", true)
	}
	l.RecordSuccess("alice")

	// Four more failures after the reset must not lock.
	for i := 0; i < 4; i++ {
		if decision := l.RecordFailure("alice", true); decision.Triggered {
			t.Fatalf("failure %d after reset should not trigger lockout", i+1)
		}
	}
}

func TestLimiter_LockoutExpires(t *testing.T) {
	clock := newFakeClock()
	l := testLimiter(clock)

	for i := 0; i < 5; i++ {
		l.RecordFailure("alice", true)
	}
	if locked, _ := l.IsLocked("alice"); !locked {
		t.Fatal("account should be locked")
	}

	clock.Advance(testLockout - time.Second)
	if locked, _ := l.IsLocked("alice"); !locked {
		t.Error("account should still be locked before expiry")
	}

	clock.Advance(2 * time.Second)
	if locked, _ := l.IsLocked("alice"); locked {
		t.Error("lockout should have expired")
	}

	// The counter was reset when the lockout started, so a fresh set
	// of failures is needed to lock again.
	for i := 0; i < 4; i++ {
		if decision := l.RecordFailure("alice", true); decision.Triggered {
			t.Fatalf("failure %d after expiry should not re-trigger lockout", i+1)
		}
	}
	if decision := l.RecordFailure("alice", true); !decision.Triggered {
		t.Error("fifth failure after expiry should trigger a new lockout")
	}
}

func TestLimiter_FailuresWhileLockedDoNotExtend(t *testing.T) {
	clock := newFakeClock()
	l := testLimiter(clock)

	for i := 0; i < 5; i++ {
		l.RecordFailure("alice", true)
	}
	_, until := l.IsLocked("alice")

	clock.Advance(time.Minute)
	decision := l.RecordFailure("alice", true)
	if decision.Triggered {
		t.Error("failure during lockout should not start a new window")
	}
	if !decision.Until.Equal(until) {
		t.Errorf("lockout deadline moved from %v to %v", until, decision.Until)
	}
}

func TestLimiter_TracksUnknownUsernames(t *testing.T) {
	clock := newFakeClock()
	l := testLimiter(clock)

	// Usernames with no matching account still accumulate failures.
	for i := 0; i < 5; i++ {
		l.RecordFailure("no-such-user", false)
	}
	if locked, _ := l.IsLocked("no-such-user"); !locked {
		t.Error("unknown usernames should lock out like real ones")
	}
	if locked, _ := l.IsLocked("other-user"); locked {
		t.Error("lockout must be per-username")
	}
	if l.Known("no-such-user") {
		t.Error("failures without an account should not mark the username known")
	}
}

func TestLimiter_Known(t *testing.T) {
	clock := newFakeClock()
	l := testLimiter(clock)

	if l.Known("alice") {
		t.Error("untracked username should not be known")
	}

	l.RecordFailure("alice", true)
	if !l.Known("alice") {
		t.Error("failure against a real account should mark the username known")
	}

	// Knownness is sticky: a later failure flagged unknown (the
	// account was deleted mid-window) does not clear it.
	l.RecordFailure("alice", false)
	if !l.Known("alice") {
		t.Error("knownness should be sticky across failures")
	}

	l.Seed("bob", 2, nil)
	if !l.Known("bob") {
		t.Error("seeded state is persisted account state, so it is known")
	}
}

func TestLimiter_State(t *testing.T) {
	clock := newFakeClock()
	l := testLimiter(clock)

	if failures, until := l.State("alice"); failures != 0 || until != nil {
		t.Errorf("untracked username state = (%d, %v), want (0, nil)", failures, until)
	}

	for i := 0; i < 3; i++ {
		l.RecordFailure("alice", true)
	}
	if failures, until := l.State("alice"); failures != 3 || until != nil {
		t.Errorf("state after 3 failures = (%d, %v), want (3, nil)", failures, until)
	}

	l.RecordFailure("alice", true)
	l.RecordFailure("alice", true)
	failures, until := l.State("alice")
	if failures != 0 {
		t.Errorf("counter should reset when the lockout starts, got %d", failures)
	}
	want := clock.Now().Add(testLockout)
	if until == nil || !until.Equal(want) {
		t.Errorf("lockout deadline = %v, want %v", until, want)
	}

	clock.Advance(testLockout + time.Second)
	if _, until := l.State("alice"); until != nil {
		t.Errorf("expired lockout should report a nil deadline, got %v", until)
	}
}

func TestLimiter_Seed(t *testing.T) {
	clock := newFakeClock()
	l := testLimiter(clock)

	future := clock.Now().Add(2 * time.Minute)
	l.Seed("alice", 0, &future)
	if locked, until := l.IsLocked("alice"); !locked || !until.Equal(future) {
		t.Errorf("seeded lockout not honoured: locked=%v until=%v", locked, until)
	}

	past := clock.Now().Add(-time.Minute)
	l.Seed("bob", 0, &past)
	if locked, _ := l.IsLocked("bob"); locked {
		t.Error("expired persisted lockout should be ignored")
	}

	l.Seed("carol", 3, nil)
	if decision := l.RecordFailure("carol", true); decision.Attempts != 4 {
		t.Errorf("seeded failure count not continued: attempts = %d, want 4", decision.Attempts)
	}
}

func TestLimiter_ConcurrentUsernames(t *testing.T) {
	clock := newFakeClock()
	l := testLimiter(clock)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", n)
			for j := 0; j < 5; j++ {
				l.RecordFailure(user, true)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 32; i++ {
		user := fmt.Sprintf("user-%d", i)
		if locked, _ := l.IsLocked(user); !locked {
			t.Errorf("%s should be locked", user)
		}
	}
}
