package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// sessionShards is the number of lock stripes for the session table.
const sessionShards = 64

// tokenBytes is the entropy per session token; tokens are hex-encoded
// to 64 characters.
const tokenBytes = 32

type sessionShard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// Manager holds live sessions in memory, keyed by opaque token. A
// process restart drops every session; clients simply log in again.
//
// Expiry is sliding: each validated touch pushes the deadline out by
// the idle timeout.
type Manager struct {
	shards      [sessionShards]sessionShard
	idleTimeout time.Duration
	clock       Clock
}

// NewManager creates a session manager with the given idle timeout.
func NewManager(idleTimeout time.Duration, clock Clock) *Manager {
	if clock == nil {
		clock = time.Now
	}
	m := &Manager{
		idleTimeout: idleTimeout,
		clock:       clock,
	}
	for i := range m.shards {
		m.shards[i].sessions = make(map[string]*Session)
	}
	return m
}

func (m *Manager) shard(token string) *sessionShard {
	h := fnv.New32a()
	h.Write([]byte(token)) //nolint:errcheck // never fails
	return &m.shards[h.Sum32()%sessionShards]
}

// newToken generates an unguessable session token.
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create issues a new session for an authenticated account. The role
// is snapshotted; later role changes do not affect this session.
func (m *Manager) Create(username string, role Role) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := m.clock()
	s := &Session{
		Token:        token,
		Username:     username,
		Role:         role,
		IssuedAt:     now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.idleTimeout),
	}

	sh := m.shard(token)
	sh.mu.Lock()
	sh.sessions[token] = s
	sh.mu.Unlock()

	out := *s
	return &out, nil
}

// Touch validates a token and, if the session is live, slides its
// expiry forward. Expired sessions are evicted on sight.
func (m *Manager) Touch(token string) (*Session, error) {
	sh := m.shard(token)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}

	now := m.clock()
	if now.After(s.ExpiresAt) {
		delete(sh.sessions, token)
		return nil, ErrSessionExpired
	}

	s.LastActivity = now
	s.ExpiresAt = now.Add(m.idleTimeout)

	out := *s
	return &out, nil
}

// Revoke removes a session and returns it for audit context. Revoking
// an unknown or already-revoked token returns nil; logout is
// idempotent.
func (m *Manager) Revoke(token string) *Session {
	sh := m.shard(token)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[token]
	if !ok {
		return nil
	}
	delete(sh.sessions, token)

	out := *s
	return &out
}

// Sweep evicts sessions whose idle deadline has passed and returns how
// many were removed. Run periodically so abandoned sessions do not
// accumulate between touches.
func (m *Manager) Sweep() int {
	now := m.clock()
	removed := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		for token, s := range sh.sessions {
			if now.After(s.ExpiresAt) {
				delete(sh.sessions, token)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Count returns the number of sessions currently held, including any
// that have expired but not yet been swept.
func (m *Manager) Count() int {
	total := 0
	for i := range m.shards {
		sh := &m.shards[i]
		sh.mu.Lock()
		total += len(sh.sessions)
		sh.mu.Unlock()
	}
	return total
}
