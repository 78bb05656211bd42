package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
// Usernames are case-sensitive; "Admin" and "admin" are distinct accounts.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleAdmin has full dashboard control including user management
	// and the audit trail.
	RoleAdmin Role = "admin"

	// RoleUser is a regular dashboard operator: all sensor data,
	// exports, and security readings, but no user management.
	RoleUser Role = "user"

	// RoleViewer has read-only access to the dashboard and the basic
	// sensor feed.
	RoleViewer Role = "viewer"
)

// ValidRoles is the closed set of account roles.
var ValidRoles = []Role{RoleAdmin, RoleUser, RoleViewer}

// IsValidRole returns true if the role is a member of the closed role set.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Account represents a stored user account.
// PasswordHash and Salt are never serialised.
type Account struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	PasswordHash   []byte     `json:"-"`
	Salt           []byte     `json:"-"`
	Role           Role       `json:"role"`
	Enabled        bool       `json:"enabled"`
	CreatedBy      string     `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FailedAttempts int        `json:"-"`
	LockoutUntil   *time.Time `json:"-"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
}

// AccountSummary is the listing view of an account. It carries no
// password material. FailedAttempts and LockedUntil reflect the live
// limiter state so administrators can see who is locked out.
type AccountSummary struct {
	Username       string     `json:"username"`
	Role           Role       `json:"role"`
	Enabled        bool       `json:"enabled"`
	CreatedBy      string     `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
}

// Session represents a live authenticated session.
//
// Role is a snapshot taken at login: changing an account's role (or
// deleting the account) does not affect sessions already issued. The
// new role applies from the next login.
type Session struct {
	Token        string    `json:"token"`
	Username     string    `json:"username"`
	Role         Role      `json:"role"`
	IssuedAt     time.Time `json:"issued_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Clock supplies wall time to time-dependent components. Injecting it
// keeps lockout and expiry behaviour deterministic under test.
type Clock func() time.Time

// Sentinel errors for auth operations. All are recoverable by the
// caller; none is process-fatal.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrNotFound           = errors.New("account not found")
	ErrSessionExpired     = errors.New("session has expired")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrPasswordTooShort   = errors.New("password below minimum length")
	ErrProtectedAccount   = errors.New("built-in admin account cannot be modified this way")
	ErrSelfDeletion       = errors.New("cannot delete own account")
)
