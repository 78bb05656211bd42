package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/netlabsug/campus-core/internal/audit"
)

// ProtectedUsername is the built-in administrator account. It cannot
// be deleted, demoted, or disabled.
const ProtectedUsername = "admin"

// Service orchestrates credential verification, rate limiting,
// sessions, permissions, and the audit trail behind a single API.
//
// All operations are safe for concurrent use. Audit failures are
// logged but never veto the operation that produced them.
type Service struct {
	store       Store
	limiter     *Limiter
	sessions    *Manager
	audit       audit.Recorder
	logger      *slog.Logger
	clock       Clock
	minPassword int
}

// NewService wires the auth service from its parts.
func NewService(store Store, limiter *Limiter, sessions *Manager, recorder audit.Recorder, logger *slog.Logger, clock Clock, minPasswordLength int) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:       store,
		limiter:     limiter,
		sessions:    sessions,
		audit:       recorder,
		logger:      logger,
		clock:       clock,
		minPassword: minPasswordLength,
	}
}

// Sessions exposes the session manager for background sweeping.
func (s *Service) Sessions() *Manager {
	return s.sessions
}

// Login verifies credentials and issues a session.
//
// Every failure (unknown username, wrong password, disabled
// account) returns ErrInvalidCredentials so the response never
// reveals which part was wrong. A locked account is rejected before
// the password is examined, even when the password is correct.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	if locked, until := s.limiter.IsLocked(username); locked {
		auditName := username
		if !s.limiter.Known(username) {
			auditName = audit.UnknownUser
		}
		s.record(ctx, &audit.Record{
			Event:    audit.EventLoginFailure,
			Username: auditName,
			Detail:   map[string]any{"reason": "account locked", "locked_until": until},
		})
		return nil, ErrAccountLocked
	}

	account, err := s.store.Find(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, s.loginFailure(ctx, username, nil, "unknown username")
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	if !VerifyPassword(password, account.Salt, account.PasswordHash) {
		return nil, s.loginFailure(ctx, username, account, "wrong password")
	}

	if !account.Enabled {
		return nil, s.loginFailure(ctx, username, account, "account disabled")
	}

	s.limiter.RecordSuccess(username)
	if err := s.store.SaveLoginState(ctx, username, 0, nil); err != nil {
		s.logger.Warn("clearing login state failed", "username", username, "error", err)
	}

	now := s.clock()
	if err := s.store.RecordLogin(ctx, username, now); err != nil {
		s.logger.Warn("recording last login failed", "username", username, "error", err)
	}

	session, err := s.sessions.Create(username, account.Role)
	if err != nil {
		return nil, err
	}

	s.record(ctx, &audit.Record{
		Event:    audit.EventLoginSuccess,
		Username: username,
	})
	s.logger.Info("login", "username", username, "role", string(account.Role))

	return session, nil
}

// loginFailure runs the shared failure path: count the attempt,
// persist the counter for known accounts, audit, and collapse the
// reason into ErrInvalidCredentials.
func (s *Service) loginFailure(ctx context.Context, username string, account *Account, reason string) error {
	decision := s.limiter.RecordFailure(username, account != nil)

	auditName := username
	if account == nil {
		auditName = audit.UnknownUser
	} else {
		var until *time.Time
		if decision.Triggered {
			u := decision.Until
			until = &u
		}
		if err := s.store.SaveLoginState(ctx, username, decision.Attempts, until); err != nil {
			s.logger.Warn("saving login state failed", "username", username, "error", err)
		}
	}

	s.record(ctx, &audit.Record{
		Event:    audit.EventLoginFailure,
		Username: auditName,
		Detail:   map[string]any{"reason": reason},
	})

	if decision.Triggered {
		s.record(ctx, &audit.Record{
			Event:    audit.EventLockoutTriggered,
			Username: auditName,
			Detail:   map[string]any{"locked_until": decision.Until},
		})
		s.logger.Warn("lockout triggered", "username", auditName, "until", decision.Until)
	}

	return ErrInvalidCredentials
}

// Logout revokes a session. Unknown and already-revoked tokens are a
// no-op; logout always succeeds.
func (s *Service) Logout(ctx context.Context, token string) {
	session := s.sessions.Revoke(token)
	if session == nil {
		return
	}
	s.record(ctx, &audit.Record{
		Event:    audit.EventLogout,
		Username: session.Username,
	})
	s.logger.Info("logout", "username", session.Username)
}

// Authorize validates a session token and checks the capability
// against the session's role snapshot. A valid touch slides the
// session's expiry even when the capability check then denies.
func (s *Service) Authorize(ctx context.Context, token string, cap Capability) (*Session, error) {
	session, err := s.sessions.Touch(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	if !Allows(session.Role, cap) {
		s.record(ctx, &audit.Record{
			Event:    audit.EventPermissionDenied,
			Username: session.Username,
			Detail:   map[string]any{"capability": string(cap)},
		})
		return nil, ErrForbidden
	}

	return session, nil
}

// CreateUser provisions a new account. Requires users:manage.
func (s *Service) CreateUser(ctx context.Context, token, username, password string, role Role) (*AccountSummary, error) {
	actor, err := s.Authorize(ctx, token, CapUsersManage)
	if err != nil {
		return nil, err
	}

	if !IsValidUsername(username) {
		return nil, fmt.Errorf("%w: username must be 1-64 characters of [a-zA-Z0-9._-]", ErrInvalidInput)
	}
	if !IsValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if len(password) < s.minPassword {
		return nil, ErrPasswordTooShort
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}

	account := &Account{
		Username:     username,
		PasswordHash: HashPassword(password, salt),
		Salt:         salt,
		Role:         role,
		Enabled:      true,
		CreatedBy:    actor.Username,
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}

	s.record(ctx, &audit.Record{
		Event:    audit.EventUserCreated,
		Username: username,
		Actor:    actor.Username,
		Detail:   map[string]any{"role": string(role)},
	})
	s.logger.Info("user created", "username", username, "role", string(role), "actor", actor.Username)

	summary := account.Summary()
	return &summary, nil
}

// DeleteUser removes an account. The built-in admin cannot be deleted
// and no actor may delete themselves. Live sessions for the deleted
// account are left to expire on their own.
func (s *Service) DeleteUser(ctx context.Context, token, username string) error {
	actor, err := s.Authorize(ctx, token, CapUsersManage)
	if err != nil {
		return err
	}

	if username == ProtectedUsername {
		return ErrProtectedAccount
	}
	if username == actor.Username {
		return ErrSelfDeletion
	}

	if err := s.store.Delete(ctx, username); err != nil {
		return err
	}

	s.record(ctx, &audit.Record{
		Event:    audit.EventUserDeleted,
		Username: username,
		Actor:    actor.Username,
	})
	s.logger.Info("user deleted", "username", username, "actor", actor.Username)
	return nil
}

// ChangeRole reassigns an account's role. The change applies from the
// account's next login; live sessions keep their snapshot. The
// built-in admin cannot be demoted.
func (s *Service) ChangeRole(ctx context.Context, token, username string, role Role) error {
	actor, err := s.Authorize(ctx, token, CapUsersManage)
	if err != nil {
		return err
	}

	if !IsValidRole(role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if username == ProtectedUsername && role != RoleAdmin {
		return ErrProtectedAccount
	}

	if err := s.store.SetRole(ctx, username, role); err != nil {
		return err
	}

	s.record(ctx, &audit.Record{
		Event:    audit.EventRoleChanged,
		Username: username,
		Actor:    actor.Username,
		Detail:   map[string]any{"role": string(role)},
	})
	s.logger.Info("role changed", "username", username, "role", string(role), "actor", actor.Username)
	return nil
}

// ResetPassword replaces an account's credential with a fresh salt and
// hash.
func (s *Service) ResetPassword(ctx context.Context, token, username, newPassword string) error {
	actor, err := s.Authorize(ctx, token, CapUsersManage)
	if err != nil {
		return err
	}

	if len(newPassword) < s.minPassword {
		return ErrPasswordTooShort
	}

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}

	if err := s.store.UpdatePassword(ctx, username, HashPassword(newPassword, salt), salt); err != nil {
		return err
	}

	s.record(ctx, &audit.Record{
		Event:    audit.EventPasswordReset,
		Username: username,
		Actor:    actor.Username,
	})
	s.logger.Info("password reset", "username", username, "actor", actor.Username)
	return nil
}

// SetUserEnabled toggles an account. Disabling blocks future logins
// but leaves live sessions to expire normally. The built-in admin
// cannot be disabled.
func (s *Service) SetUserEnabled(ctx context.Context, token, username string, enabled bool) error {
	actor, err := s.Authorize(ctx, token, CapUsersManage)
	if err != nil {
		return err
	}

	if username == ProtectedUsername && !enabled {
		return ErrProtectedAccount
	}

	if err := s.store.SetEnabled(ctx, username, enabled); err != nil {
		return err
	}

	event := audit.EventUserEnabled
	if !enabled {
		event = audit.EventUserDisabled
	}
	s.record(ctx, &audit.Record{
		Event:    event,
		Username: username,
		Actor:    actor.Username,
	})
	s.logger.Info("user enabled flag changed", "username", username, "enabled", enabled, "actor", actor.Username)
	return nil
}

// ListUsers returns every account's listing view. Requires users:manage.
func (s *Service) ListUsers(ctx context.Context, token string) ([]AccountSummary, error) {
	if _, err := s.Authorize(ctx, token, CapUsersManage); err != nil {
		return nil, err
	}

	accounts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]AccountSummary, 0, len(accounts))
	for i := range accounts {
		summary := accounts[i].Summary()
		summary.FailedAttempts, summary.LockedUntil = s.limiter.State(summary.Username)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// AuditTrail returns audit records matching the filter. Requires
// audit:read.
func (s *Service) AuditTrail(ctx context.Context, token string, filter audit.Filter) (*audit.ListResult, error) {
	if _, err := s.Authorize(ctx, token, CapAuditRead); err != nil {
		return nil, err
	}
	return s.audit.List(ctx, filter)
}

// SeedLimiter primes the rate limiter from persisted account state so
// lockouts survive a restart.
func (s *Service) SeedLimiter(ctx context.Context) error {
	accounts, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("seeding limiter: %w", err)
	}
	for i := range accounts {
		a := &accounts[i]
		s.limiter.Seed(a.Username, a.FailedAttempts, a.LockoutUntil)
	}
	return nil
}

// record appends to the audit trail, logging rather than failing when
// the write does not land.
func (s *Service) record(ctx context.Context, rec *audit.Record) {
	rec.CreatedAt = s.clock()
	if err := s.audit.Record(ctx, rec); err != nil {
		s.logger.Error("audit write failed", "event", rec.Event, "username", rec.Username, "error", err)
	}
}
