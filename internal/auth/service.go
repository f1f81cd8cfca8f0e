package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the result of a successful login, registration or refresh.
type Session struct {
	Token        string
	RefreshToken string // empty after Refresh
	User         PublicUser
	ExpiresIn    time.Duration
	ExpiresAt    time.Time
}

// LoginInput is a login request. The caller throttles by SourceIP before
// calling Login.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	SourceIP   string
	UserAgent  string
}

// RequestMeta identifies where an administrative call came from.
type RequestMeta struct {
	SourceIP  string
	UserAgent string
}

// ServiceDeps are the collaborators of a Service. Store, Hasher, Tokens and
// Lockout are required.
type ServiceDeps struct {
	Store   CredentialStore
	Hasher  *Hasher
	Tokens  *TokenCodec
	Lockout *Lockout

	// Revocations enables deny-listing on logout. Optional.
	Revocations RevocationList

	Events *Recorder
	Logger *slog.Logger
	Clock  Clock
}

// Service assembles sessions from the hasher, codec, lockout and store.
type Service struct {
	store       CredentialStore
	hasher      *Hasher
	tokens      *TokenCodec
	lockout     *Lockout
	revocations RevocationList
	events      *Recorder
	logger      *slog.Logger
	now         Clock

	dummyOnce sync.Once
	dummy     string
}

// NewService validates deps and returns a Service.
func NewService(deps ServiceDeps) (*Service, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("auth service: store is required")
	case deps.Hasher == nil:
		return nil, errors.New("auth service: hasher is required")
	case deps.Tokens == nil:
		return nil, errors.New("auth service: token codec is required")
	case deps.Lockout == nil:
		return nil, errors.New("auth service: lockout is required")
	}

	s := &Service{
		store:       deps.Store,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		lockout:     deps.Lockout,
		revocations: deps.Revocations,
		events:      deps.Events,
		logger:      deps.Logger,
		now:         deps.Clock,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Tokens returns the service's token codec.
func (s *Service) Tokens() *TokenCodec {
	return s.tokens
}

// Events returns the service's event recorder, which may be nil.
func (s *Service) Events() *Recorder {
	return s.events
}

// Login verifies credentials and issues a session. Unknown emails, inactive
// accounts and wrong passwords all fail with the same Unauthenticated error.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := NormalizeEmail(SanitizeInput(in.Email))
	if email == "" || in.Password == "" {
		return nil, &Error{Kind: KindValidation, Message: "Email and password are required"}
	}

	ev := Event{ActorEmail: email, SourceIP: in.SourceIP, UserAgent: in.UserAgent}

	id, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		s.hasher.Verify(in.Password, s.dummyDigest())
		return nil, s.loginFailed(ev, "unknown email")
	}
	if err != nil {
		return nil, Internal(fmt.Errorf("looking up user: %w", err))
	}

	ev.ActorID, ev.ActorRole = id.ID, id.Role
	if !id.IsActive {
		s.hasher.Verify(in.Password, s.dummyDigest())
		return nil, s.loginFailed(ev, "account inactive")
	}

	now := s.now()
	if _, err := s.lockout.Check(id, now); err != nil {
		ev.Type, ev.Outcome, ev.Reason = EventLoginLocked, OutcomeFailure, "account locked"
		s.events.Record(ev)
		return nil, err
	}

	if !s.hasher.Verify(in.Password, id.PasswordHash) {
		state, err := s.lockout.RecordFailure(ctx, id)
		if err != nil {
			return nil, Internal(err)
		}
		failed := s.loginFailed(ev, "wrong password")
		if state.Locked(now) {
			// The attempt that locks still reports bad credentials; the
			// next one sees the lock.
			ev.Type, ev.Outcome, ev.Reason = EventAccountLocked, OutcomeFailure, "too many failed attempts"
			ev.Details = map[string]any{"locked_until": state.LockedUntil.Format(time.RFC3339)}
			s.events.Record(ev)
		}
		return nil, failed
	}

	if err := s.lockout.RecordSuccess(ctx, id); err != nil {
		if KindOf(err) == KindAccountLocked {
			ev.Type, ev.Outcome, ev.Reason = EventLoginLocked, OutcomeFailure, "account locked"
			s.events.Record(ev)
			return nil, err
		}
		return nil, Internal(err)
	}

	s.rehashIfNeeded(ctx, id, in.Password)

	session, err := s.issue(id, "", true)
	if err != nil {
		return nil, Internal(err)
	}

	ev.Type, ev.Outcome = EventLoginSuccess, OutcomeSuccess
	ev.Details = map[string]any{"remember_me": in.RememberMe}
	s.events.Record(ev)
	return session, nil
}

func (s *Service) loginFailed(ev Event, reason string) *Error {
	ev.Type, ev.Outcome, ev.Reason = EventLoginFailed, OutcomeFailure, reason
	s.events.Record(ev)
	return Unauthenticated(ErrInvalidCredentials)
}

// rehashIfNeeded upgrades a digest made with older parameters. Failure is
// logged and does not fail the login.
func (s *Service) rehashIfNeeded(ctx context.Context, id *Identity, password string) {
	if !s.hasher.NeedsRehash(id.PasswordHash) {
		return
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn("password rehash failed", "user_id", id.ID, "error", err)
		return
	}
	if err := s.store.UpdatePassword(ctx, id.ID, digest); err != nil {
		s.logger.Warn("storing rehashed password failed", "user_id", id.ID, "error", err)
		return
	}
	id.PasswordHash = digest
	s.logger.Info("password digest upgraded", "user_id", id.ID)
}

// Register validates in, creates the identity and issues a session for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	reg, violations := validateRegistration(in)
	ev := Event{
		Type:       EventRegistrationFailed,
		Outcome:    OutcomeFailure,
		ActorEmail: reg.email,
		ActorRole:  reg.role,
		SourceIP:   in.SourceIP,
		UserAgent:  in.UserAgent,
	}
	if len(violations) > 0 {
		ev.Reason = "validation failed"
		ev.Details = map[string]any{"violations": len(violations)}
		s.events.Record(ev)
		return nil, ValidationFailed(violations)
	}

	if reg.role == RoleStaff {
		landlord, err := s.store.GetByID(ctx, reg.landlordID)
		switch {
		case errors.Is(err, ErrUserNotFound), err == nil && !landlord.Role.Is(RoleLandlord):
			ev.Reason = "invalid landlord"
			s.events.Record(ev)
			return nil, ValidationFailed([]string{"Selected landlord does not exist"})
		case err != nil:
			return nil, Internal(fmt.Errorf("looking up landlord: %w", err))
		}
	}

	if exists, err := s.store.EmailExists(ctx, reg.email); err != nil {
		return nil, Internal(err)
	} else if exists {
		ev.Reason = "email exists"
		s.events.Record(ev)
		return nil, Conflict(ErrEmailExists, "User with this email already exists")
	}
	if exists, err := s.store.PhoneExists(ctx, reg.phone); err != nil {
		return nil, Internal(err)
	} else if exists {
		ev.Reason = "phone exists"
		s.events.Record(ev)
		return nil, Conflict(ErrPhoneExists, "User with this phone number already exists")
	}

	digest, err := s.hasher.Hash(reg.password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, ValidationFailed([]string{"Password must be at most 72 bytes long"})
		}
		return nil, Internal(err)
	}

	id := &Identity{
		Email:        reg.email,
		PasswordHash: digest,
		Role:         reg.role,
		FirstName:    reg.firstName,
		LastName:     reg.lastName,
		Phone:        reg.phone,
		Address:      reg.address,
		IsActive:     true,
	}
	if reg.role == RoleStaff {
		perms := DefaultStaffPermissions()
		id.OwnerLandlordID = reg.landlordID
		id.Permissions = &perms
	}

	if err := s.store.Create(ctx, id); err != nil {
		// A concurrent registration can still win the unique index.
		switch {
		case errors.Is(err, ErrEmailExists):
			return nil, Conflict(err, "User with this email already exists")
		case errors.Is(err, ErrPhoneExists):
			return nil, Conflict(err, "User with this phone number already exists")
		}
		return nil, Internal(fmt.Errorf("creating user: %w", err))
	}

	session, err := s.issue(id, "", true)
	if err != nil {
		return nil, Internal(err)
	}

	ev.Type, ev.Outcome, ev.ActorID = EventRegistrationSuccess, OutcomeSuccess, id.ID
	s.events.Record(ev)
	return session, nil
}

// Refresh exchanges a refresh token for a new session token. The refresh
// token itself is not rotated; the new session joins its login session.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*Session, error) {
	ev := Event{
		Type:      EventTokenRefreshed,
		SourceIP:  meta.SourceIP,
		UserAgent: meta.UserAgent,
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, s.tokenRejected(ev, Unauthenticated(err))
	}
	ev.ActorID = claims.UserID
	if err := s.checkRevoked(ctx, claims.ID, claims.SessionID); err != nil {
		return nil, s.tokenRejected(ev, err)
	}

	id, err := s.activeIdentity(ctx, claims.UserID)
	if err != nil {
		return nil, s.tokenRejected(ev, err)
	}

	session, err := s.issue(id, claims.SessionID, false)
	if err != nil {
		return nil, Internal(err)
	}

	ev.Outcome, ev.ActorEmail, ev.ActorRole = OutcomeSuccess, id.Email, id.Role
	s.events.Record(ev)
	return session, nil
}

// Authenticate resolves a session token to a fresh identity and checks that
// its role is one of requiredRoles. With no requiredRoles every role passes.
// Rejected tokens are recorded as AUTHENTICATION_FAILED.
func (s *Service) Authenticate(ctx context.Context, token string, meta RequestMeta, requiredRoles ...Role) (*Identity, *SessionClaims, error) {
	ev := Event{
		Type:      EventAuthenticationFailed,
		SourceIP:  meta.SourceIP,
		UserAgent: meta.UserAgent,
	}

	claims, err := s.tokens.VerifySession(token)
	if err != nil {
		return nil, nil, s.tokenRejected(ev, Unauthenticated(err))
	}
	ev.ActorID, ev.ActorEmail, ev.ActorRole = claims.UserID, claims.Email, claims.Role
	if err := s.checkRevoked(ctx, claims.ID, claims.SessionID); err != nil {
		return nil, nil, s.tokenRejected(ev, err)
	}

	id, err := s.activeIdentity(ctx, claims.UserID)
	if err != nil {
		return nil, nil, s.tokenRejected(ev, err)
	}

	if len(requiredRoles) == 0 {
		requiredRoles = AllRoles
	}
	if !Authorize(AuthorizationRequest{ActorRole: id.Role, ActorID: id.ID, RequiredRoles: requiredRoles}) {
		return nil, nil, s.denied(id, "", "authenticate", meta)
	}
	return id, claims, nil
}

// tokenRejected records ev as a failure when err is an authentication
// failure and returns err unchanged.
func (s *Service) tokenRejected(ev Event, err error) error {
	if KindOf(err) != KindUnauthenticated {
		return err
	}
	ev.Outcome, ev.Reason = OutcomeFailure, rejectionReason(err)
	s.events.Record(ev)
	return err
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "token expired"
	case errors.Is(err, ErrTokenRevoked):
		return "token revoked"
	case errors.Is(err, ErrUserInactive):
		return "account inactive"
	case errors.Is(err, ErrUserNotFound):
		return "unknown user"
	default:
		return "invalid token"
	}
}

// Logout ends the session of token. With a revocation list the token id and
// its login session are deny-listed, so the refresh token issued with the
// session can no longer mint new ones.
func (s *Service) Logout(ctx context.Context, claims *SessionClaims, meta RequestMeta) error {
	if s.revocations != nil && claims.ID != "" && claims.ExpiresAt != nil {
		if err := s.revocations.Revoke(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time); err != nil {
			return Internal(err)
		}
		// No refresh token in the session outlives now + RefreshTTL.
		if claims.SessionID != "" {
			until := s.now().Add(s.tokens.RefreshTTL())
			if err := s.revocations.Revoke(ctx, claims.SessionID, claims.UserID, until); err != nil {
				return Internal(err)
			}
		}
	}

	s.events.Record(Event{
		Type:       EventLogoutSuccess,
		Outcome:    OutcomeSuccess,
		ActorID:    claims.UserID,
		ActorEmail: claims.Email,
		ActorRole:  claims.Role,
		SourceIP:   meta.SourceIP,
		UserAgent:  meta.UserAgent,
	})
	return nil
}

// Profile returns the public view of userID.
func (s *Service) Profile(ctx context.Context, userID string) (PublicUser, error) {
	id, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return PublicUser{}, Unauthenticated(err)
		}
		return PublicUser{}, Internal(err)
	}
	return id.Public(), nil
}

// ChangePassword replaces the password of userID after verifying current.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next, confirm string, meta RequestMeta) error {
	var violations []string
	if current == "" {
		violations = append(violations, "Current password is required")
	}
	violations = append(violations, ValidatePassword(next)...)
	if confirm != next {
		violations = append(violations, "Passwords do not match")
	}
	if current != "" && next == current {
		violations = append(violations, "New password must be different from the current password")
	}
	if len(violations) > 0 {
		return ValidationFailed(violations)
	}

	id, err := s.activeIdentity(ctx, userID)
	if err != nil {
		return err
	}

	ev := Event{
		Type:       EventPasswordChanged,
		ActorID:    id.ID,
		ActorEmail: id.Email,
		ActorRole:  id.Role,
		SourceIP:   meta.SourceIP,
		UserAgent:  meta.UserAgent,
	}
	if !s.hasher.Verify(current, id.PasswordHash) {
		ev.Outcome, ev.Reason = OutcomeFailure, "wrong current password"
		s.events.Record(ev)
		return Unauthenticated(ErrInvalidCredentials)
	}

	digest, err := s.hasher.Hash(next)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return ValidationFailed([]string{"Password must be at most 72 bytes long"})
		}
		return Internal(err)
	}
	if err := s.store.UpdatePassword(ctx, id.ID, digest); err != nil {
		return Internal(err)
	}

	ev.Outcome = OutcomeSuccess
	s.events.Record(ev)
	return nil
}

// ListStaff returns the staff of landlordID. A landlord may list only its
// own staff; SYSTEM_ADMIN may list any landlord's.
func (s *Service) ListStaff(ctx context.Context, actor *Identity, landlordID string) ([]PublicUser, error) {
	if !Authorize(AuthorizationRequest{
		ActorRole:       actor.Role,
		ActorID:         actor.ID,
		RequiredRoles:   []Role{RoleLandlord},
		ResourceOwnerID: landlordID,
	}) {
		return nil, s.denied(actor, landlordID, "list staff", RequestMeta{})
	}

	staff, err := s.store.ListStaff(ctx, landlordID)
	if err != nil {
		return nil, Internal(err)
	}
	users := make([]PublicUser, 0, len(staff))
	for i := range staff {
		users = append(users, staff[i].Public())
	}
	return users, nil
}

// UpdateStaffPermissions replaces the permission set of staffID. Only the
// staff member's landlord or a SYSTEM_ADMIN may do this.
func (s *Service) UpdateStaffPermissions(ctx context.Context, actor *Identity, staffID string, perms StaffPermissions, meta RequestMeta) (PublicUser, error) {
	staff, err := s.store.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return PublicUser{}, &Error{Kind: KindValidation, Message: "Staff member not found", Err: err}
		}
		return PublicUser{}, Internal(err)
	}
	if !staff.Role.Is(RoleStaff) {
		return PublicUser{}, &Error{Kind: KindValidation, Message: "User is not a staff member", Err: ErrNotStaff}
	}

	if !Authorize(AuthorizationRequest{
		ActorRole:       actor.Role,
		ActorID:         actor.ID,
		RequiredRoles:   []Role{RoleLandlord},
		ResourceOwnerID: staff.OwnerLandlordID,
	}) {
		return PublicUser{}, s.denied(actor, staffID, "update staff permissions", meta)
	}

	if err := s.store.UpdatePermissions(ctx, staffID, perms); err != nil {
		return PublicUser{}, Internal(err)
	}
	staff.Permissions = &perms

	s.events.Record(s.adminEvent(EventStaffPermissionsUpdated, actor, staffID, meta, map[string]any{
		"can_log_payments":       perms.CanLogPayments,
		"can_issue_receipts":     perms.CanIssueReceipts,
		"can_view_tenants":       perms.CanViewTenants,
		"can_handle_maintenance": perms.CanHandleMaintenance,
		"can_generate_reports":   perms.CanGenerateReports,
	}))
	return staff.Public(), nil
}

// SetActive activates or deactivates userID. SYSTEM_ADMIN only; an
// administrator cannot deactivate itself.
func (s *Service) SetActive(ctx context.Context, actor *Identity, userID string, active bool, meta RequestMeta) error {
	if !actor.Role.Is(RoleSystemAdmin) {
		return s.denied(actor, userID, "set account status", meta)
	}
	if actor.ID == userID && !active {
		return &Error{Kind: KindValidation, Message: "You cannot deactivate your own account"}
	}

	if err := s.store.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &Error{Kind: KindValidation, Message: "User not found", Err: err}
		}
		return Internal(err)
	}

	s.events.Record(s.adminEvent(EventAccountStatusChanged, actor, userID, meta, map[string]any{"is_active": active}))
	return nil
}

// Unlock releases the lockout of userID. SYSTEM_ADMIN only.
func (s *Service) Unlock(ctx context.Context, actor *Identity, userID string, meta RequestMeta) error {
	if !actor.Role.Is(RoleSystemAdmin) {
		return s.denied(actor, userID, "unlock account", meta)
	}

	if err := s.lockout.Unlock(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return &Error{Kind: KindValidation, Message: "User not found", Err: err}
		}
		return Internal(err)
	}

	s.events.Record(s.adminEvent(EventAccountUnlocked, actor, userID, meta, nil))
	return nil
}

// RecordDenied records an authorization denial made outside the service.
func (s *Service) RecordDenied(actor *Identity, target, action string, meta RequestMeta) {
	s.denied(actor, target, action, meta)
}

func (s *Service) denied(actor *Identity, target, action string, meta RequestMeta) *Error {
	ev := s.adminEvent(EventAuthorizationDenied, actor, target, meta, map[string]any{"action": action})
	ev.Outcome, ev.Reason = OutcomeFailure, "insufficient permissions"
	s.events.Record(ev)
	return Forbidden("")
}

func (s *Service) adminEvent(t EventType, actor *Identity, target string, meta RequestMeta, details map[string]any) Event {
	return Event{
		Type:       t,
		Outcome:    OutcomeSuccess,
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		ActorRole:  actor.Role,
		TargetID:   target,
		SourceIP:   meta.SourceIP,
		UserAgent:  meta.UserAgent,
		Details:    details,
	}
}

// activeIdentity loads userID and rejects missing or deactivated accounts.
func (s *Service) activeIdentity(ctx context.Context, userID string) (*Identity, error) {
	id, err := s.store.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, Unauthenticated(err)
		}
		return nil, Internal(err)
	}
	if !id.IsActive {
		return nil, Unauthenticated(ErrUserInactive)
	}
	return id, nil
}

// checkRevoked rejects a token whose own id or login session is deny-listed.
func (s *Service) checkRevoked(ctx context.Context, ids ...string) error {
	if s.revocations == nil {
		return nil
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		revoked, err := s.revocations.IsRevoked(ctx, id)
		if err != nil {
			return Internal(err)
		}
		if revoked {
			return Unauthenticated(ErrTokenRevoked)
		}
	}
	return nil
}

// issue signs a session for id within login session sessionID, starting a
// new one when sessionID is empty. withRefresh adds a refresh token.
func (s *Service) issue(id *Identity, sessionID string, withRefresh bool) (*Session, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	claims := SessionClaimsFor(id)
	claims.SessionID = sessionID
	ttl := s.tokens.SessionTTL()
	token, err := s.tokens.IssueSession(claims, ttl)
	if err != nil {
		return nil, err
	}

	session := &Session{
		Token:     token,
		User:      id.Public(),
		ExpiresIn: ttl,
		ExpiresAt: s.now().Add(ttl),
	}
	if withRefresh {
		session.RefreshToken, err = s.tokens.IssueRefresh(id.ID, sessionID, s.tokens.RefreshTTL())
		if err != nil {
			return nil, err
		}
	}
	return session, nil
}

func (s *Service) dummyDigest() string {
	s.dummyOnce.Do(func() {
		s.dummy = s.hasher.dummyDigest()
	})
	return s.dummy
}
