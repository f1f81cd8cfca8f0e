package auth

import (
	"errors"
	"strings"
	"time"
)

// Clock returns the current time. Components take one so tests can move time.
type Clock func() time.Time

// Identity is the stored credential and role record for one user.
//
// LoginAttempts resets to 0 whenever LockUntil expires or a login succeeds.
// LockUntil is set only when LoginAttempts reaches the lockout threshold.
type Identity struct {
	ID              string
	Email           string
	PasswordHash    string
	Role            Role
	FirstName       string
	LastName        string
	Phone           string
	Avatar          string
	Address         string
	OwnerLandlordID string            // required iff Role is STAFF
	Permissions     *StaffPermissions // STAFF only
	IsActive        bool
	IsEmailVerified bool
	IsPhoneVerified bool
	LoginAttempts   int
	LockUntil       *time.Time
	LastLogin       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName joins first and last name, skipping blanks.
func (i *Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Public returns the caller-safe view of the identity.
func (i *Identity) Public() PublicUser {
	u := PublicUser{
		ID:              i.ID,
		Email:           i.Email,
		FirstName:       i.FirstName,
		LastName:        i.LastName,
		FullName:        i.FullName(),
		Role:            i.Role.Canonical(),
		Phone:           i.Phone,
		Avatar:          i.Avatar,
		IsEmailVerified: i.IsEmailVerified,
		IsPhoneVerified: i.IsPhoneVerified,
		LastLogin:       i.LastLogin,
	}
	if u.Role == RoleStaff {
		u.LandlordID = i.OwnerLandlordID
		if i.Permissions != nil {
			p := *i.Permissions
			u.Permissions = &p
		}
	}
	return u
}

// PublicUser is the user representation returned to clients. It never carries
// the password digest or lockout counters.
type PublicUser struct {
	ID              string            `json:"id"`
	Email           string            `json:"email"`
	FirstName       string            `json:"firstName"`
	LastName        string            `json:"lastName"`
	FullName        string            `json:"fullName"`
	Role            Role              `json:"role"`
	Phone           string            `json:"phone"`
	Avatar          string            `json:"avatar"`
	IsEmailVerified bool              `json:"isEmailVerified"`
	IsPhoneVerified bool              `json:"isPhoneVerified"`
	LastLogin       *time.Time        `json:"lastLogin"`
	LandlordID      string            `json:"landlordId,omitempty"`
	Permissions     *StaffPermissions `json:"permissions,omitempty"`
}

// StaffPermissions are the action flags a landlord grants a staff member.
type StaffPermissions struct {
	CanLogPayments       bool `json:"canLogPayments"`
	CanIssueReceipts     bool `json:"canIssueReceipts"`
	CanViewTenants       bool `json:"canViewTenants"`
	CanHandleMaintenance bool `json:"canHandleMaintenance"`
	CanGenerateReports   bool `json:"canGenerateReports"`
}

// DefaultStaffPermissions is the permission set new staff accounts start with.
func DefaultStaffPermissions() StaffPermissions {
	return StaffPermissions{
		CanLogPayments:   true,
		CanIssueReceipts: true,
		CanViewTenants:   true,
	}
}

// Sentinel errors. Typed decisions wrap these inside *Error so callers can
// use errors.Is for the cause and KindOf for the category.
var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound is returned by stores when no identity matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserInactive is returned when a deactivated identity authenticates.
	ErrUserInactive = errors.New("user account is deactivated")

	// ErrEmailExists is returned when registering a taken email address.
	ErrEmailExists = errors.New("email already registered")

	// ErrPhoneExists is returned when registering a taken phone number.
	ErrPhoneExists = errors.New("phone number already registered")

	// ErrTokenExpired is returned when a token's exp claim has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid is returned for any other token defect.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenRevoked is returned when a token id is on the deny-list.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrAccountLocked is returned while an account's lock has not elapsed.
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrRateLimited is returned when a throttle window is exhausted.
	ErrRateLimited = errors.New("too many attempts")

	// ErrForbidden is returned when a valid identity lacks the role or ownership.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrInvalidRole is returned by ParseRole for unknown roles.
	ErrInvalidRole = errors.New("invalid role")

	// ErrPasswordTooLong is returned when the selected hash cannot take the input.
	ErrPasswordTooLong = errors.New("password too long")

	// ErrNotStaff is returned when staff-only operations target another role.
	ErrNotStaff = errors.New("user is not a staff member")
)
