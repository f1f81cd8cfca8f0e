package auth

import (
	"fmt"
	"strings"
	"unicode"
)

// Role represents an authorisation tier in the system.
// The canonical spelling is upper snake case.
type Role string

const (
	// RoleSystemAdmin operates the platform. It passes every role check.
	RoleSystemAdmin Role = "SYSTEM_ADMIN"

	// RoleLandlord owns properties and the staff accounts attached to them.
	RoleLandlord Role = "LANDLORD"

	// RoleTenant rents a unit and may only touch resources it owns.
	RoleTenant Role = "TENANT"

	// RoleStaff works for one landlord with a configurable permission set.
	RoleStaff Role = "STAFF"
)

// AllRoles lists every valid role.
var AllRoles = []Role{RoleSystemAdmin, RoleLandlord, RoleTenant, RoleStaff}

// RegistrableRoles are the roles a visitor may choose at self-registration.
var RegistrableRoles = []Role{RoleLandlord, RoleTenant, RoleStaff}

// ParseRole canonicalises s and reports ErrInvalidRole for unknown roles.
// "SYSTEM_ADMIN", "system_admin", "System-Admin" and "systemAdmin" all
// parse to RoleSystemAdmin.
func ParseRole(s string) (Role, error) {
	r := canonicalRole(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// Canonical returns r in canonical spelling. The result may still be invalid.
func (r Role) Canonical() Role {
	return canonicalRole(string(r))
}

// IsValid reports whether r, after canonicalisation, is a known role.
func (r Role) IsValid() bool {
	switch r.Canonical() {
	case RoleSystemAdmin, RoleLandlord, RoleTenant, RoleStaff:
		return true
	}
	return false
}

// Is compares two roles after canonicalising both.
func (r Role) Is(other Role) bool {
	return r.Canonical() == other.Canonical()
}

func (r Role) String() string {
	return string(r.Canonical())
}

func canonicalRole(s string) Role {
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s) + 4)
	var prev rune
	for i, c := range s {
		switch {
		case c == '-' || c == ' ' || c == '_':
			c = '_'
		case i > 0 && unicode.IsUpper(c) && unicode.IsLower(prev):
			// camelCase boundary
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(c))
		prev = c
	}
	return Role(b.String())
}

// containsRole reports whether role is in set, comparing canonically.
func containsRole(set []Role, role Role) bool {
	for _, r := range set {
		if r.Is(role) {
			return true
		}
	}
	return false
}
