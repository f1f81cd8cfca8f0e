// Package auth provides authentication, session and access control for zmapp.
//
// It implements a four-role model (SYSTEM_ADMIN, LANDLORD, TENANT, STAFF) with:
//   - Argon2id password hashing with bcrypt verification for older digests
//   - HS256 session and refresh tokens carrying identity and role claims
//   - A fixed-window login throttle keyed by source address
//   - Account lockout with lazy, timer-free unlock persisted on the identity
//   - A pure role/ownership authorizer plus staff action permissions
//
// The Service type composes these pieces into login, registration, refresh
// and password change. It returns *Error values whose Kind tells the
// transport layer how to render the failure; the package never writes HTTP.
//
// Throttle and lockout are independent: the throttle gates a source address
// before any account lookup, the lockout gates an account after lookup, and
// either may deny on its own.
package auth
