// Package api implements the HTTP REST API for the zmapp authentication core.
//
// This package provides:
//   - Login, registration, refresh and logout with an HttpOnly session cookie
//   - Profile and password change for the signed-in user
//   - Staff permission management for landlords
//   - Account activation, unlock and audit log access for administrators
//   - Middleware stack (request ID, logging, recovery, CORS, per-IP rate limit)
//
// # Security
//
// Sessions are HS256 JWTs carried in the auth-token cookie (HttpOnly,
// SameSite=Strict) or an Authorization: Bearer header. Every authenticated
// request reloads the identity, so deactivation takes effect immediately.
// Login and registration are throttled per client IP in fixed windows;
// accounts lock after repeated wrong passwords.
//
// # Errors
//
// Handlers never build error bodies themselves for auth decisions: they pass
// the typed auth error to writeAuthError, which maps each kind to one status
// (400, 401, 403, 409, 423, 429 or 500).
package api
