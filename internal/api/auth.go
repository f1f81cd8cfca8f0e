package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Go-ku/zmapp/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// registerRequest is the request body for POST /auth/register.
type registerRequest struct {
	FirstName       string       `json:"firstName"`
	LastName        string       `json:"lastName"`
	Email           string       `json:"email"`
	Password        string       `json:"password"`
	ConfirmPassword string       `json:"confirmPassword"`
	Phone           string       `json:"phone"`
	Role            string       `json:"role"`
	Address         addressField `json:"address"`
	LandlordID      string       `json:"landlordId"`
	AcceptTerms     bool         `json:"acceptTerms"`
}

// addressField accepts either a plain string or a structured address and
// flattens it to one line.
type addressField string

func (a *addressField) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var line string
	if err := json.Unmarshal(data, &line); err == nil {
		*a = addressField(line)
		return nil
	}
	var parts struct {
		Street     string `json:"street"`
		Area       string `json:"area"`
		City       string `json:"city"`
		Province   string `json:"province"`
		PostalCode string `json:"postalCode"`
	}
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	var kept []string
	for _, p := range []string{parts.Street, parts.Area, parts.City, parts.Province, parts.PostalCode} {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	*a = addressField(strings.Join(kept, ", "))
	return nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// sessionResponse is returned by login, registration and refresh. The
// session token travels only in the HttpOnly cookie.
type sessionResponse struct {
	Message      string          `json:"message"`
	User         auth.PublicUser `json:"user"`
	ExpiresIn    int             `json:"expiresIn"` // seconds
	ExpiresAt    time.Time       `json:"expiresAt"`
	RefreshToken string          `json:"refreshToken,omitempty"`
}

func newSessionResponse(message string, session *auth.Session) sessionResponse {
	return sessionResponse{
		Message:      message,
		User:         session.User,
		ExpiresIn:    int(session.ExpiresIn.Seconds()),
		ExpiresAt:    session.ExpiresAt,
		RefreshToken: session.RefreshToken,
	}
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return false
		}
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// handleLogin throttles by client IP, then verifies credentials and sets the
// session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Email and password are required")
		return
	}

	meta := s.requestMeta(r)
	if !s.loginThrottle.Allow(meta.SourceIP) {
		s.rateLimited(w, r, s.loginThrottle, auth.EventLoginRateLimited, req.Email, meta,
			"Too many login attempts. Please try again later.")
		return
	}

	session, err := s.auth.Login(r.Context(), auth.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		SourceIP:   meta.SourceIP,
		UserAgent:  meta.UserAgent,
	})
	if err != nil {
		if e := auth.AsError(err); e.Kind == auth.KindUnauthenticated {
			e.Remaining = s.loginThrottle.Remaining(meta.SourceIP)
		}
		s.writeAuthError(w, r, err)
		return
	}

	s.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, newSessionResponse("Login successful", session))
}

// handleRegister validates the request before consuming a registration
// attempt, so malformed submissions do not lock out the client.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	meta := s.requestMeta(r)
	in := auth.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Phone:           req.Phone,
		Role:            req.Role,
		Address:         string(req.Address),
		LandlordID:      req.LandlordID,
		AcceptTerms:     req.AcceptTerms,
		SourceIP:        meta.SourceIP,
		UserAgent:       meta.UserAgent,
	}
	if violations := auth.ValidateRegistration(in); len(violations) > 0 {
		s.writeAuthError(w, r, auth.ValidationFailed(violations))
		return
	}

	if !s.registerThrottle.Allow(meta.SourceIP) {
		s.rateLimited(w, r, s.registerThrottle, auth.EventRegistrationRateLimited, req.Email, meta,
			"Too many registration attempts. Please try again later.")
		return
	}

	session, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusCreated, newSessionResponse("Registration successful", session))
}

// rateLimited records the throttle denial and writes the 429.
func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request, t *auth.Throttle, event auth.EventType, email string, meta auth.RequestMeta, message string) {
	s.auth.Events().Record(auth.Event{
		Type:       event,
		Outcome:    auth.OutcomeFailure,
		ActorEmail: auth.NormalizeEmail(auth.SanitizeInput(email)),
		SourceIP:   meta.SourceIP,
		UserAgent:  meta.UserAgent,
		Reason:     "rate limited",
	})

	resetAt, ok := t.ResetTime(meta.SourceIP)
	if !ok {
		resetAt = s.now().Add(t.Policy().Window)
	}
	e := auth.RateLimited(resetAt)
	e.Message = message
	s.writeAuthError(w, r, e)
}

// handleRefresh exchanges a refresh token for a new session token and cookie.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "Refresh token is required")
		return
	}

	session, err := s.auth.Refresh(r.Context(), req.RefreshToken, s.requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, newSessionResponse("Token refreshed", session))
}

// handleLogout ends the current session and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "Authentication required")
		return
	}

	if err := s.auth.Logout(r.Context(), claims, s.requestMeta(r)); err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// handleMe returns the authenticated user's profile.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user": id.Public()})
}

// handleMyPermissions reports which landlord-resource actions the caller may
// perform, so clients can hide what the server would refuse.
func (s *Server) handleMyPermissions(w http.ResponseWriter, r *http.Request) {
	id := identityFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"permissions": auth.Capabilities(id)})
}

// handleChangePassword replaces the authenticated user's password.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := identityFromContext(r.Context())
	err := s.auth.ChangePassword(r.Context(), id.ID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword, s.requestMeta(r))
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}
