package api

import (
	"net/http"
	"time"
)

const (
	defaultCookieName   = "auth-token"
	defaultCookiePath   = "/"
	defaultCookieMaxAge = 7 * 24 * time.Hour
)

func (s *Server) cookieName() string {
	if s.secCfg.Cookie.Name != "" {
		return s.secCfg.Cookie.Name
	}
	return defaultCookieName
}

func (s *Server) cookiePath() string {
	if s.secCfg.Cookie.Path != "" {
		return s.secCfg.Cookie.Path
	}
	return defaultCookiePath
}

// setSessionCookie writes the HttpOnly, SameSite=Strict session cookie.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	maxAge := s.secCfg.Cookie.MaxAge
	if maxAge <= 0 {
		maxAge = defaultCookieMaxAge
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    token,
		Path:     s.cookiePath(),
		MaxAge:   int(maxAge.Seconds()),
		Expires:  s.now().Add(maxAge),
		HttpOnly: true,
		Secure:   s.secCfg.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearSessionCookie expires the session cookie immediately.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(),
		Value:    "",
		Path:     s.cookiePath(),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secCfg.Cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
