package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token defaults.
const (
	DefaultIssuer     = "zambia-real-estate"
	DefaultAudience   = "zambia-real-estate-users"
	DefaultSessionTTL = 7 * 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour

	// MinSecretLength is the shortest accepted HMAC secret in bytes.
	MinSecretLength = 32

	tokenTypeRefresh = "refresh"
)

// SessionClaims assert identity and role for one session.
// The registered claims (iss, aud, iat, exp, jti, sub) are set by IssueSession.
//
// SessionID names the login the token belongs to. It is shared with the
// refresh token issued alongside, and with every session minted from that
// refresh token, so revoking it ends the whole chain.
type SessionClaims struct {
	UserID          string `json:"userId"`
	Email           string `json:"email"`
	Role            Role   `json:"role"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	IsEmailVerified bool   `json:"isEmailVerified"`
	IsPhoneVerified bool   `json:"isPhoneVerified"`
	SessionID       string `json:"sid,omitempty"`
	Type            string `json:"type,omitempty"` // always empty for sessions
	jwt.RegisteredClaims
}

// RefreshClaims may only be exchanged for a new session.
type RefreshClaims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sid,omitempty"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// SessionClaimsFor builds the session claims of an identity.
func SessionClaimsFor(id *Identity) SessionClaims {
	return SessionClaims{
		UserID:          id.ID,
		Email:           id.Email,
		Role:            id.Role.Canonical(),
		FirstName:       id.FirstName,
		LastName:        id.LastName,
		IsEmailVerified: id.IsEmailVerified,
		IsPhoneVerified: id.IsPhoneVerified,
	}
}

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	SessionTTL time.Duration
	RefreshTTL time.Duration
}

// TokenCodec issues and verifies HS256 tokens. Verification depends only on
// the token, the codec's clock and the secret.
type TokenCodec struct {
	secret     []byte
	issuer     string
	audience   string
	sessionTTL time.Duration
	refreshTTL time.Duration
	now        Clock
}

// TokenOption customises a TokenCodec.
type TokenOption func(*TokenCodec)

// WithTokenClock replaces the codec's time source.
func WithTokenClock(now Clock) TokenOption {
	return func(c *TokenCodec) { c.now = now }
}

// NewTokenCodec validates cfg and fills defaults for empty fields.
func NewTokenCodec(cfg TokenConfig, opts ...TokenOption) (*TokenCodec, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	c := &TokenCodec{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		sessionTTL: cfg.SessionTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	if c.issuer == "" {
		c.issuer = DefaultIssuer
	}
	if c.audience == "" {
		c.audience = DefaultAudience
	}
	if c.sessionTTL <= 0 {
		c.sessionTTL = DefaultSessionTTL
	}
	if c.refreshTTL <= 0 {
		c.refreshTTL = DefaultRefreshTTL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SessionTTL returns the default session lifetime.
func (c *TokenCodec) SessionTTL() time.Duration {
	return c.sessionTTL
}

// RefreshTTL returns the default refresh token lifetime.
func (c *TokenCodec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// IssueSession signs claims for ttl (the codec default when ttl <= 0).
// Registered claims on the input are replaced.
func (c *TokenCodec) IssueSession(claims SessionClaims, ttl time.Duration) (string, error) {
	if claims.UserID == "" {
		return "", fmt.Errorf("issuing session: missing user id")
	}
	if !claims.Role.IsValid() {
		return "", fmt.Errorf("issuing session: %w: %q", ErrInvalidRole, claims.Role)
	}
	if ttl <= 0 {
		ttl = c.sessionTTL
	}

	claims.Role = claims.Role.Canonical()
	claims.Type = ""
	claims.RegisteredClaims = c.registered(claims.UserID, ttl)

	return c.sign(claims)
}

// IssueRefresh signs a refresh token for userID in login sessionID.
func (c *TokenCodec) IssueRefresh(userID, sessionID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("issuing refresh token: missing user id")
	}
	if ttl <= 0 {
		ttl = c.refreshTTL
	}
	return c.sign(RefreshClaims{
		UserID:           userID,
		SessionID:        sessionID,
		Type:             tokenTypeRefresh,
		RegisteredClaims: c.registered(userID, ttl),
	})
}

// VerifySession validates a session token. Any defect is rejected.
func (c *TokenCodec) VerifySession(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := c.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Type != "" {
		return nil, fmt.Errorf("%w: %s token used as session", ErrTokenInvalid, claims.Type)
	}
	if claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, fmt.Errorf("%w: missing or mismatched subject", ErrTokenInvalid)
	}
	role, err := ParseRole(string(claims.Role))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	claims.Role = role
	return claims, nil
}

// VerifyRefresh validates a refresh token.
func (c *TokenCodec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(token, claims); err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrTokenInvalid)
	}
	if claims.UserID == "" || claims.Subject != claims.UserID {
		return nil, fmt.Errorf("%w: missing or mismatched subject", ErrTokenInvalid)
	}
	return claims, nil
}

func (c *TokenCodec) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := c.now()
	return jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{c.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
}

func (c *TokenCodec) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (c *TokenCodec) parse(token string, claims jwt.Claims) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return ErrTokenInvalid
	}
	return nil
}
