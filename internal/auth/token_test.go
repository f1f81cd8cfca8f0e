package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestCodec(t *testing.T, clock *fakeClock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(TokenConfig{Secret: testSecret}, WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	return codec
}

// issueWith signs testClaims with a codec built from cfg.
func issueWith(t *testing.T, cfg TokenConfig, clock *fakeClock) string {
	t.Helper()
	codec, err := NewTokenCodec(cfg, WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}
	token, err := codec.IssueSession(testClaims(), 0)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}
	return token
}

func testClaims() SessionClaims {
	return SessionClaims{
		UserID:          "usr-1234",
		Email:           "a@b.com",
		Role:            "tenant",
		FirstName:       "Ada",
		LastName:        "Banda",
		IsEmailVerified: true,
	}
}

func TestTokenCodec_SessionRoundTrip(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	token, err := codec.IssueSession(testClaims(), 0)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}

	claims, err := codec.VerifySession(token)
	if err != nil {
		t.Fatalf("VerifySession() error = %v", err)
	}

	if claims.UserID != "usr-1234" || claims.Subject != "usr-1234" {
		t.Errorf("user = %q / sub %q, want usr-1234", claims.UserID, claims.Subject)
	}
	if claims.Role != RoleTenant {
		t.Errorf("Role = %q, want %q", claims.Role, RoleTenant)
	}
	if claims.Issuer != DefaultIssuer {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, DefaultIssuer)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != DefaultAudience {
		t.Errorf("Audience = %v, want [%s]", claims.Audience, DefaultAudience)
	}
	if claims.ID == "" {
		t.Error("jti is empty")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != DefaultSessionTTL {
		t.Errorf("lifetime = %v, want %v", got, DefaultSessionTTL)
	}
	if !claims.IsEmailVerified || claims.FirstName != "Ada" {
		t.Errorf("profile claims lost: %+v", claims)
	}
}

func TestTokenCodec_Expiry(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	token, err := codec.IssueSession(testClaims(), time.Hour)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}

	clock.Advance(59 * time.Minute)
	if _, err := codec.VerifySession(token); err != nil {
		t.Fatalf("VerifySession() before expiry error = %v", err)
	}

	clock.Advance(2 * time.Minute)
	_, err = codec.VerifySession(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("VerifySession() after expiry error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenCodec_RejectsTampering(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	token, err := codec.IssueSession(testClaims(), 0)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}

	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tamperedSig := parts[0] + "." + parts[1] + "." + string(sig)

	foreignToken := issueWith(t, TokenConfig{Secret: strings.Repeat("x", 40)}, clock)
	wrongIssuer := issueWith(t, TokenConfig{Secret: testSecret, Issuer: "someone-else"}, clock)
	wrongAudience := issueWith(t, TokenConfig{Secret: testSecret, Audience: "someone-else"}, clock)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": "usr-1234", "sub": "usr-1234", "role": "TENANT",
		"iss": DefaultIssuer, "aud": DefaultAudience,
		"exp": clock.Now().Add(time.Hour).Unix(), "iat": clock.Now().Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"tampered signature", tamperedSig},
		{"foreign secret", foreignToken},
		{"wrong issuer", wrongIssuer},
		{"wrong audience", wrongAudience},
		{"alg none", noneAlg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.VerifySession(tt.token)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("VerifySession() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestTokenCodec_TokenTypesDoNotMix(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)

	session, err := codec.IssueSession(testClaims(), 0)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}
	refresh, err := codec.IssueRefresh("usr-1234", "sess-1", 0)
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	if _, err := codec.VerifySession(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifySession(refresh) error = %v, want ErrTokenInvalid", err)
	}
	if _, err := codec.VerifyRefresh(session); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("VerifyRefresh(session) error = %v, want ErrTokenInvalid", err)
	}

	claims, err := codec.VerifyRefresh(refresh)
	if err != nil {
		t.Fatalf("VerifyRefresh() error = %v", err)
	}
	if claims.UserID != "usr-1234" || claims.Type != "refresh" || claims.SessionID != "sess-1" {
		t.Errorf("refresh claims = %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != DefaultRefreshTTL {
		t.Errorf("refresh lifetime = %v, want %v", got, DefaultRefreshTTL)
	}
}

func TestTokenCodec_IssueValidation(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())

	if _, err := codec.IssueSession(SessionClaims{Role: RoleTenant}, 0); err == nil {
		t.Error("IssueSession() without user id succeeded")
	}
	c := testClaims()
	c.Role = "JANITOR"
	if _, err := codec.IssueSession(c, 0); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("IssueSession(invalid role) error = %v, want ErrInvalidRole", err)
	}
	if _, err := codec.IssueRefresh("", "sess-1", 0); err == nil {
		t.Error("IssueRefresh() without user id succeeded")
	}
}

func TestNewTokenCodec_ShortSecret(t *testing.T) {
	if _, err := NewTokenCodec(TokenConfig{Secret: "short"}); err == nil {
		t.Error("NewTokenCodec() with short secret succeeded")
	}
}
