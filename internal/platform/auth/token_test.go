package auth

import (
	"testing"
	"time"
)

func TestTokenIssuer_IssueVerifiesWithMiddlewareKey(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "dental", time.Hour)
	sess, err := issuer.Issue("user-1", "a@b.co", []string{RoleStaff}, "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.TokenType != "Bearer" || sess.AccessToken == "" {
		t.Fatalf("unexpected session %+v", sess)
	}

	_, c, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "dental"}, "Bearer "+sess.AccessToken)
	if err != nil {
		t.Fatalf("issued token rejected: %v", err)
	}
	if UserIDFromContext(c.Request().Context()) != "user-1" {
		t.Error("expected subject to round-trip")
	}
}

func TestTokenIssuer_ParseForRefresh(t *testing.T) {
	issuer := NewTokenIssuer(testSigningKey, "dental", time.Hour)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return base }
	sess, err := issuer.Issue("user-1", "", []string{RolePatient}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// expired but inside the refresh window
	issuer.now = func() time.Time { return base.Add(2 * time.Hour) }
	claims, err := issuer.ParseForRefresh(sess.AccessToken)
	if err != nil {
		t.Fatalf("expected refresh to succeed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("unexpected subject %q", claims.Subject)
	}

	issuer.now = func() time.Time { return base.Add(30 * 24 * time.Hour) }
	if _, err := issuer.ParseForRefresh(sess.AccessToken); err != ErrTokenExpiredTooLong {
		t.Errorf("expected ErrTokenExpiredTooLong, got %v", err)
	}
}
