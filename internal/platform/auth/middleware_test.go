package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-jwt-testing-only")

func createTestToken(t *testing.T, claims *Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "dental",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles:    []string{RoleDentist},
		BranchID: "north",
	}
}

func runJWT(t *testing.T, cfg JWTConfig, header string) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen echo.Context
	handler := JWTMiddleware(cfg)(func(c echo.Context) error {
		seen = c
		return c.String(http.StatusOK, "ok")
	})
	return rec, seen, handler(c)
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Basic abc")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)
	_, c, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "dental"}, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := c.Request().Context()
	if got := UserIDFromContext(ctx); got != "user-123" {
		t.Errorf("expected user-123, got %q", got)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleDentist {
		t.Errorf("unexpected roles %v", roles)
	}
	if c.Get("jwt_branch_id") != "north" {
		t.Errorf("expected branch claim to be exposed, got %v", c.Get("jwt_branch_id"))
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	token := createTestToken(t, validClaims(), []byte("another-key-another-key-another-key"))
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	if err == nil {
		t.Fatal("expected error for token signed with another key")
	}
}

func TestJWTMiddleware_Expired(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token := createTestToken(t, claims, testSigningKey)
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+token)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTMiddleware_WrongIssuer(t *testing.T) {
	token := createTestToken(t, validClaims(), testSigningKey)
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "someone-else"}, "Bearer "+token)
	if err == nil {
		t.Fatal("expected error for issuer mismatch")
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Dev-User", "patient-7")
	req.Header.Set("X-Dev-Role", RolePatient)
	c := e.NewContext(req, httptest.NewRecorder())

	var uid string
	var roles []string
	h := DevAuthMiddleware()(func(c echo.Context) error {
		uid = UserIDFromContext(c.Request().Context())
		roles = RolesFromContext(c.Request().Context())
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "patient-7" || len(roles) != 1 || roles[0] != RolePatient {
		t.Errorf("unexpected identity %q %v", uid, roles)
	}
}

func TestSkipPaths(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/auth/login")

	called := false
	mw := SkipPaths(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "/api/v1/auth/login")
	if err := mw(func(echo.Context) error { called = true; return nil })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected skipped path to reach handler without a token")
	}
}

func TestSkipPaths_MethodScoped(t *testing.T) {
	e := echo.New()
	mw := SkipPaths(JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), "GET /api/v1/clinic")
	next := func(echo.Context) error { return nil }

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/clinic", nil), httptest.NewRecorder())
	c.SetPath("/api/v1/clinic")
	if err := mw(next)(c); err != nil {
		t.Errorf("GET should skip auth, got %v", err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodPut, "/api/v1/clinic", nil), httptest.NewRecorder())
	c.SetPath("/api/v1/clinic")
	err := mw(next)(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Errorf("PUT should require a token, got %v", err)
	}
}

func TestBearerToken_QueryOnlyForUpgrades(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/queue/live?access_token=abc", nil)
	if _, err := bearerToken(req); err == nil {
		t.Fatal("plain requests must not read the token from the query")
	}

	req.Header.Set("Upgrade", "websocket")
	tok, err := bearerToken(req)
	if err != nil || tok != "abc" {
		t.Fatalf("expected abc, got %q (%v)", tok, err)
	}
}
