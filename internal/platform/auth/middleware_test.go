package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-32b")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "biller-7",
			Issuer:    "carehub-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"biller"},
	}
}

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (context.Context, error) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(req, httptest.NewRecorder())
	var seen context.Context
	err := mw(func(c echo.Context) error {
		seen = c.Request().Context()
		return c.String(http.StatusOK, "ok")
	})(c)
	return seen, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), httptest.NewRequest(http.MethodGet, "/", nil))
	if code := statusOf(t, err); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), req)
	if code := statusOf(t, err); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+createTestToken(t, validClaims(), testSigningKey))

	ctx, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "carehub-test"}), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid := UserIDFromContext(ctx); uid != "biller-7" {
		t.Errorf("expected biller-7, got %q", uid)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != "biller" {
		t.Errorf("unexpected roles %v", roles)
	}
}

func TestJWTMiddleware_QueryToken(t *testing.T) {
	tok := createTestToken(t, validClaims(), testSigningKey)
	req := httptest.NewRequest(http.MethodGet, "/jobs/1/events?access_token="+tok, nil)
	if _, err := run(t, JWTMiddleware(JWTConfig{SigningKey: testSigningKey}), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noExp := validClaims()
	noExp.ExpiresAt = nil
	noSub := validClaims()
	noSub.Subject = ""
	wrongIss := validClaims()
	wrongIss.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"wrong key", createTestToken(t, validClaims(), []byte("another-key-another-key-another-k"))},
		{"expired", createTestToken(t, expired, testSigningKey)},
		{"no expiry", createTestToken(t, noExp, testSigningKey)},
		{"no subject", createTestToken(t, noSub, testSigningKey)},
		{"wrong issuer", createTestToken(t, wrongIss, testSigningKey)},
	}
	mw := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "carehub-test"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			_, err := run(t, mw, req)
			if code := statusOf(t, err); code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", code)
			}
		})
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	ctx, err := run(t, DevAuthMiddleware(), httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid := UserIDFromContext(ctx); uid != DevUserID {
		t.Errorf("expected %s, got %q", DevUserID, uid)
	}
}
