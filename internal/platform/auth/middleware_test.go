package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims(role string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "frontdesk",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
}

// runJWT runs JWTMiddleware against a request carrying header and returns the
// principal seen by the next handler.
func runJWT(t *testing.T, cfg JWTConfig, header string) (Principal, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	var got Principal
	err := JWTMiddleware(cfg)(func(c echo.Context) error {
		got, _ = PrincipalFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})(c)
	return got, c, err
}

func expectUnauthorized(t *testing.T, err error) {
	t.Helper()
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"ADMIN", RoleAdmin, true},
		{"staff", RoleStaff, true},
		{" Admin ", RoleAdmin, true},
		{"doctor", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRole(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRole(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "")
	expectUnauthorized(t, err)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, tt.header)
			expectUnauthorized(t, err)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	token := createTestToken(t, validClaims("STAFF"), testSigningKey)

	got, c, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "frontdesk"}, "Bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "user-123" || got.Role != RoleStaff {
		t.Errorf("unexpected principal %+v", got)
	}
	if c.Get("user_id") != "user-123" {
		t.Errorf("expected user_id on the echo context, got %v", c.Get("user_id"))
	}
}

func TestJWTMiddleware_LowercaseBearer(t *testing.T) {
	token := createTestToken(t, validClaims("admin"), testSigningKey)
	got, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "bearer "+token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Role != RoleAdmin {
		t.Errorf("expected ADMIN, got %q", got.Role)
	}
}

func TestJWTMiddleware_RejectedTokens(t *testing.T) {
	expired := validClaims("STAFF")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims("STAFF")
	noExpiry.ExpiresAt = nil

	unknownRole := validClaims("DOCTOR")

	noSubject := validClaims("STAFF")
	noSubject.Subject = ""

	wrongIssuer := validClaims("STAFF")
	wrongIssuer.Issuer = "someone-else"

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("STAFF")).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", createTestToken(t, expired, testSigningKey)},
		{"no expiry", createTestToken(t, noExpiry, testSigningKey)},
		{"wrong key", createTestToken(t, validClaims("STAFF"), []byte("another-key"))},
		{"unknown role", createTestToken(t, unknownRole, testSigningKey)},
		{"no subject", createTestToken(t, noSubject, testSigningKey)},
		{"wrong issuer", createTestToken(t, wrongIssuer, testSigningKey)},
		{"alg none", none},
		{"garbage", "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runJWT(t, JWTConfig{SigningKey: testSigningKey, Issuer: "frontdesk"}, "Bearer "+tt.token)
			expectUnauthorized(t, err)
		})
	}
}

func TestDevAuthMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	var got Principal
	err := DevAuthMiddleware()(func(c echo.Context) error {
		got, _ = PrincipalFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "dev-user" || got.Role != RoleAdmin {
		t.Errorf("unexpected principal %+v", got)
	}
	if c.Get("user_id") != "dev-user" {
		t.Errorf("expected user_id dev-user, got %v", c.Get("user_id"))
	}
}

func TestPrincipalFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := PrincipalFromContext(req.Context()); ok {
		t.Error("expected no principal on a bare context")
	}
}
