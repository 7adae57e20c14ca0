package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer(testSigningKey, "hospital-portal", time.Hour)
}

func issueTestToken(t *testing.T, s *Session) string {
	t.Helper()
	tok, _, err := newTestIssuer().Issue(s)
	if err != nil {
		t.Fatalf("failed to issue test token: %v", err)
	}
	return tok
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := JWTMiddleware(newTestIssuer(), nil)(okHandler)(c)
	if err == nil {
		t.Fatal("expected error for missing header")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
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
		{"garbage token", "Bearer not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := JWTMiddleware(newTestIssuer(), nil)(okHandler)(c)
			if err == nil {
				t.Fatal("expected error for invalid format")
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %T", err)
			}
			if httpErr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", httpErr.Code)
			}
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	doctorID := uuid.New()
	want := &Session{UserID: uuid.New(), Username: "dr.perera", Role: RoleDoctor, DoctorID: &doctorID}
	tokenStr := issueTestToken(t, want)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Session
	handler := func(c echo.Context) error {
		got = SessionFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	}

	if err := JWTMiddleware(newTestIssuer(), nil)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected session on request context")
	}
	if got.UserID != want.UserID || got.Role != RoleDoctor || got.Username != "dr.perera" {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.DoctorID == nil || *got.DoctorID != doctorID {
		t.Errorf("expected doctor id %s, got %v", doctorID, got.DoctorID)
	}
	if c.Get("user_id") != want.UserID.String() {
		t.Errorf("expected user_id on echo context, got %v", c.Get("user_id"))
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	other := NewTokenIssuer([]byte("another-key-that-is-long-enough!"), "hospital-portal", time.Hour)
	tok, _, err := other.Issue(&Session{UserID: uuid.New(), Role: RoleAdmin})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	c := e.NewContext(req, httptest.NewRecorder())

	err = JWTMiddleware(newTestIssuer(), nil)(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			Issuer:    "hospital-portal",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleAdmin,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSigningKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := JWTMiddleware(newTestIssuer(), nil)(okHandler)(c); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestJWTMiddleware_SkipsPublicPaths(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/health")

	if err := JWTMiddleware(newTestIssuer(), PublicSkipper)(okHandler)(c); err != nil {
		t.Fatalf("expected public path to bypass auth, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestDevAuthMiddleware_NoHeaderIsAdmin(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	var got *Session
	handler := func(c echo.Context) error {
		got = SessionFromContext(c.Request().Context())
		return nil
	}
	if err := DevAuthMiddleware(newTestIssuer())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Role != RoleAdmin {
		t.Fatalf("expected admin session, got %+v", got)
	}
}

func TestDevAuthMiddleware_TokenStillVerified(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	c := e.NewContext(req, httptest.NewRecorder())

	if err := DevAuthMiddleware(newTestIssuer())(okHandler)(c); err == nil {
		t.Fatal("expected invalid token to be rejected in development too")
	}

	patientID := uuid.New()
	tok := issueTestToken(t, &Session{UserID: uuid.New(), Role: RolePatient, PatientID: &patientID})
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	c = e.NewContext(req, httptest.NewRecorder())

	var got *Session
	handler := func(c echo.Context) error {
		got = SessionFromContext(c.Request().Context())
		return nil
	}
	if err := DevAuthMiddleware(newTestIssuer())(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Role != RolePatient || *got.PatientID != patientID {
		t.Fatalf("expected patient session, got %+v", got)
	}
}

func TestIsPublicPath(t *testing.T) {
	for _, p := range []string{"/health", "/health/db", "/metrics", "/api/v1/auth/login", "/api/v1/openapi.json"} {
		if !IsPublicPath(p) {
			t.Errorf("expected %s to be public", p)
		}
	}
	for _, p := range []string{"/api/v1/patients", "/api/v1/me", "/", "/health/extra"} {
		if IsPublicPath(p) {
			t.Errorf("expected %s to be protected", p)
		}
	}
}
