package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/config"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:            env,
		JWTSigningKey:  strings.Repeat("ab", 32),
		JWTIssuer:      "test",
		TokenTTL:       time.Hour,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		RequestTimeout: 5 * time.Second,
		ClinicTimezone: "UTC",
	}
}

func buildTestServer(t *testing.T, env string) *echo.Echo {
	t.Helper()
	e, err := newServer(testConfig(env), nil, zerolog.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return e
}

func TestNewServer_RegistersRoutes(t *testing.T) {
	e := buildTestServer(t, "production")

	have := make(map[string]bool)
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	want := []string{
		"GET /health",
		"GET /health/db",
		"GET /metrics",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/logout",
		"GET /api/v1/auth/revocations",
		"GET /api/v1/me",
		"GET /api/v1/me/menu",
		"POST /api/v1/users",
		"GET /api/v1/doctors",
		"POST /api/v1/patients",
		"GET /api/v1/doctors/:id/availability",
		"PUT /api/v1/doctors/:id/weekly-rules/:day",
		"POST /api/v1/doctors/:id/time-blocks",
		"POST /api/v1/appointments",
		"POST /api/v1/appointments/:id/cancel",
		"PATCH /api/v1/appointments/:id/status",
		"POST /api/v1/medical-records",
		"GET /api/v1/medical-records",
		"POST /api/v1/prescriptions",
		"PATCH /api/v1/prescriptions/:id/status",
		"GET /api/v1/doctors/:id/patients",
		"GET /api/v1/doctors/:id/patients/:patient_id/history",
		"GET /api/v1/openapi.json",
		"GET /api/v1/docs",
	}
	for _, w := range want {
		if !have[w] {
			t.Errorf("route %s not registered", w)
		}
	}
}

func TestNewServer_HealthIsPublic(t *testing.T) {
	e := buildTestServer(t, "production")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestNewServer_MetricsExposed(t *testing.T) {
	e := buildTestServer(t, "production")

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "portal_http_requests_total") {
		t.Errorf("expected request counter in metrics output")
	}
}

func TestNewServer_OpenAPIIsPublic(t *testing.T) {
	e := buildTestServer(t, "production")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/api/v1/doctors/{id}/availability") {
		t.Error("expected availability route in the document")
	}
}

func TestNewServer_RequiresTokenInProduction(t *testing.T) {
	e := buildTestServer(t, "production")

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me/menu", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestNewServer_MenuWithToken(t *testing.T) {
	cfg := testConfig("production")
	e := buildTestServer(t, "production")
	key, _ := cfg.SigningKey()
	token, _, err := auth.NewTokenIssuer(key, cfg.JWTIssuer, time.Hour).Issue(&auth.Session{
		UserID: uuid.New(), Username: "nurse", Role: auth.RoleNurse,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/menu", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"key":"patients"`) {
		t.Errorf("expected nurse menu, got %s", rec.Body.String())
	}
}

func TestNewServer_RoleGate(t *testing.T) {
	cfg := testConfig("production")
	e := buildTestServer(t, "production")
	key, _ := cfg.SigningKey()
	pid := uuid.New()
	token, _, err := auth.NewTokenIssuer(key, cfg.JWTIssuer, time.Hour).Issue(&auth.Session{
		UserID: uuid.New(), Username: "ada", Role: auth.RolePatient, PatientID: &pid,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestNewServer_RejectsBadSigningKey(t *testing.T) {
	cfg := testConfig("production")
	cfg.JWTSigningKey = "abcd"
	if _, err := newServer(cfg, nil, zerolog.Nop(), prometheus.NewRegistry()); err == nil {
		t.Fatal("expected error for short signing key")
	}
}

func TestNewUserFromFlags(t *testing.T) {
	u, err := newUserFromFlags("admin", "ADMIN", "Site Admin", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Role != auth.RoleAdmin || u.DoctorID != nil {
		t.Errorf("unexpected user: %+v", u)
	}

	if _, err := newUserFromFlags("", "admin", "", "", ""); err == nil {
		t.Error("expected error for missing username")
	}
	if _, err := newUserFromFlags("x", "janitor", "", "", ""); err == nil {
		t.Error("expected error for unknown role")
	}
	if _, err := newUserFromFlags("doc", "doctor", "", "not-a-uuid", ""); err == nil {
		t.Error("expected error for bad doctor id")
	}
}
