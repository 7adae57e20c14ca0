package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
)

// AuditEntry records one request that touched patient data.
type AuditEntry struct {
	UserID     string
	Role       string
	Resource   string
	PatientID  string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists or forwards audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// auditedPrefixes are the API resources holding patient data.
var auditedPrefixes = []string{
	"/api/v1/patients",
	"/api/v1/medical-records",
	"/api/v1/prescriptions",
	"/api/v1/appointments",
}

// Audit emits one "phi_access" log event per request to a patient data
// route and hands the entry to each recorder.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				Action:     httpMethodToAction(req.Method),
				Resource:   extractResource(path),
				PatientID:  extractPatientID(c),
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}
			if s := auth.SessionFromContext(req.Context()); s != nil {
				entry.UserID = s.UserID.String()
				entry.Role = string(s.Role)
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "phi_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

// isAuditablePath matches patient data resources, including the per-doctor
// patient list and history under /api/v1/doctors/:id/patients and the
// availability view, which names booked patients.
func isAuditablePath(path string) bool {
	for _, p := range auditedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	if strings.HasPrefix(path, "/api/v1/doctors/") {
		segs := strings.Split(strings.TrimPrefix(path, "/api/v1/doctors/"), "/")
		return len(segs) >= 2 && (segs[1] == "patients" || segs[1] == "availability")
	}
	return false
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource returns the resource a path addresses:
//
//	/api/v1/patients/123                  -> patients
//	/api/v1/doctors/1/patients/2/history  -> history
//	/api/v1/doctors/1/patients            -> patients
func extractResource(path string) string {
	segs := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return "unknown"
	}
	if segs[0] == "doctors" && len(segs) >= 5 {
		return segs[4]
	}
	if segs[0] == "doctors" && len(segs) >= 3 {
		return segs[2]
	}
	return segs[0]
}

// extractPatientID finds a patient identifier in the path or the
// patient_id query parameter.
func extractPatientID(c echo.Context) string {
	path := c.Request().URL.Path

	if strings.HasPrefix(path, "/api/v1/patients/") {
		seg := strings.SplitN(strings.TrimPrefix(path, "/api/v1/patients/"), "/", 2)[0]
		if isUUID(seg) {
			return seg
		}
	}
	if strings.HasPrefix(path, "/api/v1/doctors/") {
		segs := strings.Split(strings.TrimPrefix(path, "/api/v1/doctors/"), "/")
		if len(segs) >= 3 && segs[1] == "patients" && isUUID(segs[2]) {
			return segs[2]
		}
	}
	if p := c.QueryParam("patient_id"); isUUID(p) {
		return p
	}
	return ""
}

func isUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
