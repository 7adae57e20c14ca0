package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequireSession rejects requests that carry no session.
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if SessionFromContext(c.Request().Context()) == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return next(c)
		}
	}
}

// RequireRole returns middleware that checks if the caller has at least one
// of the specified roles. Admin passes every check.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := SessionFromContext(c.Request().Context())
			if s == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if s.HasRole(roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(names, " or ")))
		}
	}
}

// CanActForDoctor reports whether s may read or change the schedule and
// appointments of doctorID. Doctors are limited to their own; front-desk
// staff work across all doctors.
func CanActForDoctor(s *Session, doctorID uuid.UUID) bool {
	if s == nil {
		return false
	}
	switch s.Role {
	case RoleAdmin, RoleNurse, RoleReceptionist:
		return true
	case RoleDoctor:
		return s.DoctorID != nil && *s.DoctorID == doctorID
	}
	return false
}

// CanActForPatient reports whether s may read data belonging to patientID.
// Patients only see themselves.
func CanActForPatient(s *Session, patientID uuid.UUID) bool {
	if s == nil {
		return false
	}
	if s.Role.Staff() {
		return true
	}
	return s.Role == RolePatient && s.PatientID != nil && *s.PatientID == patientID
}
