package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const sessionKey contextKey = "session"

// Session is the authenticated caller of a single request. It is built by
// the auth middleware and travels on the request context only.
type Session struct {
	UserID    uuid.UUID  `json:"user_id"`
	Username  string     `json:"username"`
	Role      Role       `json:"role"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`

	// Set when the session came from a bearer token.
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the request session, or nil when the request
// is unauthenticated.
func SessionFromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

// HasRole reports whether the session holds one of roles. Admin holds all.
func (s *Session) HasRole(roles ...Role) bool {
	if s == nil {
		return false
	}
	if s.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}
