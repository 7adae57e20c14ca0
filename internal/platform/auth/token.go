package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Revoker reports whether a token ID was logged out.
type Revoker interface {
	IsRevoked(jti string) bool
}

// Claims is the JWT payload issued at login.
type Claims struct {
	jwt.RegisteredClaims
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	DoctorID  string `json:"doctor_id,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	key     []byte
	issuer  string
	ttl     time.Duration
	now     func() time.Time
	revoker Revoker
}

func NewTokenIssuer(key []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}
}

// UseRevocations makes Parse reject tokens that r reports as revoked.
func (t *TokenIssuer) UseRevocations(r Revoker) {
	t.revoker = r
}

// Issue signs a token for s and returns it with its expiry.
func (t *TokenIssuer) Issue(s *Session) (string, time.Time, error) {
	if s == nil || s.UserID == uuid.Nil {
		return "", time.Time{}, fmt.Errorf("issue token: session has no user")
	}
	now := t.now()
	exp := now.Add(t.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID.String(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Username: s.Username,
		Role:     s.Role,
	}
	if s.DoctorID != nil {
		claims.DoctorID = s.DoctorID.String()
	}
	if s.PatientID != nil {
		claims.PatientID = s.PatientID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies a token and rebuilds the session it was issued for.
func (t *TokenIssuer) Parse(tokenStr string) (*Session, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	if t.revoker != nil && t.revoker.IsRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}

	s := &Session{UserID: uid, Username: claims.Username, Role: claims.Role, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.DoctorID != "" {
		id, err := uuid.Parse(claims.DoctorID)
		if err != nil {
			return nil, ErrInvalidToken
		}
		s.DoctorID = &id
	}
	if claims.PatientID != "" {
		id, err := uuid.Parse(claims.PatientID)
		if err != nil {
			return nil, ErrInvalidToken
		}
		s.PatientID = &id
	}
	return s, nil
}
