package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// User maps to the users table. A doctor or patient account links to its
// profile row.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         auth.Role  `db:"role" json:"role"`
	DisplayName  string     `db:"display_name" json:"display_name"`
	Email        *string    `db:"email" json:"email,omitempty"`
	DoctorID     *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	PatientID    *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Session builds the request session for u.
func (u *User) Session() *auth.Session {
	return &auth.Session{
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		DoctorID:  u.DoctorID,
		PatientID: u.PatientID,
	}
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID             uuid.UUID `db:"id" json:"id"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	Department     *string   `db:"department" json:"department,omitempty"`
	LicenseNumber  *string   `db:"license_number" json:"license_number,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	Email          *string   `db:"email" json:"email,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (d *Doctor) FullName() string { return d.FirstName + " " + d.LastName }

// Patient maps to the patients table.
type Patient struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	MRN              string         `db:"mrn" json:"mrn"`
	FirstName        string         `db:"first_name" json:"first_name"`
	LastName         string         `db:"last_name" json:"last_name"`
	DateOfBirth      *calendar.Date `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender           *string        `db:"gender" json:"gender,omitempty"`
	BloodGroup       *string        `db:"blood_group" json:"blood_group,omitempty"`
	Phone            *string        `db:"phone" json:"phone,omitempty"`
	Email            *string        `db:"email" json:"email,omitempty"`
	Address          *string        `db:"address" json:"address,omitempty"`
	EmergencyContact *string        `db:"emergency_contact" json:"emergency_contact,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

func (p *Patient) FullName() string { return p.FirstName + " " + p.LastName }

// DoctorFilter narrows ListDoctors. Query matches first or last name.
type DoctorFilter struct {
	Query          string
	Specialization string
	Department     string
	ActiveOnly     bool
}

// PatientFilter narrows ListPatients. Query matches name, MRN or phone.
type PatientFilter struct {
	Query string
}
