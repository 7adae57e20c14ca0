package medication

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

var (
	ErrNotFound          = errors.New("prescription not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")

	errDuplicateNumber = errors.New("duplicate prescription number")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	// StatusExpired is accepted when filtering and reading. The portal never
	// sets it; rows carry it only when written outside the API.
	StatusExpired Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo allows only active -> completed | cancelled.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusActive && (next == StatusCompleted || next == StatusCancelled)
}

// Item maps to prescription_items.
type Item struct {
	ID             uuid.UUID       `json:"id"`
	PrescriptionID uuid.UUID       `json:"prescription_id"`
	LineNo         int             `json:"line_no"`
	MedicationName string          `json:"medication_name"`
	Dosage         string          `json:"dosage"`
	Frequency      string          `json:"frequency"`
	Duration       *string         `json:"duration,omitempty"`
	Quantity       int             `json:"quantity"`
	Instructions   *string         `json:"instructions,omitempty"`
	Cost           decimal.Decimal `json:"cost"`
}

// Prescription maps to prescriptions. TotalCost is fixed at creation as the
// sum of item costs.
type Prescription struct {
	ID              uuid.UUID       `json:"id"`
	Number          string          `json:"prescription_number"`
	PatientID       uuid.UUID       `json:"patient_id"`
	DoctorID        uuid.UUID       `json:"doctor_id"`
	MedicalRecordID *uuid.UUID      `json:"medical_record_id,omitempty"`
	Date            calendar.Date   `json:"prescription_date"`
	Status          Status          `json:"status"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []Item          `json:"items"`

	DoctorName  string `json:"doctor_name,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// Filter narrows ListPrescriptions. Zero fields are ignored.
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    Status
	From      calendar.Date
	To        calendar.Date
}

// NewNumber formats a prescription number as RX-YYYYMMDD-XXXXXXXX.
func NewNumber(d calendar.Date) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("RX-%04d%02d%02d-%s", d.Year, int(d.Month), d.Day, strings.ToUpper(suffix))
}
