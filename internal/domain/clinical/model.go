package clinical

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

var (
	ErrNotFound   = errors.New("medical record not found")
	ErrValidation = errors.New("validation failed")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// VitalSigns recorded at a visit. Every field is optional.
type VitalSigns struct {
	WeightKg      *float64 `json:"weight,omitempty"`
	HeightCm      *float64 `json:"height,omitempty"`
	BloodPressure *string  `json:"blood_pressure,omitempty"`
	TemperatureC  *float64 `json:"temperature,omitempty"`
	PulseRate     *int     `json:"pulse_rate,omitempty"`
}

// MedicalRecord maps to the medical_records table. Records are written once
// per visit and never updated.
type MedicalRecord struct {
	ID                   uuid.UUID     `json:"id"`
	PatientID            uuid.UUID     `json:"patient_id"`
	DoctorID             uuid.UUID     `json:"doctor_id"`
	VisitDate            calendar.Date `json:"visit_date"`
	ChiefComplaint       *string       `json:"chief_complaint,omitempty"`
	Symptoms             *string       `json:"symptoms,omitempty"`
	Diagnosis            *string       `json:"diagnosis,omitempty"`
	TreatmentPlan        *string       `json:"treatment_plan,omitempty"`
	FollowUpInstructions *string       `json:"follow_up_instructions,omitempty"`
	Notes                *string       `json:"notes,omitempty"`
	Vitals               VitalSigns    `json:"vital_signs"`
	CreatedAt            time.Time     `json:"created_at"`

	DoctorName  string `json:"doctor_name,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// RecordFilter narrows ListMedicalRecords. Zero fields are ignored; Query
// matches chief complaint or diagnosis case-insensitively.
type RecordFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	From      calendar.Date
	To        calendar.Date
	Query     string
}
