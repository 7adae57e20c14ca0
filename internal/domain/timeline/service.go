package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/clinical"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/identity"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/medication"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/scheduling"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

type RecordSource interface {
	ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*clinical.MedicalRecord, error)
}

type PrescriptionSource interface {
	ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*medication.Prescription, error)
}

type AppointmentSource interface {
	ListAppointmentsForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*scheduling.Appointment, error)
}

// Directory resolves the two parties of the relationship.
type Directory interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*identity.Doctor, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*identity.Patient, error)
}

// History is the patient history page for one doctor.
type History struct {
	Doctor  *identity.Doctor  `json:"doctor"`
	Patient *identity.Patient `json:"patient"`
	Events  []Event           `json:"events"`
	Stats   Stats             `json:"stats"`
}

type Service struct {
	records       RecordSource
	prescriptions PrescriptionSource
	appointments  AppointmentSource
	directory     Directory
	logger        zerolog.Logger
	now           func() time.Time
	loc           *time.Location
}

type Option func(*Service)

// WithClock sets "now" and the clinic time zone used for elapsed-time
// statistics.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(s *Service) {
		s.now = now
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(records RecordSource, prescriptions PrescriptionSource, appointments AppointmentSource, directory Directory, opts ...Option) *Service {
	s := &Service{
		records:       records,
		prescriptions: prescriptions,
		appointments:  appointments,
		directory:     directory,
		logger:        zerolog.Nop(),
		now:           time.Now,
		loc:           time.UTC,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PatientHistory loads the three row sets for (patientID, doctorID) with
// separate queries and aggregates them. A relationship with no rows yields
// an empty feed. An unknown doctor or patient yields identity.ErrNotFound.
func (s *Service) PatientHistory(ctx context.Context, doctorID, patientID uuid.UUID) (*History, error) {
	doctor, err := s.directory.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	patient, err := s.directory.GetPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	records, err := s.records.ListForPatientDoctor(ctx, patientID, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list medical records: %w", err)
	}
	prescriptions, err := s.prescriptions.ListForPatientDoctor(ctx, patientID, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	appointments, err := s.appointments.ListAppointmentsForPatientDoctor(ctx, patientID, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	h := &History{
		Doctor:  doctor,
		Patient: patient,
		Events:  Aggregate(records, prescriptions, appointments),
		Stats:   ComputeStats(records, prescriptions, appointments, calendar.Today(s.now(), s.loc)),
	}
	s.logger.Debug().
		Str("doctor_id", doctorID.String()).
		Str("patient_id", patientID.String()).
		Int("events", len(h.Events)).
		Msg("patient history loaded")
	return h, nil
}
