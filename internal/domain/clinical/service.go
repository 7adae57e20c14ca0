package clinical

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

var bloodPressurePattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)

type Service struct {
	records MedicalRecordRepository
	logger  zerolog.Logger
	now     func() time.Time
	loc     *time.Location
}

type Option func(*Service)

// WithClock sets "now" and the clinic time zone used to decide today.
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

func NewService(records MedicalRecordRepository, opts ...Option) *Service {
	s := &Service{records: records, logger: zerolog.Nop(), now: time.Now, loc: time.UTC}
	for _, o := range opts {
		o(s)
	}
	return s
}

// trimmed returns nil for blank text.
func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) CreateMedicalRecord(ctx context.Context, m *MedicalRecord) error {
	if m.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if m.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if m.VisitDate.IsZero() {
		return invalid("visit_date is required")
	}
	if m.VisitDate.After(calendar.Today(s.now(), s.loc)) {
		return invalid("visit_date cannot be in the future")
	}

	for _, f := range []**string{&m.ChiefComplaint, &m.Symptoms, &m.Diagnosis, &m.TreatmentPlan, &m.FollowUpInstructions, &m.Notes, &m.Vitals.BloodPressure} {
		*f = trimmed(*f)
	}
	if m.ChiefComplaint == nil && m.Diagnosis == nil {
		return invalid("chief_complaint or diagnosis is required")
	}
	if err := validateVitals(&m.Vitals); err != nil {
		return err
	}

	if err := s.records.Create(ctx, m); err != nil {
		return err
	}
	s.logger.Info().
		Str("record_id", m.ID.String()).
		Str("doctor_id", m.DoctorID.String()).
		Str("patient_id", m.PatientID.String()).
		Msg("medical record created")
	return nil
}

func validateVitals(v *VitalSigns) error {
	positive := map[string]*float64{"weight": v.WeightKg, "height": v.HeightCm, "temperature": v.TemperatureC}
	for name, p := range positive {
		if p != nil && *p <= 0 {
			return invalid("%s must be positive", name)
		}
	}
	if v.PulseRate != nil && *v.PulseRate <= 0 {
		return invalid("pulse_rate must be positive")
	}
	if v.BloodPressure != nil && !bloodPressurePattern.MatchString(*v.BloodPressure) {
		return invalid("blood_pressure must look like 120/80")
	}
	return nil
}

func (s *Service) GetMedicalRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListMedicalRecords(ctx context.Context, f RecordFilter, limit, offset int) ([]*MedicalRecord, int, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, invalid("to must not be before from")
	}
	f.Query = strings.TrimSpace(f.Query)
	return s.records.Search(ctx, f, limit, offset)
}

func (s *Service) ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*MedicalRecord, error) {
	return s.records.ListForPatientDoctor(ctx, patientID, doctorID)
}
