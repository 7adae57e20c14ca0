package medication

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/clinical"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/db"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

// numberAttempts bounds retries after a prescription number collision.
const numberAttempts = 3

// maxCost is the first amount NUMERIC(10,2) cannot hold.
var maxCost = decimal.New(1, 8)

// RecordLookup resolves the medical record a prescription is linked to.
type RecordLookup interface {
	GetMedicalRecord(ctx context.Context, id uuid.UUID) (*clinical.MedicalRecord, error)
}

type Service struct {
	prescriptions PrescriptionRepository
	records       RecordLookup
	tx            db.TxRunner
	logger        zerolog.Logger
	numbers       func(calendar.Date) string
	now           func() time.Time
	loc           *time.Location
}

type Option func(*Service)

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

// WithNumberGenerator replaces NewNumber.
func WithNumberGenerator(fn func(calendar.Date) string) Option {
	return func(s *Service) { s.numbers = fn }
}

func NewService(prescriptions PrescriptionRepository, records RecordLookup, tx db.TxRunner, opts ...Option) *Service {
	s := &Service{
		prescriptions: prescriptions,
		records:       records,
		tx:            tx,
		logger:        zerolog.Nop(),
		numbers:       NewNumber,
		now:           time.Now,
		loc:           time.UTC,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

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

func validateItem(i int, it *Item) error {
	it.MedicationName = strings.TrimSpace(it.MedicationName)
	it.Dosage = strings.TrimSpace(it.Dosage)
	it.Frequency = strings.TrimSpace(it.Frequency)
	it.Duration = trimmed(it.Duration)
	it.Instructions = trimmed(it.Instructions)

	switch {
	case it.MedicationName == "":
		return invalid("items[%d]: medication_name is required", i)
	case it.Dosage == "":
		return invalid("items[%d]: dosage is required", i)
	case it.Frequency == "":
		return invalid("items[%d]: frequency is required", i)
	case it.Quantity <= 0:
		return invalid("items[%d]: quantity must be positive", i)
	case it.Cost.IsNegative():
		return invalid("items[%d]: cost cannot be negative", i)
	case !it.Cost.Equal(it.Cost.Round(2)):
		return invalid("items[%d]: cost has more than 2 decimal places", i)
	case it.Cost.GreaterThanOrEqual(maxCost):
		return invalid("items[%d]: cost is too large", i)
	}
	it.Cost = it.Cost.Round(2)
	return nil
}

// checkRecord rejects a linked medical record of another patient or doctor.
func (s *Service) checkRecord(ctx context.Context, p *Prescription) error {
	if p.MedicalRecordID == nil {
		return nil
	}
	rec, err := s.records.GetMedicalRecord(ctx, *p.MedicalRecordID)
	if errors.Is(err, clinical.ErrNotFound) {
		return invalid("medical_record_id %s does not exist", *p.MedicalRecordID)
	}
	if err != nil {
		return fmt.Errorf("load medical record: %w", err)
	}
	if rec.PatientID != p.PatientID || rec.DoctorID != p.DoctorID {
		return invalid("medical record %s belongs to another patient or doctor", rec.ID)
	}
	return nil
}

// CreatePrescription stores the header and its items in one transaction.
// The status starts active and the total is the sum of item costs.
func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if p.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if len(p.Items) == 0 {
		return invalid("at least one item is required")
	}
	today := calendar.Today(s.now(), s.loc)
	if p.Date.IsZero() {
		p.Date = today
	}
	if p.Date.After(today) {
		return invalid("prescription_date cannot be in the future")
	}

	total := decimal.Zero
	for i := range p.Items {
		if err := validateItem(i, &p.Items[i]); err != nil {
			return err
		}
		p.Items[i].LineNo = i + 1
		total = total.Add(p.Items[i].Cost)
	}
	if total.GreaterThanOrEqual(maxCost) {
		return invalid("total cost is too large")
	}
	p.TotalCost = total
	p.Status = StatusActive
	p.Notes = trimmed(p.Notes)

	var err error
	for attempt := 0; attempt < numberAttempts; attempt++ {
		p.Number = s.numbers(p.Date)
		err = s.tx(ctx, func(ctx context.Context) error {
			if err := s.checkRecord(ctx, p); err != nil {
				return err
			}
			if err := s.prescriptions.Create(ctx, p); err != nil {
				return err
			}
			for i := range p.Items {
				p.Items[i].PrescriptionID = p.ID
				if err := s.prescriptions.AddItem(ctx, &p.Items[i]); err != nil {
					return fmt.Errorf("add item %d: %w", i+1, err)
				}
			}
			return nil
		})
		if !errors.Is(err, errDuplicateNumber) {
			break
		}
		s.logger.Warn().Str("number", p.Number).Msg("prescription number collision, retrying")
	}
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("prescription_id", p.ID.String()).
		Str("number", p.Number).
		Str("doctor_id", p.DoctorID.String()).
		Str("patient_id", p.PatientID.String()).
		Str("total_cost", p.TotalCost.StringFixed(2)).
		Msg("prescription created")
	return nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) ListPrescriptions(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, invalid("invalid status %q", f.Status)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, invalid("to must not be before from")
	}
	return s.prescriptions.Search(ctx, f, limit, offset)
}

func (s *Service) ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*Prescription, error) {
	return s.prescriptions.ListForPatientDoctor(ctx, patientID, doctorID)
}

// UpdatePrescriptionStatus completes or cancels an active prescription.
func (s *Service) UpdatePrescriptionStatus(ctx context.Context, id uuid.UUID, next Status) (*Prescription, error) {
	if !next.Valid() {
		return nil, invalid("invalid status %q", next)
	}
	var out *Prescription
	err := s.tx(ctx, func(ctx context.Context) error {
		p, err := s.prescriptions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !p.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
		}
		if err := s.prescriptions.UpdateStatus(ctx, id, next); err != nil {
			return err
		}
		s.logger.Info().
			Str("prescription_id", id.String()).
			Str("from", string(p.Status)).
			Str("to", string(next)).
			Msg("prescription status changed")
		p.Status = next
		out = p
		return nil
	})
	return out, err
}
