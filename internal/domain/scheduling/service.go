package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/db"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/metrics"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

// BookingObserver is told the outcome of every booking attempt.
type BookingObserver interface {
	ObserveBooking(result string)
}

type nopObserver struct{}

func (nopObserver) ObserveBooking(string) {}

type Service struct {
	rules        WeeklyRuleRepository
	blocks       TimeBlockRepository
	appointments AppointmentRepository
	tx           db.TxRunner
	logger       zerolog.Logger
	bookings     BookingObserver
	now          func() time.Time
	loc          *time.Location
}

type Option func(*Service)

// WithClock sets the source of "now" and the clinic time zone that decides
// which date is today.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(s *Service) {
		s.now = now
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithBookingObserver(o BookingObserver) Option {
	return func(s *Service) { s.bookings = o }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(rules WeeklyRuleRepository, blocks TimeBlockRepository, appts AppointmentRepository, tx db.TxRunner, opts ...Option) *Service {
	s := &Service{
		rules:        rules,
		blocks:       blocks,
		appointments: appts,
		tx:           tx,
		logger:       zerolog.Nop(),
		bookings:     nopObserver{},
		now:          time.Now,
		loc:          time.UTC,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) today() calendar.Date {
	return calendar.Today(s.now(), s.loc)
}

// -- Availability --

// WeekAvailability resolves the week containing anchor for doctorID. A zero
// anchor means the current week.
func (s *Service) WeekAvailability(ctx context.Context, doctorID uuid.UUID, anchor calendar.Date) (*WeekView, error) {
	if doctorID == uuid.Nil {
		return nil, invalid("doctor_id is required")
	}
	if anchor.IsZero() {
		anchor = s.today()
	}
	from, to := dayBounds(anchor)

	rules, err := s.rules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blocks.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return ResolveWeek(doctorID, anchor, rules, blocks, appts), nil
}

// -- Weekly rules --

func (s *Service) UpsertWeeklyRule(ctx context.Context, r *WeeklyRule) error {
	if r.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if _, err := ParseWeekday(string(r.DayOfWeek)); err != nil {
		return invalid("%v", err)
	}
	if !r.StartTime.Valid() || !r.EndTime.Valid() {
		return invalid("start_time and end_time must be within the day")
	}
	if r.SlotDurationMinutes < MinSlotDuration || r.SlotDurationMinutes > MaxSlotDuration {
		return invalid("slot_duration_minutes must be between %d and %d", MinSlotDuration, MaxSlotDuration)
	}
	if err := s.rules.Upsert(ctx, r); err != nil {
		return err
	}
	if r.Misconfigured() {
		s.logger.Warn().
			Str("doctor_id", r.DoctorID.String()).
			Str("day_of_week", string(r.DayOfWeek)).
			Str("start_time", r.StartTime.String()).
			Str("end_time", r.EndTime.String()).
			Msg("weekly rule yields no slots")
	}
	return nil
}

func (s *Service) ListWeeklyRules(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyRule, error) {
	return s.rules.ListByDoctor(ctx, doctorID)
}

func (s *Service) DeleteWeeklyRule(ctx context.Context, doctorID uuid.UUID, day Weekday) error {
	if _, err := ParseWeekday(string(day)); err != nil {
		return invalid("%v", err)
	}
	return s.rules.Delete(ctx, doctorID, day)
}

// -- Time blocks --

func (s *Service) CreateTimeBlock(ctx context.Context, b *TimeBlock) error {
	if b.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if b.Date.IsZero() {
		return invalid("date is required")
	}
	if !b.StartTime.Valid() || !b.EndTime.Valid() {
		return invalid("start_time and end_time must be within the day")
	}
	if b.EndTime <= b.StartTime {
		return invalid("end_time must be after start_time")
	}
	b.Reason = strings.TrimSpace(b.Reason)
	return s.blocks.Create(ctx, b)
}

func (s *Service) GetTimeBlock(ctx context.Context, id uuid.UUID) (*TimeBlock, error) {
	return s.blocks.GetByID(ctx, id)
}

// ListTimeBlocks returns blocks in [from, to]; zero bounds are open.
func (s *Service) ListTimeBlocks(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]*TimeBlock, error) {
	return s.blocks.ListByDoctor(ctx, doctorID, from, to)
}

func (s *Service) DeleteTimeBlock(ctx context.Context, id uuid.UUID) error {
	return s.blocks.Delete(ctx, id)
}

// -- Appointments --

// BookAppointment books a.Date/a.Time with a.DoctorID for a.PatientID. The
// slot must be free in the resolved week. Bookings for one doctor and day
// are serialized, and the active-slot unique index rejects any booking that
// still races through.
func (s *Service) BookAppointment(ctx context.Context, a *Appointment) (err error) {
	defer func() { s.recordBooking(a, err) }()

	if a.DoctorID == uuid.Nil {
		return invalid("doctor_id is required")
	}
	if a.PatientID == uuid.Nil {
		return invalid("patient_id is required")
	}
	if a.Date.IsZero() {
		return invalid("date is required")
	}
	if !a.Time.Valid() {
		return invalid("time must be within the day")
	}
	if a.Date.Before(s.today()) || slotStart(a.Date, a.Time, s.loc).Before(s.now()) {
		return invalid("cannot book an appointment in the past")
	}
	a.Status = StatusScheduled
	a.CancelReason = nil

	return s.tx(ctx, func(ctx context.Context) error {
		if err := s.appointments.LockDoctorDay(ctx, a.DoctorID, a.Date); err != nil {
			return err
		}
		week, err := s.WeekAvailability(ctx, a.DoctorID, a.Date)
		if err != nil {
			return err
		}
		if err := CheckBookable(week, a.Date, a.Time); err != nil {
			return err
		}
		return s.appointments.Create(ctx, a)
	})
}

func (s *Service) recordBooking(a *Appointment, err error) {
	result := metrics.BookingAccepted
	switch {
	case err == nil:
	case errors.Is(err, ErrSlotUnavailable):
		result = metrics.BookingUnavailable
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		result = metrics.BookingRejected
	default:
		result = metrics.BookingError
	}
	s.bookings.ObserveBooking(result)

	evt := s.logger.Info()
	if err != nil {
		evt = s.logger.Warn().Err(err)
	}
	evt.Str("doctor_id", a.DoctorID.String()).
		Str("patient_id", a.PatientID.String()).
		Str("date", a.Date.String()).
		Str("time", a.Time.String()).
		Str("result", result).
		Msg("appointment booking")
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, invalid("invalid status %q", f.Status)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, 0, invalid("to must not be before from")
	}
	return s.appointments.Search(ctx, f, limit, offset)
}

// ListAppointmentsForPatientDoctor returns every appointment between one
// patient and one doctor, newest first.
func (s *Service) ListAppointmentsForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*Appointment, error) {
	return s.appointments.ListForPatientDoctor(ctx, patientID, doctorID)
}

// UpdateAppointmentStatus moves an appointment along its lifecycle.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, next AppointmentStatus, reason *string) (*Appointment, error) {
	if !next.Valid() {
		return nil, invalid("invalid status %q", next)
	}
	var out *Appointment
	err := s.tx(ctx, func(ctx context.Context) error {
		a, err := s.appointments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !a.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, next)
		}
		prev := a.Status
		a.Status = next
		if next == StatusCancelled {
			a.CancelReason = reason
		}
		if err := s.appointments.UpdateStatus(ctx, a); err != nil {
			return err
		}
		s.logger.Info().
			Str("appointment_id", a.ID.String()).
			Str("from", string(prev)).
			Str("to", string(next)).
			Msg("appointment status changed")
		out = a
		return nil
	})
	return out, err
}

// CancelAppointment frees the appointment's slot.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	var r *string
	if reason = strings.TrimSpace(reason); reason != "" {
		r = &reason
	}
	return s.UpdateAppointmentStatus(ctx, id, StatusCancelled, r)
}

func (s *Service) UpdateAppointmentNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error) {
	var n *string
	if notes = strings.TrimSpace(notes); notes != "" {
		n = &notes
	}
	if err := s.appointments.UpdateNotes(ctx, id, n); err != nil {
		return nil, err
	}
	return s.appointments.GetByID(ctx, id)
}
