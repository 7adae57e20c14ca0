package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

type WeeklyRuleRepository interface {
	// Upsert inserts or replaces the doctor's rule for r.DayOfWeek.
	Upsert(ctx context.Context, r *WeeklyRule) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyRule, error)
	Delete(ctx context.Context, doctorID uuid.UUID, day Weekday) error
}

type TimeBlockRepository interface {
	Create(ctx context.Context, b *TimeBlock) error
	GetByID(ctx context.Context, id uuid.UUID) (*TimeBlock, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]*TimeBlock, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, a *Appointment) error
	UpdateNotes(ctx context.Context, id uuid.UUID, notes *string) error
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]*Appointment, error)
	ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*Appointment, error)
	Search(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error)
	// LockDoctorDay serializes bookings for one doctor and date until the
	// surrounding transaction ends.
	LockDoctorDay(ctx context.Context, doctorID uuid.UUID, date calendar.Date) error
}
