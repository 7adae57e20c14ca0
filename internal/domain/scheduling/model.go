package scheduling

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

const (
	MinSlotDuration = 5
	MaxSlotDuration = 240
)

// WeeklyRule maps to the weekly_availability table. A doctor has at most
// one rule per weekday.
type WeeklyRule struct {
	ID                  uuid.UUID `json:"id"`
	DoctorID            uuid.UUID `json:"doctor_id"`
	DayOfWeek           Weekday   `json:"day_of_week"`
	StartTime           Clock     `json:"start_time"`
	EndTime             Clock     `json:"end_time"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Misconfigured reports a rule whose window cannot hold a slot.
func (r *WeeklyRule) Misconfigured() bool {
	return r.EndTime <= r.StartTime || r.SlotDurationMinutes <= 0
}

// TimeBlock maps to the time_blocks table: a one-off unavailable interval
// [StartTime, EndTime) on Date.
type TimeBlock struct {
	ID        uuid.UUID     `json:"id"`
	DoctorID  uuid.UUID     `json:"doctor_id"`
	Date      calendar.Date `json:"date"`
	StartTime Clock         `json:"start_time"`
	EndTime   Clock         `json:"end_time"`
	Reason    string        `json:"reason"`
	CreatedBy *uuid.UUID    `json:"created_by,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no-show"
)

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusNoShow, StatusCompleted},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransitionTo reports whether an appointment in s may move to next.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment maps to the appointments table.
type Appointment struct {
	ID           uuid.UUID         `json:"id"`
	DoctorID     uuid.UUID         `json:"doctor_id"`
	PatientID    uuid.UUID         `json:"patient_id"`
	Date         calendar.Date     `json:"date"`
	Time         Clock             `json:"time"`
	Status       AppointmentStatus `json:"status"`
	Reason       *string           `json:"reason,omitempty"`
	Notes        *string           `json:"notes,omitempty"`
	CancelReason *string           `json:"cancel_reason,omitempty"`
	CreatedBy    *uuid.UUID        `json:"created_by,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`

	// Read-only, joined from doctors and patients.
	DoctorName  string `json:"doctor_name,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
}

// Active reports whether the appointment still holds its slot.
func (a *Appointment) Active() bool { return a.Status != StatusCancelled }

// AppointmentFilter narrows ListAppointments. Zero fields are ignored.
type AppointmentFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Status    AppointmentStatus
	From      calendar.Date
	To        calendar.Date
}
