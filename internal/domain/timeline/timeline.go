// Package timeline merges one doctor-patient relationship into a single
// reverse-chronological feed with summary statistics.
package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/clinical"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/medication"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/scheduling"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

type Kind string

const (
	KindMedicalRecord Kind = "medical_record"
	KindPrescription  Kind = "prescription"
	KindAppointment   Kind = "appointment"
)

// Event is one row of the feed. Exactly one payload field is set, matching
// Kind.
type Event struct {
	Kind      Kind          `json:"kind"`
	EventDate calendar.Date `json:"event_date"`
	CreatedAt time.Time     `json:"created_at"`

	MedicalRecord *clinical.MedicalRecord  `json:"medical_record,omitempty"`
	Prescription  *medication.Prescription `json:"prescription,omitempty"`
	Appointment   *scheduling.Appointment  `json:"appointment,omitempty"`
}

// Aggregate tags every row and orders the result by event date, newest
// first, with ties going to the most recently created row. Rows are neither
// merged nor deduplicated. The result is never nil.
func Aggregate(records []*clinical.MedicalRecord, prescriptions []*medication.Prescription, appointments []*scheduling.Appointment) []Event {
	events := make([]Event, 0, len(records)+len(prescriptions)+len(appointments))
	for _, m := range records {
		events = append(events, Event{Kind: KindMedicalRecord, EventDate: m.VisitDate, CreatedAt: m.CreatedAt, MedicalRecord: m})
	}
	for _, p := range prescriptions {
		events = append(events, Event{Kind: KindPrescription, EventDate: p.Date, CreatedAt: p.CreatedAt, Prescription: p})
	}
	for _, a := range appointments {
		events = append(events, Event{Kind: KindAppointment, EventDate: a.Date, CreatedAt: a.CreatedAt, Appointment: a})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if c := events[i].EventDate.Compare(events[j].EventDate); c != 0 {
			return c > 0
		}
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events
}

type Unit string

const (
	UnitYears  Unit = "years"
	UnitMonths Unit = "months"
	UnitDays   Unit = "days"
)

// Elapsed is a span expressed in its largest whole unit.
type Elapsed struct {
	Value int  `json:"value"`
	Unit  Unit `json:"unit"`
}

func (e Elapsed) String() string {
	unit := string(e.Unit)
	if e.Value == 1 {
		unit = unit[:len(unit)-1]
	}
	return fmt.Sprintf("%d %s", e.Value, unit)
}

// ElapsedSince reports the time from 'from' to 'now' in years when at least
// one whole year has passed, else in months when at least one whole month
// has passed, else in days. A 'from' after 'now' yields zero days.
func ElapsedSince(from, now calendar.Date) Elapsed {
	if !now.After(from) {
		return Elapsed{Unit: UnitDays}
	}
	months := (now.Year-from.Year)*12 + int(now.Month) - int(from.Month)
	if now.Day < from.Day {
		months--
	}
	switch {
	case months >= 12:
		return Elapsed{Value: months / 12, Unit: UnitYears}
	case months >= 1:
		return Elapsed{Value: months, Unit: UnitMonths}
	}
	return Elapsed{Value: now.DaysSince(from), Unit: UnitDays}
}

// Stats summarises a relationship. FirstVisit considers medical records
// only; both it and SinceFirstVisit are nil when there are none.
type Stats struct {
	MedicalRecords  int            `json:"medical_records"`
	Prescriptions   int            `json:"prescriptions"`
	Appointments    int            `json:"appointments"`
	FirstVisit      *calendar.Date `json:"first_visit,omitempty"`
	SinceFirstVisit *Elapsed       `json:"since_first_visit,omitempty"`
}

func ComputeStats(records []*clinical.MedicalRecord, prescriptions []*medication.Prescription, appointments []*scheduling.Appointment, today calendar.Date) Stats {
	st := Stats{
		MedicalRecords: len(records),
		Prescriptions:  len(prescriptions),
		Appointments:   len(appointments),
	}
	for _, m := range records {
		if st.FirstVisit == nil || m.VisitDate.Before(*st.FirstVisit) {
			d := m.VisitDate
			st.FirstVisit = &d
		}
	}
	if st.FirstVisit != nil {
		e := ElapsedSince(*st.FirstVisit, today)
		st.SinceFirstVisit = &e
	}
	return st
}
