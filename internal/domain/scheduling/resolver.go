package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

type SlotState string

const (
	SlotFree    SlotState = "free"
	SlotBlocked SlotState = "blocked"
	SlotBooked  SlotState = "booked"
)

// SlotDetail explains why a slot is not free.
type SlotDetail struct {
	Reason            string            `json:"reason,omitempty"`
	BlockID           *uuid.UUID        `json:"block_id,omitempty"`
	AppointmentID     *uuid.UUID        `json:"appointment_id,omitempty"`
	AppointmentStatus AppointmentStatus `json:"appointment_status,omitempty"`
	PatientID         *uuid.UUID        `json:"patient_id,omitempty"`
	PatientName       string            `json:"patient_name,omitempty"`
}

// Slot is one bookable interval [Time, End) on Date.
type Slot struct {
	Date   calendar.Date `json:"date"`
	Time   Clock         `json:"time"`
	End    Clock         `json:"end"`
	State  SlotState     `json:"state"`
	Detail *SlotDetail   `json:"detail,omitempty"`
}

// DayView is the resolved schedule of one day. Blocks and appointments
// that could not be placed on any slot are kept as orphans.
type DayView struct {
	Date               calendar.Date  `json:"date"`
	DayOfWeek          Weekday        `json:"day_of_week"`
	Rule               *WeeklyRule    `json:"rule,omitempty"`
	Slots              []Slot         `json:"slots"`
	OrphanBlocks       []*TimeBlock   `json:"orphan_blocks,omitempty"`
	OrphanAppointments []*Appointment `json:"orphan_appointments,omitempty"`
}

// WeekView is seven DayViews from Monday to Sunday.
type WeekView struct {
	DoctorID  uuid.UUID     `json:"doctor_id"`
	WeekStart calendar.Date `json:"week_start"`
	WeekEnd   calendar.Date `json:"week_end"`
	Days      []DayView     `json:"days"`
}

// WeekStart returns the Monday on or before d.
func WeekStart(d calendar.Date) calendar.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// GenerateSlots lays slots of the rule's duration from start to end. A
// trailing remainder shorter than one slot is dropped and a misconfigured
// rule yields none.
func GenerateSlots(rule *WeeklyRule) []Clock {
	if rule == nil || rule.Misconfigured() {
		return nil
	}
	var out []Clock
	for t := rule.StartTime; t.Add(rule.SlotDurationMinutes) <= rule.EndTime; t = t.Add(rule.SlotDurationMinutes) {
		out = append(out, t)
	}
	return out
}

// ResolveWeek reconciles a doctor's weekly rules, time blocks and
// appointments into the week containing anchor. Rows for other doctors or
// dates outside the week are ignored. Cancelled appointments never occupy
// a slot. A slot that is both booked and blocked reports booked.
func ResolveWeek(doctorID uuid.UUID, anchor calendar.Date, rules []*WeeklyRule, blocks []*TimeBlock, appts []*Appointment) *WeekView {
	start := WeekStart(anchor)
	week := &WeekView{
		DoctorID:  doctorID,
		WeekStart: start,
		WeekEnd:   start.AddDays(6),
		Days:      make([]DayView, 0, 7),
	}

	ruleByDay := make(map[Weekday]*WeeklyRule, len(rules))
	for _, r := range rules {
		if r.DoctorID != doctorID {
			continue
		}
		if _, dup := ruleByDay[r.DayOfWeek]; !dup {
			ruleByDay[r.DayOfWeek] = r
		}
	}

	blocksByDate := make(map[calendar.Date][]*TimeBlock)
	for _, b := range blocks {
		if b.DoctorID == doctorID {
			blocksByDate[b.Date] = append(blocksByDate[b.Date], b)
		}
	}
	apptsByDate := make(map[calendar.Date][]*Appointment)
	for _, a := range appts {
		if a.DoctorID == doctorID && a.Active() {
			apptsByDate[a.Date] = append(apptsByDate[a.Date], a)
		}
	}

	for i := 0; i < 7; i++ {
		date := start.AddDays(i)
		day := WeekdayOf(date.Weekday())
		week.Days = append(week.Days, resolveDay(date, day, ruleByDay[day], blocksByDate[date], apptsByDate[date]))
	}
	return week
}

func resolveDay(date calendar.Date, day Weekday, rule *WeeklyRule, blocks []*TimeBlock, appts []*Appointment) DayView {
	view := DayView{Date: date, DayOfWeek: day, Rule: rule, Slots: []Slot{}}

	starts := GenerateSlots(rule)
	index := make(map[Clock]int, len(starts))
	for i, t := range starts {
		view.Slots = append(view.Slots, Slot{
			Date:  date,
			Time:  t,
			End:   t.Add(rule.SlotDurationMinutes),
			State: SlotFree,
		})
		index[t] = i
	}

	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].StartTime < blocks[j].StartTime })
	for _, b := range blocks {
		placed := false
		for i := range view.Slots {
			s := &view.Slots[i]
			if s.Time < b.EndTime && b.StartTime < s.End {
				placed = true
				if s.State == SlotFree {
					id := b.ID
					s.State = SlotBlocked
					s.Detail = &SlotDetail{Reason: b.Reason, BlockID: &id}
				}
			}
		}
		if !placed {
			view.OrphanBlocks = append(view.OrphanBlocks, b)
		}
	}

	sort.SliceStable(appts, func(i, j int) bool { return appts[i].CreatedAt.Before(appts[j].CreatedAt) })
	for _, a := range appts {
		i, ok := index[a.Time]
		if !ok || view.Slots[i].State == SlotBooked {
			view.OrphanAppointments = append(view.OrphanAppointments, a)
			continue
		}
		apptID, patientID := a.ID, a.PatientID
		view.Slots[i].State = SlotBooked
		view.Slots[i].Detail = &SlotDetail{
			AppointmentID:     &apptID,
			AppointmentStatus: a.Status,
			PatientID:         &patientID,
			PatientName:       a.PatientName,
		}
	}
	return view
}

// Day returns the view for date, or nil when date is outside the week.
func (w *WeekView) Day(date calendar.Date) *DayView {
	for i := range w.Days {
		if w.Days[i].Date == date {
			return &w.Days[i]
		}
	}
	return nil
}

// Lookup finds the slot starting at t on date.
func (w *WeekView) Lookup(date calendar.Date, t Clock) (*Slot, bool) {
	day := w.Day(date)
	if day == nil {
		return nil, false
	}
	for i := range day.Slots {
		if day.Slots[i].Time == t {
			return &day.Slots[i], true
		}
	}
	return nil, false
}

// Redacted returns a copy of w for callers outside the doctor's staff. Slots
// keep their state only; booked slots keep their detail when they belong to
// patientID. Orphan rows are dropped.
func (w *WeekView) Redacted(patientID *uuid.UUID) *WeekView {
	out := &WeekView{
		DoctorID:  w.DoctorID,
		WeekStart: w.WeekStart,
		WeekEnd:   w.WeekEnd,
		Days:      make([]DayView, len(w.Days)),
	}
	for i, d := range w.Days {
		day := DayView{Date: d.Date, DayOfWeek: d.DayOfWeek, Rule: d.Rule, Slots: make([]Slot, len(d.Slots))}
		for j, s := range d.Slots {
			own := s.State == SlotBooked && s.Detail != nil && s.Detail.PatientID != nil &&
				patientID != nil && *s.Detail.PatientID == *patientID
			if !own {
				s.Detail = nil
			}
			day.Slots[j] = s
		}
		out.Days[i] = day
	}
	return out
}

// FreeSlots counts free slots across the week.
func (w *WeekView) FreeSlots() int {
	n := 0
	for _, d := range w.Days {
		for _, s := range d.Slots {
			if s.State == SlotFree {
				n++
			}
		}
	}
	return n
}

// CheckBookable returns ErrSlotUnavailable unless a free slot starts at t on
// date.
func CheckBookable(w *WeekView, date calendar.Date, t Clock) error {
	slot, ok := w.Lookup(date, t)
	if !ok {
		return fmt.Errorf("%w: no slot at %s %s", ErrSlotUnavailable, date, t)
	}
	if slot.State != SlotFree {
		return fmt.Errorf("%w: %s %s is %s", ErrSlotUnavailable, date, t, slot.State)
	}
	return nil
}

// dayBounds returns the first and last date of the week containing d.
func dayBounds(d calendar.Date) (calendar.Date, calendar.Date) {
	start := WeekStart(d)
	return start, start.AddDays(6)
}

// slotStart combines a date and clock in loc.
func slotStart(d calendar.Date, t Clock, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}
