package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/db"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

func passthroughTx() db.TxRunner {
	return func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }
}

func inRange(d, from, to calendar.Date) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

// -- Mock Repositories --

type mockRuleRepo struct {
	store map[uuid.UUID]*WeeklyRule
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{store: make(map[uuid.UUID]*WeeklyRule)}
}

func (m *mockRuleRepo) Upsert(_ context.Context, r *WeeklyRule) error {
	for id, existing := range m.store {
		if existing.DoctorID == r.DoctorID && existing.DayOfWeek == r.DayOfWeek {
			delete(m.store, id)
			r.ID = id
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.store[r.ID] = r
	return nil
}

func (m *mockRuleRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*WeeklyRule, error) {
	var out []*WeeklyRule
	for _, r := range m.store {
		if r.DoctorID == doctorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) Delete(_ context.Context, doctorID uuid.UUID, day Weekday) error {
	for id, r := range m.store {
		if r.DoctorID == doctorID && r.DayOfWeek == day {
			delete(m.store, id)
			return nil
		}
	}
	return ErrNotFound
}

type mockBlockRepo struct {
	store map[uuid.UUID]*TimeBlock
}

func newMockBlockRepo() *mockBlockRepo {
	return &mockBlockRepo{store: make(map[uuid.UUID]*TimeBlock)}
}

func (m *mockBlockRepo) Create(_ context.Context, b *TimeBlock) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	m.store[b.ID] = b
	return nil
}

func (m *mockBlockRepo) GetByID(_ context.Context, id uuid.UUID) (*TimeBlock, error) {
	b, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *mockBlockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.store[id]; !ok {
		return ErrNotFound
	}
	delete(m.store, id)
	return nil
}

func (m *mockBlockRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]*TimeBlock, error) {
	var out []*TimeBlock
	for _, b := range m.store {
		if b.DoctorID == doctorID && inRange(b.Date, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

type mockApptRepo struct {
	mu       sync.Mutex
	store    map[uuid.UUID]*Appointment
	locked   []calendar.Date
	createFn func(a *Appointment) error
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{store: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	if m.createFn != nil {
		if err := m.createFn(a); err != nil {
			return err
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.store[a.ID] = a
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) UpdateStatus(_ context.Context, a *Appointment) error {
	existing, ok := m.store[a.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Status = a.Status
	existing.CancelReason = a.CancelReason
	return nil
}

func (m *mockApptRepo) UpdateNotes(_ context.Context, id uuid.UUID, notes *string) error {
	existing, ok := m.store[id]
	if !ok {
		return ErrNotFound
	}
	existing.Notes = notes
	return nil
}

func (m *mockApptRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.store {
		if a.DoctorID == doctorID && inRange(a.Date, from, to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockApptRepo) ListForPatientDoctor(_ context.Context, patientID, doctorID uuid.UUID) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.store {
		if a.PatientID == patientID && a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Date.Before(out[i].Date) })
	return out, nil
}

func (m *mockApptRepo) Search(_ context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.store {
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if !inRange(a.Date, f.From, f.To) {
			continue
		}
		out = append(out, a)
	}
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockApptRepo) LockDoctorDay(_ context.Context, _ uuid.UUID, date calendar.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = append(m.locked, date)
	return nil
}

type recordingObserver struct {
	results []string
}

func (o *recordingObserver) ObserveBooking(result string) {
	o.results = append(o.results, result)
}
