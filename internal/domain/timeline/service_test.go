package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/clinical"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/identity"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/medication"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/scheduling"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
)

type pair struct{ patient, doctor uuid.UUID }

type fakeSources struct {
	records       map[pair][]*clinical.MedicalRecord
	prescriptions map[pair][]*medication.Prescription
	appointments  map[pair][]*scheduling.Appointment
	doctors       map[uuid.UUID]*identity.Doctor
	patients      map[uuid.UUID]*identity.Patient
	rxErr         error
	calls         []string
}

func newFakeSources() *fakeSources {
	return &fakeSources{
		records:       make(map[pair][]*clinical.MedicalRecord),
		prescriptions: make(map[pair][]*medication.Prescription),
		appointments:  make(map[pair][]*scheduling.Appointment),
		doctors:       make(map[uuid.UUID]*identity.Doctor),
		patients:      make(map[uuid.UUID]*identity.Patient),
	}
}

type recordSource struct{ *fakeSources }

func (f recordSource) ListForPatientDoctor(_ context.Context, p, d uuid.UUID) ([]*clinical.MedicalRecord, error) {
	f.calls = append(f.calls, "records")
	return f.records[pair{p, d}], nil
}

type rxSource struct{ *fakeSources }

func (f rxSource) ListForPatientDoctor(_ context.Context, p, d uuid.UUID) ([]*medication.Prescription, error) {
	f.calls = append(f.calls, "prescriptions")
	if f.rxErr != nil {
		return nil, f.rxErr
	}
	return f.prescriptions[pair{p, d}], nil
}

func (f *fakeSources) ListAppointmentsForPatientDoctor(_ context.Context, p, d uuid.UUID) ([]*scheduling.Appointment, error) {
	f.calls = append(f.calls, "appointments")
	return f.appointments[pair{p, d}], nil
}

func (f *fakeSources) GetDoctor(_ context.Context, id uuid.UUID) (*identity.Doctor, error) {
	if d, ok := f.doctors[id]; ok {
		return d, nil
	}
	return nil, identity.ErrNotFound
}

func (f *fakeSources) GetPatient(_ context.Context, id uuid.UUID) (*identity.Patient, error) {
	if p, ok := f.patients[id]; ok {
		return p, nil
	}
	return nil, identity.ErrNotFound
}

type fixture struct {
	src       *fakeSources
	svc       *Service
	doctorID  uuid.UUID
	patientID uuid.UUID
}

func newFixture() *fixture {
	src := newFakeSources()
	f := &fixture{src: src, doctorID: uuid.New(), patientID: uuid.New()}
	src.doctors[f.doctorID] = &identity.Doctor{ID: f.doctorID, FirstName: "Grace", LastName: "Hopper"}
	src.patients[f.patientID] = &identity.Patient{ID: f.patientID, FirstName: "Ada", LastName: "Lovelace"}
	now := func() time.Time { return time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC) }
	f.svc = NewService(recordSource{src}, rxSource{src}, src, src, WithClock(now, time.UTC))
	return f
}

func TestPatientHistory(t *testing.T) {
	f := newFixture()
	key := pair{f.patientID, f.doctorID}
	f.src.records[key] = []*clinical.MedicalRecord{record("2024-01-10", base), record("2024-02-01", base)}
	f.src.prescriptions[key] = []*medication.Prescription{prescription("2024-01-15", base)}
	f.src.appointments[key] = []*scheduling.Appointment{appointment("2024-01-10", base.Add(-time.Hour))}
	// Another doctor's rows stay out of the feed.
	f.src.records[pair{f.patientID, uuid.New()}] = []*clinical.MedicalRecord{record("2024-03-01", base)}

	h, err := f.svc.PatientHistory(context.Background(), f.doctorID, f.patientID)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", h.Doctor.FullName())
	assert.Equal(t, "Ada Lovelace", h.Patient.FullName())
	assert.Len(t, h.Events, 4)
	assert.Equal(t, "2024-02-01", h.Events[0].EventDate.String())
	assert.Equal(t, 2, h.Stats.MedicalRecords)
	assert.Equal(t, "2024-01-10", h.Stats.FirstVisit.String())
	assert.Equal(t, Elapsed{3, UnitMonths}, *h.Stats.SinceFirstVisit)
	assert.Equal(t, []string{"records", "prescriptions", "appointments"}, f.src.calls)
}

func TestPatientHistory_EmptyRelationship(t *testing.T) {
	f := newFixture()
	h, err := f.svc.PatientHistory(context.Background(), f.doctorID, f.patientID)
	require.NoError(t, err)
	assert.NotNil(t, h.Events)
	assert.Empty(t, h.Events)
	assert.Zero(t, h.Stats.MedicalRecords)
	assert.Nil(t, h.Stats.FirstVisit)
}

func TestPatientHistory_Errors(t *testing.T) {
	f := newFixture()
	_, err := f.svc.PatientHistory(context.Background(), uuid.New(), f.patientID)
	assert.ErrorIs(t, err, identity.ErrNotFound)

	_, err = f.svc.PatientHistory(context.Background(), f.doctorID, uuid.New())
	assert.ErrorIs(t, err, identity.ErrNotFound)

	boom := errors.New("connection reset")
	f.src.rxErr = boom
	_, err = f.svc.PatientHistory(context.Background(), f.doctorID, f.patientID)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "list prescriptions")
}

func historyCtx(s *auth.Session, doctorID, patientID string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if s != nil {
		req = req.WithContext(auth.WithSession(req.Context(), s))
	}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("id", "patient_id")
	c.SetParamValues(doctorID, patientID)
	return c, rec
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected *echo.HTTPError, got %v", err)
	return he.Code
}

func TestHandler_PatientHistory(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	self := &auth.Session{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: &f.doctorID}

	c, rec := historyCtx(self, f.doctorID.String(), f.patientID.String())
	require.NoError(t, h.PatientHistory(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []Event `json:"events"`
		Stats  Stats   `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body.Events)
	assert.Contains(t, rec.Body.String(), `"events":[]`)

	c, rec = historyCtx(&auth.Session{UserID: uuid.New(), Role: auth.RoleAdmin}, f.doctorID.String(), f.patientID.String())
	require.NoError(t, h.PatientHistory(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_PatientHistory_Denied(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	other := uuid.New()

	cases := []struct {
		name string
		s    *auth.Session
		want int
	}{
		{"no session", nil, http.StatusUnauthorized},
		{"other doctor", &auth.Session{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: &other}, http.StatusForbidden},
		{"nurse", &auth.Session{UserID: uuid.New(), Role: auth.RoleNurse}, http.StatusForbidden},
		{"receptionist", &auth.Session{UserID: uuid.New(), Role: auth.RoleReceptionist}, http.StatusForbidden},
		{"patient", &auth.Session{UserID: uuid.New(), Role: auth.RolePatient, PatientID: &f.patientID}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := historyCtx(tc.s, f.doctorID.String(), f.patientID.String())
			assert.Equal(t, tc.want, statusOf(t, h.PatientHistory(c)))
		})
	}
}

func TestHandler_PatientHistory_BadInput(t *testing.T) {
	f := newFixture()
	h := NewHandler(f.svc)
	self := &auth.Session{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: &f.doctorID}

	c, _ := historyCtx(self, f.doctorID.String(), "nope")
	assert.Equal(t, http.StatusBadRequest, statusOf(t, h.PatientHistory(c)))

	c, _ = historyCtx(self, f.doctorID.String(), uuid.NewString())
	assert.Equal(t, http.StatusNotFound, statusOf(t, h.PatientHistory(c)))
}

func TestHandler_PatientHistory_SourceFailureHidesCause(t *testing.T) {
	f := newFixture()
	f.src.rxErr = errors.New("dial tcp 10.0.0.5:5432: connection refused")
	h := NewHandler(f.svc)
	self := &auth.Session{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: &f.doctorID}

	c, rec := historyCtx(self, f.doctorID.String(), f.patientID.String())
	err := h.PatientHistory(c)
	require.Equal(t, http.StatusInternalServerError, statusOf(t, err))
	assert.Contains(t, err.Error(), "connection refused", "cause kept for the request log")

	c.Echo().HTTPErrorHandler(err, c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	assert.NotContains(t, rec.Body.String(), "list prescriptions")
	assert.Contains(t, rec.Body.String(), "internal server error")
}
