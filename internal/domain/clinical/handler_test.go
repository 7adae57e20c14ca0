package clinical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
)

func newCtx(method, target, body string, s *auth.Session) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if s != nil {
		req = req.WithContext(auth.WithSession(req.Context(), s))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandler_CreateMedicalRecord_UsesSessionDoctor(t *testing.T) {
	repo := newMockRecordRepo()
	h := NewHandler(newTestService(repo))
	doctorID := uuid.New()
	s := &auth.Session{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: &doctorID}

	body := `{"patient_id":"` + uuid.NewString() + `","doctor_id":"` + uuid.NewString() + `","visit_date":"2025-06-01","diagnosis":"hypertension","vital_signs":{"blood_pressure":"150/95","pulse_rate":80}}`
	c, rec := newCtx(http.MethodPost, "/api/v1/medical-records", body, s)
	if err := h.CreateMedicalRecord(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var got MedicalRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.DoctorID != doctorID {
		t.Errorf("expected doctor_id from session, got %s", got.DoctorID)
	}
	if got.Vitals.PulseRate == nil || *got.Vitals.PulseRate != 80 {
		t.Errorf("expected pulse 80, got %v", got.Vitals.PulseRate)
	}
}

func TestHandler_CreateMedicalRecord_Invalid(t *testing.T) {
	h := NewHandler(newTestService(newMockRecordRepo()))
	doctorID := uuid.New()
	s := &auth.Session{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: &doctorID}

	c, _ := newCtx(http.MethodPost, "/api/v1/medical-records", `{"patient_id":"`+uuid.NewString()+`","visit_date":"2025-06-01"}`, s)
	err := h.CreateMedicalRecord(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_GetMedicalRecord_Scoping(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newTestService(repo)
	h := NewHandler(svc)
	m := validRecord()
	if err := svc.CreateMedicalRecord(context.Background(), m); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		s    *auth.Session
		want int
	}{
		{"owner patient", &auth.Session{Role: auth.RolePatient, PatientID: &m.PatientID}, http.StatusOK},
		{"other patient", &auth.Session{Role: auth.RolePatient, PatientID: ptrUUID(uuid.New())}, http.StatusNotFound},
		{"authoring doctor", &auth.Session{Role: auth.RoleDoctor, DoctorID: &m.DoctorID}, http.StatusOK},
		{"other doctor", &auth.Session{Role: auth.RoleDoctor, DoctorID: ptrUUID(uuid.New())}, http.StatusNotFound},
		{"nurse", &auth.Session{Role: auth.RoleNurse}, http.StatusOK},
		{"admin", &auth.Session{Role: auth.RoleAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newCtx(http.MethodGet, "/", "", tt.s)
			c.SetParamNames("id")
			c.SetParamValues(m.ID.String())
			err := h.GetMedicalRecord(c)
			code := rec.Code
			if httpErr, ok := err.(*echo.HTTPError); ok {
				code = httpErr.Code
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestHandler_ListMedicalRecords_PatientScoped(t *testing.T) {
	repo := newMockRecordRepo()
	svc := newTestService(repo)
	h := NewHandler(svc)
	mine := validRecord()
	theirs := validRecord()
	for _, m := range []*MedicalRecord{mine, theirs} {
		if err := svc.CreateMedicalRecord(context.Background(), m); err != nil {
			t.Fatal(err)
		}
	}

	c, rec := newCtx(http.MethodGet, "/api/v1/medical-records", "", &auth.Session{Role: auth.RolePatient, PatientID: &mine.PatientID})
	if err := h.ListMedicalRecords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []MedicalRecord `json:"data"`
		Total int             `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Data[0].ID != mine.ID {
		t.Errorf("expected only the patient's own record, got %+v", resp)
	}
}

func TestHandler_ListMedicalRecords_BadDate(t *testing.T) {
	h := NewHandler(newTestService(newMockRecordRepo()))
	c, _ := newCtx(http.MethodGet, "/api/v1/medical-records?from=yesterday", "", &auth.Session{Role: auth.RoleNurse})
	err := h.ListMedicalRecords(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func ptrUUID(id uuid.UUID) *uuid.UUID { return &id }

func TestHTTPError_HidesInternalCause(t *testing.T) {
	cause := fmt.Errorf("search medical records: %w", errors.New(`ERROR: column "diagnosis" does not exist (SQLSTATE 42703)`))
	err := httpError(cause)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	if !errors.Is(he.Internal, cause) {
		t.Errorf("expected cause attached for logging")
	}

	c, rec := newCtx(http.MethodGet, "/api/v1/medical-records", "", nil)
	c.Echo().HTTPErrorHandler(err, c)
	if strings.Contains(rec.Body.String(), "SQLSTATE") || strings.Contains(rec.Body.String(), "diagnosis") {
		t.Errorf("response leaks storage error: %s", rec.Body.String())
	}

	if he, ok := httpError(ErrNotFound).(*echo.HTTPError); !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 for not found, got %v", he)
	}
}
