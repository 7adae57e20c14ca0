package medication

import (
	"context"
	"encoding/json"
	"errors"
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

func doctor(id uuid.UUID) *auth.Session {
	return &auth.Session{UserID: uuid.New(), Role: auth.RoleDoctor, DoctorID: &id}
}

func TestHandler_CreatePrescription(t *testing.T) {
	h := NewHandler(newTestService(newMockRxRepo()))
	doctorID := uuid.New()

	body := `{
		"patient_id": "` + uuid.NewString() + `",
		"notes": "take with food",
		"items": [
			{"medication_name": "Ibuprofen", "dosage": "400mg", "frequency": "2x daily", "quantity": 14, "cost": "8.75"},
			{"medication_name": "Omeprazole", "dosage": "20mg", "frequency": "daily", "quantity": 7, "cost": 4.5}
		]
	}`
	c, rec := newCtx(http.MethodPost, "/api/v1/prescriptions", body, doctor(doctorID))
	if err := h.CreatePrescription(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var got Prescription
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.DoctorID != doctorID {
		t.Errorf("expected doctor from session")
	}
	if got.TotalCost.StringFixed(2) != "13.25" {
		t.Errorf("expected total 13.25, got %s", got.TotalCost)
	}
	if !strings.HasPrefix(got.Number, "RX-20250602-") {
		t.Errorf("unexpected number %q", got.Number)
	}
}

func TestHandler_CreatePrescription_NoItems(t *testing.T) {
	h := NewHandler(newTestService(newMockRxRepo()))
	c, _ := newCtx(http.MethodPost, "/api/v1/prescriptions", `{"patient_id":"`+uuid.NewString()+`","items":[]}`, doctor(uuid.New()))
	err := h.CreatePrescription(c)
	if httpErr, ok := err.(*echo.HTTPError); !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_UpdatePrescriptionStatus(t *testing.T) {
	repo := newMockRxRepo()
	svc := newTestService(repo)
	h := NewHandler(svc)
	p := validPrescription()
	if err := svc.CreatePrescription(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	c, _ := newCtx(http.MethodPatch, "/", `{"status":"cancelled"}`, doctor(uuid.New()))
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if httpErr, ok := h.UpdatePrescriptionStatus(c).(*echo.HTTPError); !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another doctor")
	}

	c, rec := newCtx(http.MethodPatch, "/", `{"status":"cancelled"}`, doctor(p.DoctorID))
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.UpdatePrescriptionStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, _ = newCtx(http.MethodPatch, "/", `{"status":"completed"}`, doctor(p.DoctorID))
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if httpErr, ok := h.UpdatePrescriptionStatus(c).(*echo.HTTPError); !ok || httpErr.Code != http.StatusConflict {
		t.Fatalf("expected 409 once cancelled")
	}
}

func TestHandler_GetPrescription_PatientScope(t *testing.T) {
	repo := newMockRxRepo()
	svc := newTestService(repo)
	h := NewHandler(svc)
	p := validPrescription()
	if err := svc.CreatePrescription(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	stranger := uuid.New()
	c, _ := newCtx(http.MethodGet, "/", "", &auth.Session{Role: auth.RolePatient, PatientID: &stranger})
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if httpErr, ok := h.GetPrescription(c).(*echo.HTTPError); !ok || httpErr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another patient")
	}

	c, rec := newCtx(http.MethodGet, "/", "", &auth.Session{Role: auth.RolePatient, PatientID: &p.PatientID})
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.GetPrescription(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ListPrescriptions_DoctorScoped(t *testing.T) {
	repo := newMockRxRepo()
	svc := newTestService(repo)
	h := NewHandler(svc)
	mine, theirs := validPrescription(), validPrescription()
	for _, p := range []*Prescription{mine, theirs} {
		if err := svc.CreatePrescription(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}

	c, rec := newCtx(http.MethodGet, "/api/v1/prescriptions?doctor_id="+theirs.DoctorID.String(), "", doctor(mine.DoctorID))
	if err := h.ListPrescriptions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []Prescription `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Data[0].ID != mine.ID {
		t.Errorf("doctor must only see own prescriptions, got %+v", resp)
	}
}

func TestHandler_CreatePrescription_StoreFailureHidesCause(t *testing.T) {
	repo := newMockRxRepo()
	repo.addErr = errors.New(`pq: relation "prescription_items" violates constraint at 10.0.0.5:5432`)
	h := NewHandler(newTestService(repo))

	body := `{
		"patient_id": "` + uuid.NewString() + `",
		"items": [{"medication_name": "Ibuprofen", "dosage": "400mg", "frequency": "2x daily", "quantity": 14, "cost": "8.75"}]
	}`
	c, rec := newCtx(http.MethodPost, "/api/v1/prescriptions", body, doctor(uuid.New()))
	err := h.CreatePrescription(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %v", err)
	}
	if !strings.Contains(err.Error(), "10.0.0.5") {
		t.Errorf("expected cause kept for the request log, got %q", err.Error())
	}

	c.Echo().HTTPErrorHandler(err, c)
	if strings.Contains(rec.Body.String(), "10.0.0.5") || strings.Contains(rec.Body.String(), "prescription_items") {
		t.Errorf("response leaks storage error: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("expected generic message, got %s", rec.Body.String())
	}
}
