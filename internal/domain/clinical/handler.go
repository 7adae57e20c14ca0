package clinical

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RolePatient))
	readGroup.GET("/medical-records", h.ListMedicalRecords)
	readGroup.GET("/medical-records/:id", h.GetMedicalRecord)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	writeGroup.POST("/medical-records", h.CreateMedicalRecord)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func canSee(s *auth.Session, m *MedicalRecord) bool {
	switch s.Role {
	case auth.RolePatient:
		return s.PatientID != nil && *s.PatientID == m.PatientID
	case auth.RoleDoctor:
		return auth.CanActForDoctor(s, m.DoctorID)
	}
	return s.HasRole(auth.RoleNurse)
}

func (h *Handler) CreateMedicalRecord(c echo.Context) error {
	s := auth.SessionFromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var m MedicalRecord
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if s.Role == auth.RoleDoctor {
		if s.DoctorID == nil {
			return echo.NewHTTPError(http.StatusForbidden, "account has no doctor profile")
		}
		m.DoctorID = *s.DoctorID
	}
	if err := h.svc.CreateMedicalRecord(c.Request().Context(), &m); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) GetMedicalRecord(c echo.Context) error {
	s := auth.SessionFromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	m, err := h.svc.GetMedicalRecord(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !canSee(s, m) {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedicalRecords(c echo.Context) error {
	s := auth.SessionFromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)

	f := RecordFilter{Query: c.QueryParam("q")}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		f.DoctorID = &id
	}
	for name, dst := range map[string]*calendar.Date{"from": &f.From, "to": &f.To} {
		if v := c.QueryParam(name); v != "" {
			d, err := calendar.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
			}
			*dst = d
		}
	}

	switch s.Role {
	case auth.RolePatient:
		if s.PatientID == nil {
			return echo.NewHTTPError(http.StatusForbidden, "account has no patient profile")
		}
		f.PatientID = s.PatientID
	case auth.RoleDoctor:
		if s.DoctorID == nil {
			return echo.NewHTTPError(http.StatusForbidden, "account has no doctor profile")
		}
		f.DoctorID = s.DoctorID
	}

	items, total, err := h.svc.ListMedicalRecords(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*MedicalRecord{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}
