package medication

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
	readGroup.GET("/prescriptions", h.ListPrescriptions)
	readGroup.GET("/prescriptions/:id", h.GetPrescription)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleDoctor))
	writeGroup.POST("/prescriptions", h.CreatePrescription)
	writeGroup.PATCH("/prescriptions/:id/status", h.UpdatePrescriptionStatus)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func canSee(s *auth.Session, p *Prescription) bool {
	switch s.Role {
	case auth.RolePatient:
		return s.PatientID != nil && *s.PatientID == p.PatientID
	case auth.RoleDoctor:
		return auth.CanActForDoctor(s, p.DoctorID)
	}
	return s.HasRole(auth.RoleNurse)
}

func (h *Handler) CreatePrescription(c echo.Context) error {
	s := auth.SessionFromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var p Prescription
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if s.Role == auth.RoleDoctor {
		if s.DoctorID == nil {
			return echo.NewHTTPError(http.StatusForbidden, "account has no doctor profile")
		}
		p.DoctorID = *s.DoctorID
	}
	if err := h.svc.CreatePrescription(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPrescription(c echo.Context) error {
	s := auth.SessionFromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.GetPrescription(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !canSee(s, p) {
		return echo.NewHTTPError(http.StatusNotFound, ErrNotFound.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	s := auth.SessionFromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	pg := pagination.FromContext(c)

	f := Filter{Status: Status(c.QueryParam("status"))}
	for name, dst := range map[string]**uuid.UUID{"patient_id": &f.PatientID, "doctor_id": &f.DoctorID} {
		if v := c.QueryParam(name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
			}
			*dst = &id
		}
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

	items, total, err := h.svc.ListPrescriptions(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Prescription{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) UpdatePrescriptionStatus(c echo.Context) error {
	s := auth.SessionFromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	existing, err := h.svc.GetPrescription(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if !auth.CanActForDoctor(s, existing.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "only the prescribing doctor may change this prescription")
	}
	p, err := h.svc.UpdatePrescriptionStatus(ctx, id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}
