package timeline

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/identity"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleDoctor))
	g.GET("/doctors/:id/patients/:patient_id/history", h.PatientHistory)
}

// PatientHistory serves the feed to the doctor themselves or an admin.
func (h *Handler) PatientHistory(c echo.Context) error {
	s := auth.SessionFromContext(c.Request().Context())
	if s == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	doctorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor id")
	}
	patientID, err := uuid.Parse(c.Param("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	if s.Role != auth.RoleAdmin && !(s.Role == auth.RoleDoctor && auth.CanActForDoctor(s, doctorID)) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to view this history")
	}

	hist, err := h.svc.PatientHistory(c.Request().Context(), doctorID, patientID)
	if errors.Is(err, identity.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
	return c.JSON(http.StatusOK, hist)
}
