package scheduling

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
	// Any signed-in user: patients need availability to book.
	api.GET("/doctors/:id/availability", h.GetAvailability)
	api.GET("/doctors/:id/weekly-rules", h.ListWeeklyRules)
	api.GET("/doctors/:id/time-blocks", h.ListTimeBlocks)
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.POST("/appointments", h.BookAppointment)
	api.POST("/appointments/:id/cancel", h.CancelAppointment)

	// Staff only; per-doctor access is checked in the handlers.
	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	staff.PUT("/doctors/:id/weekly-rules/:day", h.UpsertWeeklyRule)
	staff.DELETE("/doctors/:id/weekly-rules/:day", h.DeleteWeeklyRule)
	staff.POST("/doctors/:id/time-blocks", h.CreateTimeBlock)
	staff.DELETE("/time-blocks/:id", h.DeleteTimeBlock)
	staff.PATCH("/appointments/:id/status", h.UpdateAppointmentStatus)
	staff.PATCH("/appointments/:id/notes", h.UpdateAppointmentNotes)
}

// httpError maps service errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSlotUnavailable), errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func session(c echo.Context) (*auth.Session, error) {
	s := auth.SessionFromContext(c.Request().Context())
	if s == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return s, nil
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// doctorAccess resolves :id and checks the caller may manage that doctor.
func doctorAccess(c echo.Context) (uuid.UUID, error) {
	s, err := session(c)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return uuid.Nil, err
	}
	if !auth.CanActForDoctor(s, id) {
		return uuid.Nil, echo.NewHTTPError(http.StatusForbidden, "not allowed to manage this doctor's schedule")
	}
	return id, nil
}

func canSeeAppointment(s *auth.Session, a *Appointment) bool {
	if s.Role == auth.RolePatient {
		return s.PatientID != nil && *s.PatientID == a.PatientID
	}
	return auth.CanActForDoctor(s, a.DoctorID)
}

func queryDate(c echo.Context, name string) (calendar.Date, error) {
	v := c.QueryParam(name)
	if v == "" {
		return calendar.Date{}, nil
	}
	d, err := calendar.Parse(v)
	if err != nil {
		return calendar.Date{}, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+": "+err.Error())
	}
	return d, nil
}

// -- Availability --

// GetAvailability returns the resolved week. Callers who cannot act for the
// doctor see slot states and their own bookings only.
func (h *Handler) GetAvailability(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	doctorID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	week, err := queryDate(c, "week")
	if err != nil {
		return err
	}
	view, err := h.svc.WeekAvailability(c.Request().Context(), doctorID, week)
	if err != nil {
		return httpError(err)
	}
	if !auth.CanActForDoctor(s, doctorID) {
		var own *uuid.UUID
		if s.Role == auth.RolePatient {
			own = s.PatientID
		}
		view = view.Redacted(own)
	}
	return c.JSON(http.StatusOK, view)
}

// -- Weekly rules --

func (h *Handler) ListWeeklyRules(c echo.Context) error {
	doctorID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	rules, err := h.svc.ListWeeklyRules(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	if rules == nil {
		rules = []*WeeklyRule{}
	}
	return c.JSON(http.StatusOK, rules)
}

type weeklyRuleRequest struct {
	StartTime           Clock `json:"start_time"`
	EndTime             Clock `json:"end_time"`
	SlotDurationMinutes int   `json:"slot_duration_minutes"`
}

func (h *Handler) UpsertWeeklyRule(c echo.Context) error {
	doctorID, err := doctorAccess(c)
	if err != nil {
		return err
	}
	var req weeklyRuleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rule := &WeeklyRule{
		DoctorID:            doctorID,
		DayOfWeek:           Weekday(c.Param("day")),
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		SlotDurationMinutes: req.SlotDurationMinutes,
	}
	if err := h.svc.UpsertWeeklyRule(c.Request().Context(), rule); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rule)
}

func (h *Handler) DeleteWeeklyRule(c echo.Context) error {
	doctorID, err := doctorAccess(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWeeklyRule(c.Request().Context(), doctorID, Weekday(c.Param("day"))); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Time blocks --

func (h *Handler) ListTimeBlocks(c echo.Context) error {
	doctorID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	from, err := queryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return err
	}
	blocks, err := h.svc.ListTimeBlocks(c.Request().Context(), doctorID, from, to)
	if err != nil {
		return httpError(err)
	}
	if blocks == nil {
		blocks = []*TimeBlock{}
	}
	return c.JSON(http.StatusOK, blocks)
}

type timeBlockRequest struct {
	Date      calendar.Date `json:"date"`
	StartTime Clock         `json:"start_time"`
	EndTime   Clock         `json:"end_time"`
	Reason    string        `json:"reason"`
}

func (h *Handler) CreateTimeBlock(c echo.Context) error {
	doctorID, err := doctorAccess(c)
	if err != nil {
		return err
	}
	var req timeBlockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, _ := session(c)
	createdBy := s.UserID
	b := &TimeBlock{
		DoctorID:  doctorID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		CreatedBy: &createdBy,
	}
	if err := h.svc.CreateTimeBlock(c.Request().Context(), b); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) DeleteTimeBlock(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	b, err := h.svc.GetTimeBlock(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if !auth.CanActForDoctor(s, b.DoctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to manage this doctor's schedule")
	}
	if err := h.svc.DeleteTimeBlock(ctx, id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Appointments --

type bookingRequest struct {
	DoctorID  uuid.UUID     `json:"doctor_id"`
	PatientID uuid.UUID     `json:"patient_id"`
	Date      calendar.Date `json:"date"`
	Time      Clock         `json:"time"`
	Reason    *string       `json:"reason,omitempty"`
	Notes     *string       `json:"notes,omitempty"`
}

func (h *Handler) BookAppointment(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	switch s.Role {
	case auth.RolePatient:
		if s.PatientID == nil {
			return echo.NewHTTPError(http.StatusForbidden, "account has no patient profile")
		}
		if req.PatientID != uuid.Nil && req.PatientID != *s.PatientID {
			return echo.NewHTTPError(http.StatusForbidden, "patients may only book for themselves")
		}
		req.PatientID = *s.PatientID
	default:
		if !auth.CanActForDoctor(s, req.DoctorID) {
			return echo.NewHTTPError(http.StatusForbidden, "not allowed to book for this doctor")
		}
	}

	createdBy := s.UserID
	a := &Appointment{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Date:      req.Date,
		Time:      req.Time,
		Reason:    req.Reason,
		Notes:     req.Notes,
		CreatedBy: &createdBy,
	}
	if err := h.svc.BookAppointment(c.Request().Context(), a); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if !canSeeAppointment(s, a) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)

	var f AppointmentFilter
	for _, p := range []struct {
		name string
		dst  **uuid.UUID
	}{{"doctor_id", &f.DoctorID}, {"patient_id", &f.PatientID}} {
		if v := c.QueryParam(p.name); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid "+p.name)
			}
			*p.dst = &id
		}
	}
	f.Status = AppointmentStatus(c.QueryParam("status"))
	if f.From, err = queryDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return err
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

	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

type statusRequest struct {
	Status AppointmentStatus `json:"status"`
	Reason *string           `json:"reason,omitempty"`
}

func (h *Handler) UpdateAppointmentStatus(c echo.Context) error {
	a, err := h.loadForStaff(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateAppointmentStatus(c.Request().Context(), a.ID, req.Status, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	a, err := h.svc.GetAppointment(ctx, id)
	if err != nil {
		return httpError(err)
	}
	if !canSeeAppointment(s, a) {
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	}
	updated, err := h.svc.CancelAppointment(ctx, id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) UpdateAppointmentNotes(c echo.Context) error {
	a, err := h.loadForStaff(c)
	if err != nil {
		return err
	}
	var req notesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	updated, err := h.svc.UpdateAppointmentNotes(c.Request().Context(), a.ID, req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// loadForStaff fetches :id and checks the caller may act for its doctor.
func (h *Handler) loadForStaff(c echo.Context) (*Appointment, error) {
	s, err := session(c)
	if err != nil {
		return nil, err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id)
	if err != nil {
		return nil, httpError(err)
	}
	if !auth.CanActForDoctor(s, a.DoctorID) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not allowed to manage this appointment")
	}
	return a, nil
}
