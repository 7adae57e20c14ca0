package identity

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the identity API. POST /auth/login must be exempt
// from the auth middleware.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/auth/login", h.Login)

	api.GET("/me", h.Me, auth.RequireSession())
	api.GET("/me/menu", h.Menu, auth.RequireSession())
	api.GET("/doctors", h.ListDoctors, auth.RequireSession())
	api.GET("/doctors/:id", h.GetDoctor, auth.RequireSession())

	staff := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	staff.GET("/patients", h.ListPatients)
	staff.GET("/doctors/:id/patients", h.ListPatientsForDoctor)

	api.GET("/patients/:id", h.GetPatient, auth.RequireSession())

	front := api.Group("", auth.RequireRole(auth.RoleReceptionist))
	front.POST("/patients", h.CreatePatient)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/users", h.CreateUser)
	admin.GET("/users/:id", h.GetUser)
	admin.POST("/doctors", h.CreateDoctor)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrAccountDisabled):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
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

func paramID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Auth --

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type meResponse struct {
	Session *auth.Session `json:"session"`
	User    *User         `json:"user,omitempty"`
}

func (h *Handler) Me(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	resp := meResponse{Session: s}
	u, err := h.svc.GetUser(c.Request().Context(), s.UserID)
	switch {
	case err == nil:
		resp.User = u
	case !errors.Is(err, ErrNotFound):
		// The development session has no backing row.
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Menu(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, auth.MenuFor(s.Role))
}

// -- Users --

type createUserRequest struct {
	Username    string     `json:"username"`
	Password    string     `json:"password"`
	Role        auth.Role  `json:"role"`
	DisplayName string     `json:"display_name"`
	Email       *string    `json:"email,omitempty"`
	DoctorID    *uuid.UUID `json:"doctor_id,omitempty"`
	PatientID   *uuid.UUID `json:"patient_id,omitempty"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u := &User{
		Username:    req.Username,
		Role:        req.Role,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		DoctorID:    req.DoctorID,
		PatientID:   req.PatientID,
	}
	if err := h.svc.CreateUser(c.Request().Context(), u, req.Password); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, u)
}

// -- Doctors --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateDoctor(c.Request().Context(), &d); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := DoctorFilter{
		Query:          c.QueryParam("q"),
		Specialization: c.QueryParam("specialization"),
		Department:     c.QueryParam("department"),
		ActiveOnly:     c.QueryParam("include_inactive") != "true",
	}
	items, total, err := h.svc.ListDoctors(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

// -- Patients --

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	if !auth.CanActForPatient(s, id) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to view this patient")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), PatientFilter{Query: c.QueryParam("q")}, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL))
}

func (h *Handler) ListPatientsForDoctor(c echo.Context) error {
	s, err := session(c)
	if err != nil {
		return err
	}
	doctorID, err := paramID(c)
	if err != nil {
		return err
	}
	if !auth.CanActForDoctor(s, doctorID) {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to view this doctor's patients")
	}
	items, err := h.svc.ListPatientsForDoctor(c.Request().Context(), doctorID)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, items)
}
