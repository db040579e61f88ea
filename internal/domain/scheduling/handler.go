package scheduling

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/frontdesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the appointment routes. createMW wraps only the
// booking endpoint.
func (h *Handler) RegisterRoutes(api *echo.Group, createMW ...echo.MiddlewareFunc) {
	desk := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleStaff))
	desk.POST("/appointments", h.Create, createMW...)
	desk.GET("/appointments", h.List)
	desk.PATCH("/appointments/:id/status", h.UpdateStatus)
	desk.PUT("/appointments/:id", h.Update)
	desk.GET("/doctors/:id/slots", h.Slots)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.DELETE("/appointments/:id", h.Delete)
}

type appointmentRequest struct {
	DoctorID  string     `json:"doctor_id"`
	PatientID string     `json:"patient_id"`
	DateTime  *time.Time `json:"date_time"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	Notes     *string    `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func parseOptionalID(raw, field string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &ValidationError{Message: "invalid " + field}
	}
	return id, nil
}

// booking converts the body into a BookingInput. A date_time wins over the
// date + time pair, which is read in the clinic's time zone.
func (r appointmentRequest) booking(loc *time.Location) (BookingInput, error) {
	doctorID, err := parseOptionalID(r.DoctorID, "doctor_id")
	if err != nil {
		return BookingInput{}, err
	}
	patientID, err := parseOptionalID(r.PatientID, "patient_id")
	if err != nil {
		return BookingInput{}, err
	}
	if r.DateTime != nil {
		return BookingInput{DoctorID: doctorID, PatientID: patientID, DateTime: *r.DateTime, Notes: r.Notes}, nil
	}
	if r.Date == "" || r.Time == "" {
		return BookingInput{DoctorID: doctorID, PatientID: patientID, Notes: r.Notes}, nil
	}
	return Candidate{
		DoctorID:  doctorID,
		PatientID: patientID,
		Date:      r.Date,
		Time:      r.Time,
		Notes:     r.Notes,
	}.Booking(loc)
}

func principal(c echo.Context) auth.Principal {
	p, _ := auth.PrincipalFromContext(c.Request().Context())
	return p
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// httpError maps lifecycle errors onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrIllegalTransition):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func (h *Handler) Create(c echo.Context) error {
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in, err := req.booking(h.svc.Location())
	if err != nil {
		return httpError(err)
	}
	a, err := h.svc.Create(c.Request().Context(), principal(c), in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.ListAll(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Status) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "status is required")
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), principal(c), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req appointmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	in, err := req.booking(h.svc.Location())
	if err != nil {
		return httpError(err)
	}
	a, err := h.svc.Update(c.Request().Context(), principal(c), id, in)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Remove(c.Request().Context(), principal(c), id); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Appointment deleted successfully"})
}

func (h *Handler) Slots(c echo.Context) error {
	doctorID, err := pathID(c)
	if err != nil {
		return err
	}
	date, err := time.ParseInLocation("2006-01-02", c.QueryParam("date"), h.svc.Location())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date query parameter must be formatted as YYYY-MM-DD")
	}
	patientID, err := parseOptionalID(c.QueryParam("patient_id"), "patient_id")
	if err != nil {
		return httpError(err)
	}
	slots, err := h.svc.AvailableSlots(c.Request().Context(), doctorID, date, patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"doctor_id": doctorID,
		"date":      date.Format("2006-01-02"),
		"slots":     slots,
	})
}
