package registry

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – every staff role
	read := api.Group("", auth.RequireRole(auth.AllRoles...))
	read.GET("/patients", h.ListPatients)
	read.GET("/patients/:id", h.GetPatient)
	read.GET("/appointments", h.ListAppointments)
	read.GET("/leads", h.ListLeads)
	read.GET("/staff", h.ListStaff)
	read.GET("/sync/status", h.GetStatus)
	read.POST("/sync/refresh", h.Refresh)

	// Front office – intake and bookings
	front := api.Group("", auth.RequireRole(auth.RoleFrontOffice))
	front.POST("/patients", h.CreatePatient)
	front.PUT("/patients/:id", h.UpdatePatient)
	front.DELETE("/patients/:id", h.DeletePatient)
	front.POST("/appointments", h.BookAppointment)
	front.POST("/appointments/:id/convert", h.ConvertAppointment)

	api.PATCH("/patients/:id/assessment", h.UpdateAssessment, auth.RequireRole(auth.RoleDoctor))
	api.PUT("/patients/:id/proposal", h.UpdateProposal, auth.RequireRole(auth.RoleCounseling))
	api.POST("/staff", h.RegisterStaff, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items := h.svc.Patients()
	if status := c.QueryParam("status"); status != "" {
		filtered := make([]Patient, 0, len(items))
		for _, p := range items {
			if p.Status == status {
				filtered = append(filtered, p)
			}
		}
		items = filtered
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pg))
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, ok := h.svc.Patient(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Create(c.Request().Context(), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Update(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateAssessment(c echo.Context) error {
	var patch AssessmentPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.UpdateDoctorAssessment(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) UpdateProposal(c echo.Context) error {
	var pp PackageProposal
	if err := c.Bind(&pp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.UpdatePackageProposal(c.Request().Context(), c.Param("id"), pp)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	items := h.svc.Appointments()
	if date := c.QueryParam("date"); date != "" {
		filtered := make([]Appointment, 0, len(items))
		for _, a := range items {
			if a.Date == date {
				filtered = append(filtered, a)
			}
		}
		items = filtered
	}
	return c.JSON(http.StatusOK, pagination.Respond(items, pg))
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Book(c.Request().Context(), a)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ConvertAppointment(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Convert(c.Request().Context(), c.Param("id"), p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListLeads(c echo.Context) error {
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.Respond(Leads(h.svc.Patients()), pg))
}

func (h *Handler) ListStaff(c echo.Context) error {
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, pagination.Respond(h.svc.Staff(), pg))
}

func (h *Handler) RegisterStaff(c echo.Context) error {
	var u StaffUser
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if u.Role != "" && !auth.ValidRole(u.Role) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role: "+u.Role)
	}
	out, err := h.svc.RegisterStaff(c.Request().Context(), u)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) GetStatus(c echo.Context) error {
	snap := h.svc.Snapshot()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       h.svc.Status(),
		"patients":     len(snap.Patients),
		"appointments": len(snap.Appointments),
		"staff":        len(snap.Staff),
		"refreshedAt":  snap.RefreshedAt,
	})
}

func (h *Handler) Refresh(c echo.Context) error {
	if err := h.svc.Refresh(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, h.svc.Status())
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrMissingID), errors.Is(err, ErrInvalidPatient),
		errors.Is(err, ErrInvalidAssessment), errors.Is(err, ErrInvalidStaff):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, lock.ErrNotAcquired):
		return echo.NewHTTPError(http.StatusConflict, "record is busy, retry")
	}
	return echo.NewHTTPError(http.StatusBadGateway, err.Error())
}
