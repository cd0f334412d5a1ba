package export

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/domain/analytics"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	src analytics.PatientSource
}

func NewHandler(src analytics.PatientSource) *Handler {
	return &Handler{src: src}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/exports/:role", h.Export, auth.RequireRole(auth.AllRoles...))
}

// Export streams the role's report as an attachment. Callers may only export
// their own role's report; admin may export any.
func (h *Handler) Export(c echo.Context) error {
	role, err := ParseRole(c.Param("role"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if !auth.HasRole(c.Request().Context(), string(role)) {
		return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("required role: %s", role))
	}
	format, err := ParseFormat(c.QueryParam("format"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := analytics.RangeFromQuery(c, "from", "to")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rep, err := Build(role, h.src.Patients(), r)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var buf bytes.Buffer
	if err := Write(&buf, rep, format); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	contentType := "text/csv; charset=utf-8"
	if format == FormatXLSX {
		contentType = mimeXLSX
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", Filename(role, r, format)))
	return c.Blob(http.StatusOK, contentType, buf.Bytes())
}
