package analytics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
)

// PatientSource supplies the snapshot the engine reads.
type PatientSource interface {
	Patients() []registry.Patient
}

type Handler struct {
	src PatientSource
}

func NewHandler(src PatientSource) *Handler {
	return &Handler{src: src}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/analytics", auth.RequireRole(auth.RoleAnalytics))
	g.GET("/summary", h.GetSummary)
	g.GET("/series", h.GetSeries)
	g.GET("/pipeline", h.GetPipeline)
}

// GetSummary returns the bundle for from/to, plus a comparison when
// compare_from or compare_to is given.
func (h *Handler) GetSummary(c echo.Context) error {
	cur, err := RangeFromQuery(c, "from", "to")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	patients := h.src.Patients()
	if c.QueryParam("compare_from") == "" && c.QueryParam("compare_to") == "" {
		return c.JSON(http.StatusOK, Summarize(patients, cur))
	}
	prev, err := RangeFromQuery(c, "compare_from", "compare_to")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, Compare(patients, cur, prev))
}

func (h *Handler) GetSeries(c echo.Context) error {
	g := Granularity(c.QueryParam("granularity"))
	switch g {
	case "":
		g = Daily
	case Daily, Monthly:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "granularity must be daily or monthly")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"granularity": g,
		"points":      Series(h.src.Patients(), g),
	})
}

// GetPipeline lists open surgery leads, most advanced first.
func (h *Handler) GetPipeline(c echo.Context) error {
	leads := registry.Leads(h.src.Patients())
	var value int64
	for _, p := range leads {
		value += weightedValue(p)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"leads":         leads,
		"count":         len(leads),
		"weightedValue": value,
	})
}

// RangeFromQuery reads an inclusive day range from two query parameters.
func RangeFromQuery(c echo.Context, fromKey, toKey string) (Range, error) {
	r := Range{From: c.QueryParam(fromKey), To: c.QueryParam(toKey)}
	return r, r.Validate()
}

// Validate checks both bounds are ISO dates and ordered.
func (r Range) Validate() error {
	for _, d := range []string{r.From, r.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", d)
		}
	}
	if r.From != "" && r.To != "" && r.From > r.To {
		return fmt.Errorf("from %s is after to %s", r.From, r.To)
	}
	return nil
}
