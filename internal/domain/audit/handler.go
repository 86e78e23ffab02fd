package audit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/preciseoptics/eyecare/internal/platform/auth"
	"github.com/preciseoptics/eyecare/pkg/pagination"
)

// Handler exposes the audit ledger over HTTP. All routes are read-only and
// admin-only: entries are written by the domain services and the access
// middleware, never by API clients.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin"))
	g.GET("/audit-logs", h.ListEntries)
	g.GET("/audit-logs/summary", h.Summary)
	g.GET("/patient-access-logs", h.ListPatientAccess)
	g.GET("/medication-audits", h.ListMedicationActions)
	g.GET("/medication-audits/unverified", h.ListUnverifiedPrescribed)
}

func (h *Handler) ListEntries(c echo.Context) error {
	filter, err := entryFilterFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := pagination.FromContext(c)

	entries, total, err := h.svc.Find(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list audit logs")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, p))
}

func (h *Handler) Summary(c echo.Context) error {
	filter, err := entryFilterFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	summary, err := h.svc.Summarize(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to summarize audit logs")
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListPatientAccess(c echo.Context) error {
	filter := PatientAccessFilter{
		AccessType: c.QueryParam("access_type"),
	}
	var err error
	if filter.PatientID, err = optionalUUID(c, "patient"); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if filter.AccessedByID, err = optionalUUID(c, "user"); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if filter.From, err = optionalDate(c, "date_from", false); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if filter.To, err = optionalDate(c, "date_to", true); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := pagination.FromContext(c)

	records, total, err := h.svc.FindPatientAccess(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list patient access logs")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, p))
}

func (h *Handler) ListMedicationActions(c echo.Context) error {
	filter := MedicationActionFilter{
		Action: c.QueryParam("action"),
	}
	if filter.Action != "" && !ValidMedicationActions[filter.Action] {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid action: %s", filter.Action))
	}
	var err error
	if filter.PatientID, err = optionalUUID(c, "patient"); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if filter.MedicationID, err = optionalUUID(c, "medication"); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if filter.From, err = optionalDate(c, "date_from", false); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if filter.To, err = optionalDate(c, "date_to", true); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p := pagination.FromContext(c)

	records, total, err := h.svc.FindMedicationActions(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list medication audits")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, p))
}

func (h *Handler) ListUnverifiedPrescribed(c echo.Context) error {
	p := pagination.FromContext(c)
	records, total, err := h.svc.UnverifiedPrescribed(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list unverified prescriptions")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records, total, p))
}

func entryFilterFromQuery(c echo.Context) (EntryFilter, error) {
	filter := EntryFilter{
		Action:       c.QueryParam("action"),
		Severity:     c.QueryParam("severity"),
		ResourceType: c.QueryParam("resource_type"),
	}
	if filter.Action != "" && !ValidActions[filter.Action] {
		return filter, fmt.Errorf("invalid action: %s", filter.Action)
	}
	if filter.Severity != "" && !ValidSeverities[filter.Severity] {
		return filter, fmt.Errorf("invalid severity: %s", filter.Severity)
	}
	var err error
	if filter.ActorID, err = optionalUUID(c, "user"); err != nil {
		return filter, err
	}
	if filter.From, err = optionalDate(c, "date_from", false); err != nil {
		return filter, err
	}
	if filter.To, err = optionalDate(c, "date_to", true); err != nil {
		return filter, err
	}
	return filter, nil
}

func optionalUUID(c echo.Context, param string) (*uuid.UUID, error) {
	raw := c.QueryParam(param)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %s", param, raw)
	}
	return &id, nil
}

// optionalDate parses a YYYY-MM-DD query param. End-of-range dates cover the
// whole day.
func optionalDate(c echo.Context, param string, endOfDay bool) (*time.Time, error) {
	raw := c.QueryParam(param)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected YYYY-MM-DD", param)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
