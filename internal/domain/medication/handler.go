package medication

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/preciseoptics/eyecare/internal/platform/auth"
	"github.com/preciseoptics/eyecare/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	meds := api.Group("/medications")
	meds.GET("", h.ListMedications)
	meds.POST("", h.CreateMedication)
	meds.GET("/:id", h.GetMedication)
	meds.PUT("/:id/stock", h.UpdateStock)

	rx := api.Group("/prescriptions")
	rx.GET("", h.ListPrescriptions)
	rx.POST("", h.Prescribe)
	rx.POST("/:id/discontinue", h.Discontinue)
}

func actorFromEcho(c echo.Context) Actor {
	ctx := c.Request().Context()
	return Actor{
		ID:        auth.ActorUUID(ctx),
		Name:      auth.UserNameFromContext(ctx),
		SessionID: auth.SessionIDFromContext(ctx),
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func (h *Handler) CreateMedication(c echo.Context) error {
	var m Medication
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.svc.CreateMedication(c.Request().Context(), &m)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetMedication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medication id")
	}
	m, err := h.svc.GetMedication(c.Request().Context(), id)
	if errors.Is(err, ErrMedicationNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "medication not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get medication")
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) ListMedications(c echo.Context) error {
	filter := MedicationFilter{
		Search:           c.QueryParam("search"),
		MedType:          c.QueryParam("type"),
		TherapeuticClass: c.QueryParam("class"),
		ActiveOnly:       c.QueryParam("active") == "true",
	}
	p := pagination.FromContext(c)

	meds, total, err := h.svc.ListMedications(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list medications")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(meds, total, p))
}

func (h *Handler) UpdateStock(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medication id")
	}
	var req struct {
		StockQuantity int `json:"stock_quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.svc.UpdateStock(c.Request().Context(), id, req.StockQuantity, actorFromEcho(c))
	if errors.Is(err, ErrMedicationNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "medication not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

type prescribeRequest struct {
	PatientID    uuid.UUID    `json:"patient_id"`
	MedicationID uuid.UUID    `json:"medication_id"`
	Dosage       string       `json:"dosage"`
	Frequency    string       `json:"frequency"`
	DurationDays int          `json:"duration_days"`
	Notes        string       `json:"notes"`
	PrescribedAt string       `json:"prescribed_at"`
	Indication   string       `json:"indication"`
	SafetyChecks SafetyChecks `json:"safety_checks"`
}

func (h *Handler) Prescribe(c echo.Context) error {
	var req prescribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	p := &Prescription{
		PatientID:    req.PatientID,
		MedicationID: req.MedicationID,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		DurationDays: req.DurationDays,
		Notes:        req.Notes,
	}
	if req.PrescribedAt != "" {
		at, err := time.Parse("2006-01-02", req.PrescribedAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid prescribed_at: expected YYYY-MM-DD")
		}
		p.PrescribedAt = at
	}

	created, err := h.svc.Prescribe(c.Request().Context(), p, req.SafetyChecks, req.Indication, actorFromEcho(c))
	if errors.Is(err, ErrMedicationNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "medication not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) Discontinue(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	err = h.svc.Discontinue(c.Request().Context(), id, req.Reason, actorFromEcho(c))
	if errors.Is(err, ErrPrescriptionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPrescriptions(c echo.Context) error {
	filter := PrescriptionFilter{
		Status: c.QueryParam("status"),
	}
	if raw := c.QueryParam("patient"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient filter")
		}
		filter.PatientID = &id
	}
	if raw := c.QueryParam("medication"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid medication filter")
		}
		filter.MedicationID = &id
	}
	p := pagination.FromContext(c)

	prescriptions, total, err := h.svc.ListPrescriptions(c.Request().Context(), filter, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(prescriptions, total, p))
}
