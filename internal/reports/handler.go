package reports

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// envelope is the response shape shared by all report endpoints.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports")
	g.GET("/medication-effectiveness", h.MedicationEffectiveness)
	g.GET("/patient-progress/:id", h.PatientProgress)
}

func (h *Handler) MedicationEffectiveness(c echo.Context) error {
	q, err := h.queryFromParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, envelope{
			Success: false, Data: EmptyResult(), Error: err.Error(),
		})
	}

	result, err := h.svc.Effectiveness(c.Request().Context(), q)
	var ve *ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, envelope{
			Success: false, Data: EmptyResult(), Error: ve.Error(),
		})
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("effectiveness report failed")
		return c.JSON(http.StatusInternalServerError, envelope{
			Success: false, Data: EmptyResult(), Error: "failed to build effectiveness report",
		})
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: result})
}

func (h *Handler) queryFromParams(c echo.Context) (*EffectivenessQuery, error) {
	q := h.svc.NewQuery()

	start, err := requiredDate(c, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := requiredDate(c, "end_date")
	if err != nil {
		return nil, err
	}
	q.StartDate, q.EndDate = start, end

	if raw := c.QueryParam("medications"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				q.Medications = append(q.Medications, name)
			}
		}
	}
	q.ActiveOnly = c.QueryParam("active_only") == "true"

	ints := map[string]*int{
		"lookback_days": &q.LookbackDays,
		"min_lag_days":  &q.MinLagDays,
		"max_lag_days":  &q.MaxLagDays,
		"bucket_days":   &q.BucketDays,
	}
	for param, dst := range ints {
		if raw := c.QueryParam(param); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				return nil, invalidf("invalid %s: %s", param, raw)
			}
			*dst = v
		}
	}
	for param, dst := range map[string]**int{"age_min": &q.AgeMin, "age_max": &q.AgeMax} {
		if raw := c.QueryParam(param); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				return nil, invalidf("invalid %s: %s", param, raw)
			}
			*dst = &v
		}
	}
	return &q, nil
}

func requiredDate(c echo.Context, param string) (time.Time, error) {
	raw := c.QueryParam(param)
	if raw == "" {
		return time.Time{}, invalidf("%s is required", param)
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, invalidf("invalid %s: expected YYYY-MM-DD", param)
	}
	return t, nil
}

func (h *Handler) PatientProgress(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, envelope{
			Success: false, Data: struct{}{}, Error: "invalid patient id",
		})
	}

	progress, err := h.svc.PatientProgress(c.Request().Context(), patientID, c.QueryParam("time_range"))
	var ve *ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, envelope{
			Success: false, Data: struct{}{}, Error: ve.Error(),
		})
	}
	if err != nil {
		h.logger.Error().Err(err).Str("patient_id", patientID.String()).
			Msg("patient progress report failed")
		return c.JSON(http.StatusInternalServerError, envelope{
			Success: false, Data: struct{}{}, Error: "failed to build patient progress report",
		})
	}
	return c.JSON(http.StatusOK, envelope{Success: true, Data: progress})
}
