package eyetest

import (
	"net/http"

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
	g := api.Group("/eye-tests")
	g.POST("/glaucoma", h.CreateAssessment)
	g.GET("/glaucoma/patient/:id", h.ListAssessments)
	g.POST("/visual-acuity", h.CreateAcuityTest)
	g.GET("/visual-acuity/patient/:id", h.ListAcuityTests)
}

func actorFromEcho(c echo.Context) Actor {
	ctx := c.Request().Context()
	return Actor{
		ID:        auth.ActorUUID(ctx),
		SessionID: auth.SessionIDFromContext(ctx),
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func (h *Handler) CreateAssessment(c echo.Context) error {
	var g GlaucomaAssessment
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.svc.CreateAssessment(c.Request().Context(), &g, actorFromEcho(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListAssessments(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p := pagination.FromContext(c)

	assessments, total, err := h.svc.ListAssessments(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list assessments")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(assessments, total, p))
}

func (h *Handler) CreateAcuityTest(c echo.Context) error {
	var v VisualAcuityTest
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	created, err := h.svc.CreateAcuityTest(c.Request().Context(), &v, actorFromEcho(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListAcuityTests(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	p := pagination.FromContext(c)

	tests, total, err := h.svc.ListAcuityTests(c.Request().Context(), patientID, p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list visual acuity tests")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(tests, total, p))
}
