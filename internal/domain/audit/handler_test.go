package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/preciseoptics/eyecare/internal/platform/auth"
)

func newTestServer(svc *Service, roles []string) *echo.Echo {
	e := echo.New()
	withRoles := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), auth.UserRolesKey, roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
	api := e.Group("/api/v1", withRoles)
	NewHandler(svc).RegisterRoutes(api)
	return e
}

func doGet(t *testing.T, e *echo.Echo, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestListEntries(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	for _, action := range []string{ActionLogin, ActionRead, ActionLogin} {
		if err := svc.Record(ctx, &Entry{Action: action, ActorName: "dr.smith"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	e := newTestServer(svc, []string{"admin"})

	rec := doGet(t, e, "/api/v1/audit-logs?action=login")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data  []Entry `json:"data"`
		Total int     `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 2 {
		t.Errorf("expected 2 login entries, got %d (total %d)", len(resp.Data), resp.Total)
	}
}

func TestListEntries_InvalidFilter(t *testing.T) {
	svc, _, _, _ := newTestService()
	e := newTestServer(svc, []string{"admin"})

	for _, path := range []string{
		"/api/v1/audit-logs?action=reboot",
		"/api/v1/audit-logs?severity=fatal",
		"/api/v1/audit-logs?user=not-a-uuid",
		"/api/v1/audit-logs?date_from=03-2026",
	} {
		if rec := doGet(t, e, path); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestListEntries_RequiresAdmin(t *testing.T) {
	svc, _, _, _ := newTestService()
	e := newTestServer(svc, []string{"doctor"})

	if rec := doGet(t, e, "/api/v1/audit-logs"); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if rec := doGet(t, e, "/api/v1/audit-logs/summary"); rec.Code != http.StatusForbidden {
		t.Errorf("summary status = %d, want 403", rec.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	svc, entries, _, _ := newTestService()
	ctx := context.Background()
	entries.now = func() time.Time { return time.Now().UTC() }

	if err := svc.Record(ctx, &Entry{Action: ActionLogin, Success: false}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := svc.Record(ctx, &Entry{Action: ActionExport, Success: true, Severity: SeverityHigh}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	e := newTestServer(svc, []string{"admin"})

	rec := doGet(t, e, "/api/v1/audit-logs/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var s Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.TotalEvents != 2 || s.FailedLogins != 1 || s.DataExports != 1 || s.HighSeverityEvents != 1 {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestListUnverifiedEndpoint(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	m := &MedicationAction{
		PatientID:     uuid.New(),
		MedicationID:  uuid.New(),
		PerformedByID: uuid.New(),
		Action:        MedActionPrescribed,
	}
	if err := svc.RecordMedicationAction(ctx, m); err != nil {
		t.Fatalf("RecordMedicationAction: %v", err)
	}
	e := newTestServer(svc, []string{"admin"})

	rec := doGet(t, e, "/api/v1/medication-audits/unverified")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data  []MedicationAction `json:"data"`
		Total int                `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("total = %d, want 1", resp.Total)
	}
}
