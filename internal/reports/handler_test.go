package reports

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/preciseoptics/eyecare/internal/domain/eyetest"
)

func newReportServer(repo *mockRepo) *echo.Echo {
	e := echo.New()
	svc := newReportService(repo)
	NewHandler(svc, zerolog.Nop()).RegisterRoutes(e.Group("/api/v1"))
	return e
}

func getReport(t *testing.T, e *echo.Echo, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return rec, env
}

func TestEffectivenessEndpoint(t *testing.T) {
	patient := uuid.New()
	rxDate := day(2026, 1, 15)
	repo := &mockRepo{
		prescriptions: []PrescriptionRecord{
			{ID: uuid.New(), PatientID: patient, MedicationID: uuid.New(),
				MedicationName: "Timolol", PrescribedAt: rxDate},
		},
		assessments: []*eyetest.GlaucomaAssessment{
			assessment(patient, rxDate.AddDate(0, 0, -7), f(24), f(24)),
			assessment(patient, rxDate.AddDate(0, 0, 45), f(18), f(18)),
		},
	}
	e := newReportServer(repo)

	rec, env := getReport(t, e,
		"/api/v1/reports/medication-effectiveness?start_date=2026-01-01&end_date=2026-03-31")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status %d success %v, body %s", rec.Code, env.Success, rec.Body.String())
	}

	data, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Effectiveness["Timolol"].AverageImprovement != 25.0 {
		t.Errorf("averageImprovement = %v, want 25.0", result.Effectiveness["Timolol"].AverageImprovement)
	}
	if result.TimeRange.Start != "2026-01-01" || result.TimeRange.End != "2026-03-31" {
		t.Errorf("unexpected timeRange: %+v", result.TimeRange)
	}
}

func TestEffectivenessEndpoint_ValidationErrors(t *testing.T) {
	e := newReportServer(&mockRepo{})

	for _, path := range []string{
		"/api/v1/reports/medication-effectiveness",
		"/api/v1/reports/medication-effectiveness?start_date=2026-01-01",
		"/api/v1/reports/medication-effectiveness?start_date=2026-03-01&end_date=2026-01-01",
		"/api/v1/reports/medication-effectiveness?start_date=2026-01-01&end_date=2026-03-01&min_lag_days=60&max_lag_days=30",
		"/api/v1/reports/medication-effectiveness?start_date=2026-01-01&end_date=2026-03-01&lookback_days=abc",
	} {
		rec, env := getReport(t, e, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
		if env.Success || env.Error == "" {
			t.Errorf("%s: expected failure envelope with error, got %+v", path, env)
		}
		if env.Data == nil {
			t.Errorf("%s: error responses must still carry the empty data shape", path)
		}
	}
}

func TestEffectivenessEndpoint_StoreFailure(t *testing.T) {
	repo := &mockRepo{failWith: errStore}
	e := newReportServer(repo)

	rec, env := getReport(t, e,
		"/api/v1/reports/medication-effectiveness?start_date=2026-01-01&end_date=2026-03-01")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if env.Success || env.Error == "" {
		t.Errorf("expected failure envelope, got %+v", env)
	}
}

func TestPatientProgressEndpoint_BadID(t *testing.T) {
	e := newReportServer(&mockRepo{})
	rec, env := getReport(t, e, "/api/v1/reports/patient-progress/not-a-uuid")
	if rec.Code != http.StatusBadRequest || env.Success {
		t.Errorf("status = %d success %v, want 400 failure", rec.Code, env.Success)
	}
}
