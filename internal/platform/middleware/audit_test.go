package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/preciseoptics/eyecare/internal/platform/auth"
)

func runAudited(t *testing.T, method, path string, recorder AccessRecorder) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")

	ctx := req.Context()
	ctx = context.WithValue(ctx, auth.UserIDKey, "user-1")
	ctx = context.WithValue(ctx, auth.UserNameKey, "Dr. Smith")
	ctx = context.WithValue(ctx, auth.UserRolesKey, []string{"physician"})
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "req-abc")

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	handler := Audit(logger, recorder)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	if err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, err
}

func TestAudit_RecordsAccessEvent(t *testing.T) {
	var got AccessEvent
	recorder := AccessRecorderFunc(func(_ context.Context, event AccessEvent) error {
		got = event
		return nil
	})

	rec, _ := runAudited(t, http.MethodGet, "/api/v1/patients/7b5e1c0a-9c3f-4f6a-8f2e-1a2b3c4d5e6f", recorder)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	if got.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", got.UserID)
	}
	if got.ResourceType != "patients" {
		t.Errorf("expected patients, got %s", got.ResourceType)
	}
	if got.ResourceID != "7b5e1c0a-9c3f-4f6a-8f2e-1a2b3c4d5e6f" {
		t.Errorf("expected resource id, got %q", got.ResourceID)
	}
	if got.Action != "read" {
		t.Errorf("expected read, got %s", got.Action)
	}
	if got.RequestID != "req-abc" {
		t.Errorf("expected req-abc, got %s", got.RequestID)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestAudit_SkipsNonAPIRoutes(t *testing.T) {
	called := false
	recorder := AccessRecorderFunc(func(_ context.Context, _ AccessEvent) error {
		called = true
		return nil
	})

	runAudited(t, http.MethodGet, "/health", recorder)
	if called {
		t.Error("expected no audit record for /health")
	}
}

func TestAudit_RecorderFailureIsBestEffort(t *testing.T) {
	recorder := AccessRecorderFunc(func(_ context.Context, _ AccessEvent) error {
		return fmt.Errorf("store unavailable")
	})

	rec, _ := runAudited(t, http.MethodGet, "/api/v1/patients", recorder)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 despite recorder failure, got %d", rec.Code)
	}
}

func TestAudit_ExportBlockedOnRecorderFailure(t *testing.T) {
	recorder := AccessRecorderFunc(func(_ context.Context, _ AccessEvent) error {
		return fmt.Errorf("store unavailable")
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/export", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handlerRan := false
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	handler := Audit(logger, recorder)(func(c echo.Context) error {
		handlerRan = true
		return c.String(http.StatusOK, "patient data")
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 when export cannot be audited, got %d", rec.Code)
	}
	if handlerRan {
		t.Error("expected export handler to be skipped when the ledger write fails")
	}
	if body := rec.Body.String(); strings.Contains(body, "patient data") {
		t.Errorf("expected no export payload in response, got %q", body)
	}
}

func TestAudit_ExportRecordedBeforeHandler(t *testing.T) {
	var order []string
	recorder := AccessRecorderFunc(func(_ context.Context, event AccessEvent) error {
		order = append(order, "record")
		if event.Action != "export" {
			t.Errorf("expected export action, got %s", event.Action)
		}
		return nil
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/export", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	handler := Audit(logger, recorder)(func(c echo.Context) error {
		order = append(order, "handler")
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(order) != 2 || order[0] != "record" || order[1] != "handler" {
		t.Errorf("expected ledger write before handler, got %v", order)
	}
}

func TestHTTPMethodToAction(t *testing.T) {
	cases := map[string]string{
		http.MethodGet:    "read",
		http.MethodPost:   "create",
		http.MethodPut:    "update",
		http.MethodPatch:  "update",
		http.MethodDelete: "delete",
	}
	for method, want := range cases {
		if got := httpMethodToAction(method); got != want {
			t.Errorf("%s: expected %s, got %s", method, want, got)
		}
	}
}

func TestExtractResourceType(t *testing.T) {
	if got := extractResourceType("/api/v1/audit-logs/summary"); got != "audit-logs" {
		t.Errorf("expected audit-logs, got %s", got)
	}
	if got := extractResourceType("/api/v1/"); got != "unknown" {
		t.Errorf("expected unknown, got %s", got)
	}
}
