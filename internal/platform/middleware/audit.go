package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/preciseoptics/eyecare/internal/platform/auth"
)

// AccessEvent captures who touched what, when, from where, and how the
// request ended. The audit middleware builds one per auditable request.
type AccessEvent struct {
	UserID       string
	UserName     string
	UserRoles    []string
	SessionID    string
	ResourceType string
	ResourceID   string
	Action       string // read, create, update, delete
	IPAddress    string
	UserAgent    string
	Method       string
	Path         string
	RequestID    string
	StatusCode   int
	Timestamp    time.Time
}

// AccessRecorder is the interface the audit middleware uses to persist access
// events. It decouples the middleware from the concrete audit service so that
// tests can provide a mock implementation.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, event AccessEvent) error
}

// AccessRecorderFunc is a function adapter for AccessRecorder.
type AccessRecorderFunc func(ctx context.Context, event AccessEvent) error

func (f AccessRecorderFunc) RecordAccess(ctx context.Context, event AccessEvent) error {
	return f(ctx, event)
}

// Audit returns Echo middleware that intercepts requests under /api/v1/,
// extracts the authenticated user from the request context, determines the
// resource type from the URL path, and records the access through the ledger.
//
// Export endpoints are fail-closed: the ledger entry is written before the
// handler runs, and the request is rejected with 500 when the write fails,
// so no data ever leaves the system without a trail. All other routes run
// the handler first (capturing the response status on the entry) and treat
// the ledger write as best-effort.
func Audit(logger zerolog.Logger, recorders ...AccessRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			ctx := req.Context()

			if isExportPath(path) {
				event := buildAccessEvent(c, "export")
				if recErr := record(recorders, ctx, event); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", event.RequestID).
						Msg("failed to record audit entry")
					return echo.NewHTTPError(http.StatusInternalServerError,
						"export blocked: audit trail unavailable")
				}

				err := next(c)
				event.StatusCode = c.Response().Status
				logAccess(logger, event)
				return err
			}

			// Execute the handler first so we capture the response status
			err := next(c)

			event := buildAccessEvent(c, httpMethodToAction(req.Method))
			event.StatusCode = c.Response().Status

			if recErr := record(recorders, ctx, event); recErr != nil {
				logger.Error().Err(recErr).
					Str("request_id", event.RequestID).
					Msg("failed to record audit entry")
			}

			logAccess(logger, event)
			return err
		}
	}
}

// buildAccessEvent assembles the ledger event for the current request. The
// status code is filled in by the caller once the handler has run.
func buildAccessEvent(c echo.Context, action string) AccessEvent {
	req := c.Request()
	ctx := req.Context()
	path := req.URL.Path

	event := AccessEvent{
		UserID:       auth.UserIDFromContext(ctx),
		UserName:     auth.UserNameFromContext(ctx),
		UserRoles:    auth.RolesFromContext(ctx),
		SessionID:    auth.SessionIDFromContext(ctx),
		ResourceType: extractResourceType(path),
		ResourceID:   extractResourceID(path),
		Action:       action,
		IPAddress:    c.RealIP(),
		UserAgent:    req.UserAgent(),
		Method:       req.Method,
		Path:         path,
		Timestamp:    time.Now().UTC(),
	}
	if rid, ok := c.Get("request_id").(string); ok {
		event.RequestID = rid
	}
	return event
}

func record(recorders []AccessRecorder, ctx context.Context, event AccessEvent) error {
	if len(recorders) == 0 || recorders[0] == nil {
		return nil
	}
	return recorders[0].RecordAccess(ctx, event)
}

func logAccess(logger zerolog.Logger, event AccessEvent) {
	logger.Info().
		Str("type", "audit").
		Str("request_id", event.RequestID).
		Str("user_id", event.UserID).
		Strs("user_roles", event.UserRoles).
		Str("resource_type", event.ResourceType).
		Str("resource_id", event.ResourceID).
		Str("action", event.Action).
		Str("method", event.Method).
		Str("path", event.Path).
		Str("remote_ip", event.IPAddress).
		Int("status", event.StatusCode).
		Msg("resource_access")
}

// isAuditablePath returns true if the path is under /api/v1/.
func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/")
}

// isExportPath returns true for endpoints that hand protected data out of the
// system boundary. These must not succeed when the ledger write fails.
func isExportPath(path string) bool {
	return strings.Contains(path, "/export")
}

// httpMethodToAction maps HTTP methods to audit action kinds.
func httpMethodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResourceType parses the resource type from a URL path.
//
//	/api/v1/patients      -> patients
//	/api/v1/patients/123  -> patients
func extractResourceType(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}

// extractResourceID returns the second path segment when it looks like a UUID.
func extractResourceID(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 1 {
		if _, err := uuid.Parse(segments[1]); err == nil {
			return segments[1]
		}
	}
	return ""
}
