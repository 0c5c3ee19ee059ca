package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"casedocs/internal/http/middleware"
	"casedocs/internal/service"
)

// exposeDetailsLocalKey marks requests whose error bodies may carry internal details.
const exposeDetailsLocalKey = "expose_error_details"

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return writeErrorDetail(c, status, code, message, nil)
}

// writeErrorDetail is writeError plus the cause, which is only rendered in development.
func writeErrorDetail(c *fiber.Ctx, status int, code, message string, cause error) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	if cause != nil {
		if expose, _ := c.Locals(exposeDetailsLocalKey).(bool); expose {
			res.Error.Details = cause.Error()
		}
	}
	return c.Status(status).JSON(res)
}

// respondError maps service errors onto the HTTP error taxonomy.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, service.ErrUnsupportedType):
		return writeErrorDetail(c, fiber.StatusBadRequest, "UNSUPPORTED_TYPE", "file type is not allowed", err)
	case errors.Is(err, service.ErrPayloadTooLarge):
		return writeErrorDetail(c, fiber.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "file exceeds the size limit", err)
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrIntegrity):
		return writeError(c, fiber.StatusConflict, "INTEGRITY_FAULT", "document content is missing")
	}

	slog.ErrorContext(c.UserContext(), "request_failed",
		slog.String("request_id", requestIDFromCtx(c)),
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	switch {
	case errors.Is(err, service.ErrStorage):
		return writeErrorDetail(c, fiber.StatusInternalServerError, "STORAGE_ERROR", "storage backend failure", err)
	case errors.Is(err, service.ErrDatabase):
		return writeErrorDetail(c, fiber.StatusInternalServerError, "DATABASE_ERROR", "database failure", err)
	default:
		return writeErrorDetail(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication required")
		case fiber.StatusForbidden:
			return writeError(c, status, "FORBIDDEN", "insufficient permissions")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large")
		case fiber.StatusTooManyRequests:
			return writeError(c, status, "RATE_LIMITED", "too many requests")
		default:
			return writeErrorDetail(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", err)
		}
	}
}
