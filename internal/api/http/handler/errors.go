package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/api/http/middleware"
	"github.com/carelink/carelink_backend/pkg/apperr"
)

// StatusFor maps an error kind to its HTTP status. Authorization errors are
// 401 for guests and 403 for signed-in callers.
func StatusFor(kind apperr.Kind, authenticated bool) int {
	switch kind {
	case apperr.KindAuthorization:
		if authenticated {
			return fiber.StatusForbidden
		}
		return fiber.StatusUnauthorized
	case apperr.KindConsentRequired:
		return fiber.StatusForbidden
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindPaymentProvider, apperr.KindAIProvider, apperr.KindTranscriptionProvider:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// fail writes {"error": msg} for a service error. Unclassified errors are
// logged and hidden behind a generic message.
func fail(c fiber.Ctx, err error, extra ...fiber.Map) error {
	body := fiber.Map{}
	for _, m := range extra {
		for k, v := range m {
			body[k] = v
		}
	}

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		rid, _ := middleware.RequestIDFromFiber(c)
		slog.Error("unhandled service error",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", rid,
			"err", err,
		)
		body["error"] = "internal server error"
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}

	status := StatusFor(ae.Kind, middleware.SessionFromFiber(c).Authenticated())
	if status >= fiber.StatusInternalServerError {
		slog.Warn("upstream provider error", "kind", ae.Kind, "path", c.Path(), "err", err)
	}

	body["error"] = ae.Error()
	return c.Status(status).JSON(body)
}

// ErrorHandler renders errors returned from middleware and handlers in the
// same {"error": msg} shape the handlers use.
func ErrorHandler(c fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return fail(c, err)
}
