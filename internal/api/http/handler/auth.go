package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/api/http/middleware"
)

type SessionRevoker interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
}

type AuthHandler struct {
	sessions SessionRevoker
}

func NewAuthHandler(sessions SessionRevoker) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// POST /auth/logout
//
// Tokens are issued by the hosted auth provider, so logout only denylists the
// session id until the token would have expired.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	claims, found := middleware.ClaimsFromFiber(c)
	if !found {
		return unauthorized(c)
	}

	if err := h.sessions.Revoke(c.Context(), claims.SessionID, claims.TTL()); err != nil {
		slog.Error("failed to revoke session", "session_id", claims.SessionID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return noContent(c)
}
