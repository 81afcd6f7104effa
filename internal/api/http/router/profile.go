package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/api/http/handler"
)

func (r *Router) registerProfileRoutes(api fiber.Router, h *handler.ProfileHandler, authRequired fiber.Handler) {
	api.Post("/profile", authRequired, h.Ensure)

	me := api.Group("/profile/me", authRequired)
	me.Get("/", h.GetMe)
	me.Patch("/", h.UpdateMe)
	me.Get("/roles", h.Roles)

	profiles := api.Group("/profiles", authRequired)
	profiles.Get("/:id/consent", h.GetConsent)
	profiles.Put("/:id/consent", h.SetConsent)
}
