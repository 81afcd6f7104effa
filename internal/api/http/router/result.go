package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/api/http/handler"
)

func (r *Router) registerResultRoutes(api fiber.Router, h *handler.ResultHandler, authRequired fiber.Handler) {
	results := api.Group("/results", authRequired)
	results.Post("/", h.Create)
	results.Get("/", h.List)
	results.Get("/:id", h.Get)
	results.Post("/:id/document", h.UploadDocument)
	results.Get("/:id/document", h.DocumentURL)
}
