package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/api/http/handler"
)

func (r *Router) registerMessageFunctions(fn fiber.Router, h *handler.MessageHandler, authRequired fiber.Handler) {
	fn.Post("/send-message", authRequired, h.Send)
	fn.Get("/get-messages", authRequired, h.List)
	fn.Post("/mark-message-read", authRequired, h.MarkRead)
}

func (r *Router) registerVoiceFunctions(fn fiber.Router, h *handler.VoiceHandler, authRequired fiber.Handler) {
	fn.Post("/voice-to-text", authRequired, h.Transcribe)
}
