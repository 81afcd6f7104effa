package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/api/http/middleware"
	"github.com/carelink/carelink_backend/internal/service/voice"
)

type VoiceHandler struct {
	svc voice.Service
}

func NewVoiceHandler(svc voice.Service) *VoiceHandler {
	return &VoiceHandler{svc: svc}
}

// POST /functions/v1/voice-to-text
//
// Every failure carries the fallback text so the client can prompt the user
// to type instead.
func (h *VoiceHandler) Transcribe(c fiber.Ctx) error {
	fallback := fiber.Map{"fallback": voice.FallbackMessage}

	var body struct {
		Audio    string `json:"audio"`
		Language string `json:"language"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":    "invalid request body",
			"fallback": voice.FallbackMessage,
		})
	}

	t, err := h.svc.Transcribe(c.Context(), middleware.SessionFromFiber(c), voice.TranscribeRequest{
		Audio:    body.Audio,
		Language: body.Language,
	})
	if err != nil {
		return fail(c, err, fallback)
	}
	return c.JSON(t)
}
