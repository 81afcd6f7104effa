package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/carelink/carelink_backend/internal/api/http/middleware"
	"github.com/carelink/carelink_backend/internal/service/message"
)

type MessageHandler struct {
	svc message.Service
}

func NewMessageHandler(svc message.Service) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// POST /functions/v1/send-message
func (h *MessageHandler) Send(c fiber.Ctx) error {
	var body struct {
		RecipientID     string  `json:"recipient_id"`
		Content         string  `json:"content"`
		RelatedResultID *string `json:"related_result_id"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	recipient, err := uuid.Parse(body.RecipientID)
	if err != nil {
		return badRequest(c, "recipient_id must be a valid id")
	}

	req := message.SendRequest{RecipientID: recipient, Content: body.Content}
	if body.RelatedResultID != nil && *body.RelatedResultID != "" {
		rid, err := uuid.Parse(*body.RelatedResultID)
		if err != nil {
			return badRequest(c, "related_result_id must be a valid id")
		}
		req.RelatedResultID = &rid
	}

	id, err := h.svc.Send(c.Context(), middleware.SessionFromFiber(c), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message_id": id})
}

// GET /functions/v1/get-messages?conversation_with=
func (h *MessageHandler) List(c fiber.Ctx) error {
	var counterpart *uuid.UUID
	if raw := c.Query("conversation_with"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "conversation_with must be a valid id")
		}
		counterpart = &id
	}

	convs, err := h.svc.ListConversations(c.Context(), middleware.SessionFromFiber(c), counterpart)
	if err != nil {
		return fail(c, err)
	}
	if convs == nil {
		convs = []message.Conversation{}
	}
	return c.JSON(fiber.Map{"conversations": convs})
}

// POST /functions/v1/mark-message-read
func (h *MessageHandler) MarkRead(c fiber.Ctx) error {
	var body struct {
		MessageID string `json:"message_id"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	id, err := uuid.Parse(body.MessageID)
	if err != nil {
		return badRequest(c, "message_id must be a valid id")
	}

	if err := h.svc.MarkRead(c.Context(), middleware.SessionFromFiber(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
