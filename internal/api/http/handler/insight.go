package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/carelink/carelink_backend/internal/api/http/middleware"
	"github.com/carelink/carelink_backend/internal/service/insight"
)

type InsightHandler struct {
	svc insight.Service
}

func NewInsightHandler(svc insight.Service) *InsightHandler {
	return &InsightHandler{svc: svc}
}

func resultIDFromBody(c fiber.Ctx) (uuid.UUID, error) {
	var body struct {
		ResultID string `json:"resultId"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(body.ResultID)
}

// POST /functions/v1/generate-summary
func (h *InsightHandler) GenerateSummary(c fiber.Ctx) error {
	id, err := resultIDFromBody(c)
	if err != nil {
		return badRequest(c, "resultId must be a valid id")
	}
	if err := h.svc.GenerateSummary(c.Context(), middleware.SessionFromFiber(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{})
}

// POST /functions/v1/generate-risk-flags
func (h *InsightHandler) GenerateRiskFlags(c fiber.Ctx) error {
	id, err := resultIDFromBody(c)
	if err != nil {
		return badRequest(c, "resultId must be a valid id")
	}
	if err := h.svc.GenerateRiskFlags(c.Context(), middleware.SessionFromFiber(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{})
}
