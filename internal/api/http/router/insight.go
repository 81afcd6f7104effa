package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/api/http/handler"
	"github.com/carelink/carelink_backend/pkg/authorize"
)

func (r *Router) registerInsightFunctions(
	fn fiber.Router,
	h *handler.InsightHandler,
	authRequired fiber.Handler,
	requireStaff func(authorize.Resource, authorize.Action) fiber.Handler,
) {
	fn.Post("/generate-summary", authRequired,
		requireStaff(authorize.ResourceResultSummary, authorize.ActionExecute),
		h.GenerateSummary)
	fn.Post("/generate-risk-flags", authRequired,
		requireStaff(authorize.ResourceResultRiskFlags, authorize.ActionExecute),
		h.GenerateRiskFlags)
}
