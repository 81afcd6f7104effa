package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/api/http/handler"
)

func (r *Router) registerPaymentFunctions(
	fn fiber.Router,
	ph *handler.PaymentHandler,
	authRequired fiber.Handler,
	authOptional fiber.Handler,
) {
	// Guests may pay; the service decides whether guest checkout is enabled.
	fn.Post("/create-payment", authOptional, ph.CreatePayment)

	fn.Post("/create-checkout", authRequired, ph.CreateCheckout)
	fn.Post("/check-subscription", authRequired, ph.CheckSubscription)
	fn.Post("/customer-portal", authRequired, ph.CustomerPortal)
}

// Stripe signs the raw body; no bearer token.
func (r *Router) registerWebhookRoutes(api fiber.Router, ph *handler.PaymentHandler) {
	api.Post("/webhooks/stripe", ph.Webhook)
}
