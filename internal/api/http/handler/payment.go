package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/api/http/middleware"
	"github.com/carelink/carelink_backend/internal/service/payment"
)

const headerStripeSignature = "Stripe-Signature"

type PaymentHandler struct {
	svc payment.Service
}

func NewPaymentHandler(svc payment.Service) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// POST /functions/v1/create-payment
func (h *PaymentHandler) CreatePayment(c fiber.Ctx) error {
	var body struct {
		Amount      float64        `json:"amount"`
		Description string         `json:"description"`
		Metadata    map[string]any `json:"metadata"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	url, err := h.svc.CreatePayment(c.Context(), middleware.SessionFromFiber(c), payment.CreatePaymentRequest{
		Amount:      body.Amount,
		Description: body.Description,
		Metadata:    body.Metadata,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// POST /functions/v1/create-checkout
func (h *PaymentHandler) CreateCheckout(c fiber.Ctx) error {
	var body struct {
		PriceAmount int64  `json:"priceAmount"`
		Interval    string `json:"interval"`
		Description string `json:"description"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	url, err := h.svc.CreateSubscription(c.Context(), middleware.SessionFromFiber(c), payment.CreateSubscriptionRequest{
		PriceAmount: body.PriceAmount,
		Interval:    body.Interval,
		Description: body.Description,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// POST /functions/v1/check-subscription
func (h *PaymentHandler) CheckSubscription(c fiber.Ctx) error {
	status, err := h.svc.CheckSubscription(c.Context(), middleware.SessionFromFiber(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(status)
}

// POST /functions/v1/customer-portal
func (h *PaymentHandler) CustomerPortal(c fiber.Ctx) error {
	url, err := h.svc.OpenCustomerPortal(c.Context(), middleware.SessionFromFiber(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

// ---------------------------------------------------------------------------
// Webhook
// ---------------------------------------------------------------------------

// POST /webhooks/stripe
func (h *PaymentHandler) Webhook(c fiber.Ctx) error {
	if err := h.svc.HandleWebhook(c.Context(), c.Body(), c.Get(headerStripeSignature)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}
