package payment

import "github.com/carelink/carelink_backend/pkg/apperr"

var (
	ErrAuthRequired        = apperr.Authorization("sign in to continue")
	ErrEmailRequired       = apperr.Authorization("an account email is required for billing")
	ErrInvalidAmount       = apperr.Validation("amount must be greater than zero")
	ErrDescriptionRequired = apperr.Validation("description is required")
	ErrInvalidInterval     = apperr.Validation("interval must be month or year")
	ErrNoCustomer          = apperr.NotFound("no billing account found for this user")
	ErrInvalidWebhook      = apperr.Validation("invalid webhook payload or signature")
)
