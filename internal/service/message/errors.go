package message

import "github.com/carelink/carelink_backend/pkg/apperr"

var (
	ErrAuthRequired     = apperr.Authorization("sign in to use messaging")
	ErrEmptyContent     = apperr.Validation("message content is required")
	ErrContentTooLong   = apperr.Validation("message content is too long")
	ErrInvalidRecipient = apperr.Validation("a valid recipient is required")
	ErrMessageNotFound  = apperr.NotFound("message not found or already read")
)
