package profile

import "github.com/carelink/carelink_backend/pkg/apperr"

var (
	ErrAuthRequired    = apperr.Authorization("sign in to continue")
	ErrProfileNotFound = apperr.NotFound("profile not found")
	ErrInvalidUserType = apperr.Validation("user type must be patient or doctor")
	ErrInvalidName     = apperr.Validation("full name must be 1-100 characters")
	ErrInvalidPhone    = apperr.Validation("phone number is invalid")
)
