package result

import "github.com/carelink/carelink_backend/pkg/apperr"

var (
	ErrAuthRequired     = apperr.Authorization("sign in to continue")
	ErrForbidden        = apperr.Authorization("not allowed to access results")
	ErrResultNotFound   = apperr.NotFound("result not found")
	ErrNoDocument       = apperr.NotFound("result has no document")
	ErrTestNameRequired = apperr.Validation("test name is required")
	ErrInvalidValues    = apperr.Validation("values must be a JSON object")
	ErrInvalidPatient   = apperr.Validation("patients can only add their own results")
	ErrDocumentTooLarge = apperr.Validation("document is too large")
	ErrDocumentType     = apperr.Validation("document must be a PDF, PNG or JPEG")
	ErrDocumentEmpty    = apperr.Validation("document is empty")
)
