package consent

import "github.com/carelink/carelink_backend/pkg/apperr"

var (
	ErrNotOwner        = apperr.Authorization("consent can only be changed by its owner")
	ErrNotAllowed      = apperr.Authorization("not allowed to read this consent")
	ErrProfileNotFound = apperr.NotFound("profile not found")
)
