package insight

import "github.com/carelink/carelink_backend/pkg/apperr"

var (
	ErrNotStaff        = apperr.Authorization("not staff")
	ErrConsentRequired = apperr.ConsentRequired("patient has not consented to AI processing")
	ErrResultNotFound  = apperr.NotFound("result not found")
)
