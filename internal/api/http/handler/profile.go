package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/carelink/carelink_backend/internal/api/http/middleware"
	"github.com/carelink/carelink_backend/internal/service/consent"
	"github.com/carelink/carelink_backend/internal/service/profile"
)

type ProfileHandler struct {
	profiles profile.Service
	consent  consent.Service
}

func NewProfileHandler(profiles profile.Service, consent consent.Service) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, consent: consent}
}

// GET /profile/me
func (h *ProfileHandler) GetMe(c fiber.Ctx) error {
	p, err := h.profiles.Get(c.Context(), middleware.SessionFromFiber(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, p)
}

// POST /profile
func (h *ProfileHandler) Ensure(c fiber.Ctx) error {
	var body struct {
		UserType string  `json:"user_type"`
		FullName *string `json:"full_name"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	p, err := h.profiles.Ensure(c.Context(), middleware.SessionFromFiber(c), profile.EnsureRequest{
		UserType: body.UserType,
		FullName: body.FullName,
	})
	if err != nil {
		return fail(c, err)
	}
	return created(c, p)
}

// PATCH /profile/me
func (h *ProfileHandler) UpdateMe(c fiber.Ctx) error {
	var body struct {
		FullName *string `json:"full_name"`
		Phone    *string `json:"phone"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	p, err := h.profiles.Update(c.Context(), middleware.SessionFromFiber(c), profile.UpdateRequest{
		FullName: body.FullName,
		Phone:    body.Phone,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, p)
}

// GET /profile/me/roles
func (h *ProfileHandler) Roles(c fiber.Ctx) error {
	s := middleware.SessionFromFiber(c)
	if !s.Authenticated() {
		return unauthorized(c)
	}
	return ok(c, fiber.Map{
		"roles":    s.RoleNames(),
		"is_staff": s.IsStaff(),
	})
}

// ---------------------------------------------------------------------------
// Consent
// ---------------------------------------------------------------------------

// GET /profiles/:id/consent
func (h *ProfileHandler) GetConsent(c fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	value, err := h.consent.Get(c.Context(), middleware.SessionFromFiber(c), userID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"user_id": userID, "ai_consent": value})
}

// PUT /profiles/:id/consent
func (h *ProfileHandler) SetConsent(c fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "invalid user id")
	}

	var body struct {
		AIConsent *bool `json:"ai_consent"`
	}
	if err := c.Bind().JSON(&body); err != nil || body.AIConsent == nil {
		return badRequest(c, "ai_consent is required")
	}

	if err := h.consent.Set(c.Context(), middleware.SessionFromFiber(c), userID, *body.AIConsent); err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"user_id": userID, "ai_consent": *body.AIConsent})
}
