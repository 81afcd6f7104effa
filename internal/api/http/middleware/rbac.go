package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/pkg/authorize"
)

type PolicyEnforcer interface {
	MustEnforce(ctx context.Context, subject authorize.GroupSubject, domain authorize.Domain, object authorize.Resource, action authorize.Action) error
}

// ErrNotStaff is the denial for staff-only function routes.
var ErrNotStaff = fiber.NewError(fiber.StatusForbidden, "not staff")

// RequirePermission checks the authenticated caller against the casbin
// policy of the system domain. It must run after AuthRequired.
func RequirePermission(auth PolicyEnforcer, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return requirePermission(auth, resource, action, fiber.ErrForbidden)
}

// RequireStaffPermission is RequirePermission for routes only doctors and
// admins hold; a denied caller gets "not staff".
func RequireStaffPermission(auth PolicyEnforcer, resource authorize.Resource, action authorize.Action) fiber.Handler {
	return requirePermission(auth, resource, action, ErrNotStaff)
}

func requirePermission(auth PolicyEnforcer, resource authorize.Resource, action authorize.Action, denied *fiber.Error) fiber.Handler {
	return func(c fiber.Ctx) error {
		session := SessionFromFiber(c)
		if !session.Authenticated() {
			return fiber.ErrUnauthorized
		}

		if err := auth.MustEnforce(c.Context(), session.Subject(), authorize.DomainSys, resource, action); err != nil {
			if errors.Is(err, authorize.ErrForbidden) {
				return denied
			}
			return err
		}

		return c.Next()
	}
}
