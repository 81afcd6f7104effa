package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/pkg/authtoken"
	"github.com/carelink/carelink_backend/pkg/reqctx"
)

const (
	LocalsSession = "session"
	LocalsClaims  = "claims"
)

type TokenVerifier interface {
	Verify(raw string) (*authtoken.Claims, error)
}

// RevocationChecker reports sessions that were logged out before their
// token expired. A nil checker accepts every session.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// AuthRequired validates a Bearer access token, rejects revoked sessions and
// resolves the caller's roles. On success the *role.Session is stored in
// c.Locals(LocalsSession) and the claims are attached to the request context.
func AuthRequired(v TokenVerifier, revoked RevocationChecker, resolver role.Resolver) fiber.Handler {
	return func(c fiber.Ctx) error {
		if err := authenticate(c, v, revoked, resolver); err != nil {
			return err
		}
		return c.Next()
	}
}

// AuthOptional behaves like AuthRequired when an Authorization header is
// present and lets the request through as a guest otherwise.
func AuthOptional(v TokenVerifier, revoked RevocationChecker, resolver role.Resolver) fiber.Handler {
	return func(c fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		if err := authenticate(c, v, revoked, resolver); err != nil {
			return err
		}
		return c.Next()
	}
}

func authenticate(c fiber.Ctx, v TokenVerifier, revoked RevocationChecker, resolver role.Resolver) error {
	raw, err := authtoken.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return fiber.ErrUnauthorized
	}

	claims, err := v.Verify(raw)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	ctx := c.Context()

	if revoked != nil && claims.SessionID != "" {
		isRevoked, err := revoked.IsRevoked(ctx, claims.SessionID)
		if err != nil {
			slog.Warn("session denylist lookup failed", "session_id", claims.SessionID, "err", err)
			return fiber.ErrServiceUnavailable
		}
		if isRevoked {
			return fiber.ErrUnauthorized
		}
	}

	session, err := resolver.Resolve(ctx, claims)
	if err != nil {
		return err
	}
	if session == nil {
		return fiber.ErrUnauthorized
	}

	c.Locals(LocalsClaims, claims)
	c.Locals(LocalsSession, session)
	c.SetContext(reqctx.WithClaims(ctx, claims))

	return nil
}

// SessionFromFiber returns nil for guests.
func SessionFromFiber(c fiber.Ctx) *role.Session {
	s, _ := c.Locals(LocalsSession).(*role.Session)
	return s
}

func ClaimsFromFiber(c fiber.Ctx) (*authtoken.Claims, bool) {
	claims, ok := c.Locals(LocalsClaims).(*authtoken.Claims)
	return claims, ok && claims != nil
}
