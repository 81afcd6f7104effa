// Package role turns verified token claims into the Session every service
// call receives. Roles come from casbin grouping policies in the system
// domain, never from the token itself.
package role

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/carelink/carelink_backend/pkg/authorize"
	"github.com/carelink/carelink_backend/pkg/reqctx"
)

// Session is the caller of a service operation. A nil *Session is a guest.
type Session struct {
	UserID    uuid.UUID
	Email     string
	SessionID string
	Roles     []authorize.Role
}

func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != uuid.Nil
}

func (s *Session) HasRole(r authorize.Role) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.Roles, r)
}

// IsStaff reports whether the caller is a doctor or an admin.
func (s *Session) IsStaff() bool {
	return s.HasRole(authorize.RoleAdmin) || s.HasRole(authorize.RoleDoctor)
}

// Is reports whether the session belongs to userID.
func (s *Session) Is(userID uuid.UUID) bool {
	return s.Authenticated() && s.UserID == userID
}

func (s *Session) Subject() authorize.GroupSubject {
	if s == nil {
		return ""
	}
	return authorize.SubjectFor(s.UserID)
}

// RoleNames returns the roles without their "role:" prefix.
func (s *Session) RoleNames() []string {
	if s == nil {
		return []string{}
	}
	names := make([]string, 0, len(s.Roles))
	for _, r := range s.Roles {
		names = append(names, r.Name())
	}
	return names
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

type RoleSource interface {
	GetRolesForUserInDomain(ctx context.Context, subject authorize.GroupSubject, domain authorize.Domain) ([]authorize.Role, error)
}

type Resolver interface {
	// Resolve returns nil for nil or expired claims.
	Resolve(ctx context.Context, claims reqctx.AuthClaims) (*Session, error)
}

type resolver struct {
	roles RoleSource
}

func NewResolver(roles RoleSource) Resolver {
	return &resolver{roles: roles}
}

func (r *resolver) Resolve(ctx context.Context, claims reqctx.AuthClaims) (*Session, error) {
	if claims == nil || claims.IsExpired() || claims.GetUserID() == uuid.Nil {
		return nil, nil
	}

	roles, err := r.roles.GetRolesForUserInDomain(ctx, authorize.SubjectFor(claims.GetUserID()), authorize.DomainSys)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}

	known := make([]authorize.Role, 0, len(roles))
	for _, role := range roles {
		if _, ok := authorize.KnownRoles[role]; ok {
			known = append(known, role)
		}
	}

	return &Session{
		UserID:    claims.GetUserID(),
		Email:     claims.GetEmail(),
		SessionID: claims.GetSessionID(),
		Roles:     known,
	}, nil
}
