package authorize

import (
	"context"
	"errors"
	"fmt"

	casbin "github.com/casbin/casbin/v2"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidArgs = errors.New("invalid authorization arguments")
)

// IAuthorization is the only thing services and middleware depend on.
type IAuthorization interface {
	// Enforce answers: "Is subject allowed to act on object inside domain?"
	Enforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) (bool, error)
	// MustEnforce returns ErrForbidden when Enforce says no.
	MustEnforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) error

	// g, user_id, role, domain
	AddRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error)
	RemoveRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error)
	GetRolesForUserInDomain(ctx context.Context, subject GroupSubject, domain Domain) ([]Role, error)

	// p, role, domain, object, action, eft
	AddPermission(ctx context.Context, p PermissionPolicy) (bool, error)
}

// Enforcer is the subset of casbin's enforcer the wrapper uses; both the
// synced and distributed enforcers satisfy it.
type Enforcer interface {
	LoadPolicy() error
	Enforce(rvals ...any) (bool, error)
	AddGroupingPolicy(params ...any) (bool, error)
	RemoveGroupingPolicy(params ...any) (bool, error)
	GetRolesForUserInDomain(name string, domain string) []string
	AddPolicy(params ...any) (bool, error)
}

var _ Enforcer = (*casbin.DistributedEnforcer)(nil)

// Authorization is a thin typed wrapper around a casbin enforcer.
type Authorization struct {
	enforcer Enforcer
	// bypassRole short-circuits Enforce for holders in DomainSys. Empty disables it.
	bypassRole Role
}

// NewAuthorization wraps an already-configured enforcer and loads policies.
func NewAuthorization(e Enforcer) (*Authorization, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: enforcer is nil", ErrInvalidArgs)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, err
	}
	return &Authorization{enforcer: e, bypassRole: RoleAdmin}, nil
}

func (a *Authorization) Enforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) (bool, error) {
	if subject == "" {
		return false, fmt.Errorf("%w: subject is empty", ErrInvalidArgs)
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	if err := checkObject(object, action); err != nil {
		return false, err
	}

	if a.bypassRole != "" {
		for _, r := range a.enforcer.GetRolesForUserInDomain(string(subject), string(DomainSys)) {
			if Role(r) == a.bypassRole {
				return true, nil
			}
		}
	}

	return a.enforcer.Enforce(string(subject), string(domain), string(object), string(action))
}

func (a *Authorization) MustEnforce(ctx context.Context, subject GroupSubject, domain Domain, object Resource, action Action) error {
	ok, err := a.Enforce(ctx, subject, domain, object, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (a *Authorization) AddRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	if subject == "" || role == "" {
		return false, fmt.Errorf("%w: empty subject/role", ErrInvalidArgs)
	}
	if _, ok := KnownRoles[role]; !ok {
		return false, fmt.Errorf("%w: unknown role: %q", ErrInvalidArgs, role)
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	return a.enforcer.AddGroupingPolicy(string(subject), string(role), string(domain))
}

func (a *Authorization) RemoveRoleForUserInDomain(ctx context.Context, subject GroupSubject, role Role, domain Domain) (bool, error) {
	if subject == "" || role == "" {
		return false, fmt.Errorf("%w: empty subject/role", ErrInvalidArgs)
	}
	if err := checkDomain(domain); err != nil {
		return false, err
	}
	return a.enforcer.RemoveGroupingPolicy(string(subject), string(role), string(domain))
}

func (a *Authorization) GetRolesForUserInDomain(ctx context.Context, subject GroupSubject, domain Domain) ([]Role, error) {
	if subject == "" {
		return nil, fmt.Errorf("%w: subject is empty", ErrInvalidArgs)
	}
	if err := checkDomain(domain); err != nil {
		return nil, err
	}
	names := a.enforcer.GetRolesForUserInDomain(string(subject), string(domain))
	out := make([]Role, 0, len(names))
	for _, r := range names {
		out = append(out, Role(r))
	}
	return out, nil
}

func (a *Authorization) AddPermission(ctx context.Context, p PermissionPolicy) (bool, error) {
	if p.Subject == "" || p.Domain == "" || p.Object == "" || p.Action == "" {
		return false, fmt.Errorf("%w: empty permission fields", ErrInvalidArgs)
	}
	if _, ok := KnownRoles[p.Subject]; !ok && p.Subject != WildcardRole {
		return false, fmt.Errorf("%w: unknown role: %q", ErrInvalidArgs, p.Subject)
	}
	if err := checkDomain(p.Domain); err != nil {
		return false, err
	}
	if err := checkObject(p.Object, p.Action); err != nil {
		return false, err
	}
	if p.Effect != EffectAllow && p.Effect != EffectDeny {
		return false, fmt.Errorf("%w: invalid effect: %q", ErrInvalidArgs, p.Effect)
	}
	return a.enforcer.AddPolicy(string(p.Subject), string(p.Domain), string(p.Object), string(p.Action), string(p.Effect))
}

func checkDomain(d Domain) error {
	if d == "" || !IsValidDomain(d) {
		return fmt.Errorf("%w: invalid domain: %q", ErrInvalidArgs, d)
	}
	return nil
}

// checkObject only admits known constants so typos fail loudly.
func checkObject(object Resource, action Action) error {
	if _, ok := KnownResources[object]; !ok && object != WildcardResource {
		return fmt.Errorf("%w: unknown resource: %q", ErrInvalidArgs, object)
	}
	if _, ok := KnownActions[action]; !ok && action != WildcardAction {
		return fmt.Errorf("%w: unknown action: %q", ErrInvalidArgs, action)
	}
	return nil
}
