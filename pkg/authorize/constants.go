package authorize

import (
	"fmt"
	"regexp"
	"strings"
)

type Action string
type Resource string
type Role string
type Domain string

// Actions

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"

	ActionManage  Action = "manage"  // CRUD + list
	ActionExecute Action = "execute" // trigger a server-side job

	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"

	WildcardAction Action = "*"
)

var KnownActions = map[Action]struct{}{
	ActionCreate: {}, ActionRead: {}, ActionUpdate: {}, ActionDelete: {}, ActionList: {},
	ActionManage: {}, ActionExecute: {},
	ActionGrant: {}, ActionRevoke: {},
}

// Resources

const (
	WildcardResource Resource = "*"

	ResourceProfile Resource = "profile"
	ResourceConsent Resource = "consent"

	ResourceResult          Resource = "result"
	ResourceResultDocument  Resource = "result_document"
	ResourceResultSummary   Resource = "result_summary"
	ResourceResultRiskFlags Resource = "result_risk_flags"

	ResourceMessage      Resource = "message"
	ResourceOrder        Resource = "order"
	ResourceSubscription Resource = "subscription"
	ResourceTranscript   Resource = "transcript"

	ResourceRBAC   Resource = "rbac"
	ResourceSystem Resource = "system"
)

var KnownResources = map[Resource]struct{}{
	ResourceProfile: {}, ResourceConsent: {},
	ResourceResult: {}, ResourceResultDocument: {}, ResourceResultSummary: {}, ResourceResultRiskFlags: {},
	ResourceMessage: {}, ResourceOrder: {}, ResourceSubscription: {}, ResourceTranscript: {},
	ResourceRBAC: {}, ResourceSystem: {},
}

// Roles. Users get exactly one of these in DomainSys through a grouping policy.

const (
	WildcardRole Role = "*"

	RolePatient Role = "role:patient"
	RoleDoctor  Role = "role:doctor"
	RoleAdmin   Role = "role:admin"
)

var KnownRoles = map[Role]struct{}{
	RolePatient: {},
	RoleDoctor:  {},
	RoleAdmin:   {},
}

// RoleFromUserType maps profiles.user_type to a casbin role.
func RoleFromUserType(userType string) (Role, bool) {
	switch strings.ToLower(userType) {
	case "patient":
		return RolePatient, true
	case "doctor":
		return RoleDoctor, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Name strips the "role:" prefix: RoleDoctor.Name() == "doctor".
func (r Role) Name() string {
	return strings.TrimPrefix(string(r), "role:")
}

// Domains

const (
	DomainSys      Domain = "sys"
	WildcardDomain Domain = "*"

	DomainPrefixUser Domain = "user:"
)

var reUUID = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)

func UserDomain(userID string) Domain {
	return Domain(fmt.Sprintf("%s%s", DomainPrefixUser, userID))
}

// IsValidDomain checks whether d is a recognised domain string.
func IsValidDomain(d Domain) bool {
	if d == DomainSys || d == WildcardDomain {
		return true
	}
	s := string(d)
	if rest, ok := strings.CutPrefix(s, string(DomainPrefixUser)); ok {
		return reUUID.MatchString(rest)
	}
	return false
}

// Casbin tuples

type PolicyEffect string

const (
	EffectAllow PolicyEffect = "allow"
	EffectDeny  PolicyEffect = "deny"
)

// GroupSubject is the g.sub in Casbin: a concrete user id.
type GroupSubject string

// Permission rows: p, role, domain, resource, action, eft
type PermissionPolicy struct {
	Subject Role
	Domain  Domain
	Object  Resource
	Action  Action
	Effect  PolicyEffect
}
