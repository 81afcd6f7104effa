package authorize

import (
	"context"
	"log/slog"
)

// DefaultPolicies is the baseline permission set. Admins also bypass Enforce.
var DefaultPolicies = []PermissionPolicy{
	{RoleAdmin, DomainSys, WildcardResource, WildcardAction, EffectAllow},

	{RoleDoctor, DomainSys, ResourceResult, ActionRead, EffectAllow},
	{RoleDoctor, DomainSys, ResourceResult, ActionList, EffectAllow},
	{RoleDoctor, DomainSys, ResourceResult, ActionCreate, EffectAllow},
	{RoleDoctor, DomainSys, ResourceResultDocument, ActionManage, EffectAllow},
	{RoleDoctor, DomainSys, ResourceResultSummary, ActionExecute, EffectAllow},
	{RoleDoctor, DomainSys, ResourceResultRiskFlags, ActionExecute, EffectAllow},
	{RoleDoctor, DomainSys, ResourceMessage, ActionManage, EffectAllow},
	{RoleDoctor, DomainSys, ResourceTranscript, ActionCreate, EffectAllow},

	{RolePatient, DomainSys, ResourceResult, ActionRead, EffectAllow},
	{RolePatient, DomainSys, ResourceResult, ActionList, EffectAllow},
	{RolePatient, DomainSys, ResourceResult, ActionCreate, EffectAllow},
	{RolePatient, DomainSys, ResourceResultDocument, ActionManage, EffectAllow},
	{RolePatient, DomainSys, ResourceMessage, ActionManage, EffectAllow},
	{RolePatient, DomainSys, ResourceTranscript, ActionCreate, EffectAllow},
	{RolePatient, DomainSys, ResourceOrder, ActionCreate, EffectAllow},
	{RolePatient, DomainSys, ResourceSubscription, ActionManage, EffectAllow},
}

// SeedDefaultPolicies writes DefaultPolicies; existing rows are left alone.
func SeedDefaultPolicies(ctx context.Context, auth IAuthorization) error {
	logger := slog.Default()

	for _, p := range DefaultPolicies {
		added, err := auth.AddPermission(ctx, p)
		if err != nil {
			logger.Error("failed to add policy", "policy", p, "error", err)
			return err
		}
		if added {
			logger.Debug("added policy", "role", p.Subject, "resource", p.Object, "action", p.Action)
		}
	}

	logger.Info("seeded default RBAC policies", "count", len(DefaultPolicies))
	return nil
}
