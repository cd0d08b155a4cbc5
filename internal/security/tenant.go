package security

import "errors"

// Deterministic tenant-scoping errors. These are returned verbatim (not
// wrapped in a generic message) so callers and tests can match on them with
// errors.Is.
var (
	// ErrTenantRecallCrossScopeDenied is returned when a recall request
	// asks for a scope ID belonging to a different tenant than the caller.
	ErrTenantRecallCrossScopeDenied = errors.New("tenant recall cross scope denied")

	// ErrTenantDefaultScopeFallbackDenied is returned when a request omits
	// a scope and the tenant policy forbids falling back to a default
	// (global) scope.
	ErrTenantDefaultScopeFallbackDenied = errors.New("tenant default scope fallback denied")
)

// TenantPolicyContext carries the scoping rules in effect for a request:
// which tenant the caller belongs to, whether cross-tenant recall is ever
// permitted, and whether an unscoped request may fall back to a global
// default scope.
type TenantPolicyContext struct {
	TenantID             string
	AllowCrossTenant     bool
	AllowDefaultFallback bool
}

// CheckScope validates that a caller in ctx may access the given
// (tenantID, scopeID) pair, returning one of the deterministic tenant
// errors above when denied.
func (ctx TenantPolicyContext) CheckScope(tenantID, scopeID string) error {
	if scopeID == "" {
		if !ctx.AllowDefaultFallback {
			return ErrTenantDefaultScopeFallbackDenied
		}
		return nil
	}
	if tenantID != ctx.TenantID && !ctx.AllowCrossTenant {
		return ErrTenantRecallCrossScopeDenied
	}
	return nil
}
