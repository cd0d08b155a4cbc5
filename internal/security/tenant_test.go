package security

import (
	"errors"
	"testing"
)

func TestTenantPolicyContext_CrossScopeDenied(t *testing.T) {
	ctx := TenantPolicyContext{TenantID: "tenant-a"}
	err := ctx.CheckScope("tenant-b", "some-scope")
	if !errors.Is(err, ErrTenantRecallCrossScopeDenied) {
		t.Fatalf("expected cross scope denied, got %v", err)
	}
}

func TestTenantPolicyContext_CrossScopeAllowedWhenPermitted(t *testing.T) {
	ctx := TenantPolicyContext{TenantID: "tenant-a", AllowCrossTenant: true}
	if err := ctx.CheckScope("tenant-b", "some-scope"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTenantPolicyContext_DefaultFallbackDenied(t *testing.T) {
	ctx := TenantPolicyContext{TenantID: "tenant-a"}
	err := ctx.CheckScope("tenant-a", "")
	if !errors.Is(err, ErrTenantDefaultScopeFallbackDenied) {
		t.Fatalf("expected default fallback denied, got %v", err)
	}
}

func TestTenantPolicyContext_SameTenantScopedAllowed(t *testing.T) {
	ctx := TenantPolicyContext{TenantID: "tenant-a"}
	if err := ctx.CheckScope("tenant-a", "some-scope"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
