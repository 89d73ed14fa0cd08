package gatewayauth

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"chatinvoice/storage"
)

type fakeStore struct {
	storage.Store
	roles map[string]*storage.Role
	err   error
}

func (f *fakeStore) GetRole(ctx context.Context, orgID, roleName string) (*storage.Role, error) {
	if f.err != nil {
		return nil, f.err
	}
	if role, ok := f.roles[orgID+"/"+roleName]; ok {
		return role, nil
	}
	return nil, storage.ErrRoleNotFound(orgID, roleName)
}

func TestHashAPIKeyIsDeterministicSHA256(t *testing.T) {
	a := HashAPIKey("secret-key")
	b := HashAPIKey("secret-key")
	if a != b {
		t.Fatal("expected deterministic hash")
	}
	if a == HashAPIKey("different-key") {
		t.Fatal("expected distinct hashes for distinct keys")
	}
}

func TestRequireOrgRejectsNilOrEmptyOrg(t *testing.T) {
	if err := RequireOrg(nil); err == nil {
		t.Fatal("expected error for nil principal")
	}
	if err := RequireOrg(&Principal{}); err == nil {
		t.Fatal("expected error for principal without organization")
	}
	if err := RequireOrg(&Principal{OrganizationID: "org-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPermissionResolverFallsBackOnLookupFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	store := &fakeStore{err: errLookup{}}
	var fallbackCount int
	resolver := NewPermissionResolver(store, logger, func() { fallbackCount++ })

	perms := resolver.Resolve(context.Background(), "org-1", "member")
	if !HasPermission(perms, storage.PermViewOrders) {
		t.Fatal("expected fallback member permissions to include view_orders")
	}
	if HasPermission(perms, storage.PermManageBilling) {
		t.Fatal("fallback permissions must not grant manage_billing")
	}
	if fallbackCount != 1 {
		t.Fatalf("expected fallback callback invoked once, got %d", fallbackCount)
	}
}

type errLookup struct{}

func (errLookup) Error() string { return "lookup failed" }
