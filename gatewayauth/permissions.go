package gatewayauth

import (
	"context"
	"log/slog"

	"chatinvoice/storage"
)

// fallbackPermissions is the hardcoded permission set used when a role's
// definition cannot be resolved from storage. "owner" keeps every
// permission; "member" gets only view_orders, edit_orders, and
// view_analytics, so it excludes view_pii, manage_users, manage_billing,
// and manage_api_keys. Any other role name resolves to no permissions.
var fallbackPermissions = map[string][]storage.Permission{
	"owner":  {storage.PermViewOrders, storage.PermEditOrders, storage.PermDeleteOrders, storage.PermViewPII, storage.PermManageUsers, storage.PermManageBilling, storage.PermManageAPIKeys, storage.PermViewAnalytics},
	"member": {storage.PermViewOrders, storage.PermEditOrders, storage.PermViewAnalytics},
}

// PermissionResolver resolves a role's permission set, falling back to the
// hardcoded per-role set (and logging the fallback) when storage lookup
// fails, rather than failing the request.
type PermissionResolver struct {
	store    storage.Store
	logger   *slog.Logger
	onFallback func()
}

// NewPermissionResolver constructs a PermissionResolver. onFallback, if
// non-nil, is invoked every time the hardcoded fallback set is used, so
// callers can increment an observability counter.
func NewPermissionResolver(store storage.Store, logger *slog.Logger, onFallback func()) *PermissionResolver {
	return &PermissionResolver{store: store, logger: logger, onFallback: onFallback}
}

// Resolve returns the permission set for a role within an organization.
func (r *PermissionResolver) Resolve(ctx context.Context, orgID, roleName string) []storage.Permission {
	role, err := r.store.GetRole(ctx, orgID, roleName)
	if err != nil {
		r.logger.WarnContext(ctx, "permission resolution fell back to hardcoded set",
			"organizationId", orgID, "role", roleName, "error", err)
		if r.onFallback != nil {
			r.onFallback()
		}
		if perms, ok := fallbackPermissions[roleName]; ok {
			return perms
		}
		return nil
	}
	return role.Permissions
}

// HasPermission reports whether perms contains want.
func HasPermission(perms []storage.Permission, want storage.Permission) bool {
	for _, p := range perms {
		if p == want {
			return true
		}
	}
	return false
}
