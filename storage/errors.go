package storage

import "chatinvoice/apperror"

// ErrOrderNotFound is returned when an order lookup finds no row for the
// given organization (whether truly absent or owned by a different tenant
// are indistinguishable to the caller).
func ErrOrderNotFound(orderID string) error {
	return apperror.NotFoundf("order %s not found", orderID)
}

// ErrOrganizationNotFound is returned when an organization row is missing.
func ErrOrganizationNotFound(orgID string) error {
	return apperror.NotFoundf("organization %s not found", orgID)
}

// ErrAPIKeyNotFound is returned when no active API key matches a hash.
var ErrAPIKeyNotFound = apperror.New(apperror.Unauthenticated, "api key not recognized")

// ErrRoleNotFound is returned when a role name has no definition for an
// organization; callers fall back to a hardcoded permission set rather than
// propagating this.
func ErrRoleNotFound(org, role string) error {
	return apperror.NotFoundf("role %s not found for organization %s", role, org)
}
