package ports

import "context"

// CallOptions scope a backend call.
type CallOptions struct {
	// Auth adds the bearer Authorization header.
	Auth bool
	// Oracle prefixes the path with the selected oracle's segment.
	Oracle bool
	// Tenant adds the tenant-scoping header.
	Tenant bool
}

// APIClient issues requests to the fleet backend. Non-2xx responses and
// transport failures come back as *core.APIError; on success the response
// body is decoded into out when out is non-nil.
type APIClient interface {
	Call(ctx context.Context, method, path string, body, out any, opts CallOptions) error

	// SetOracle selects the oracle used for oracle-scoped calls.
	SetOracle(oracleID string)

	// SetTenant selects the tenant used for tenant-scoped calls.
	SetTenant(tenantID string)
}
