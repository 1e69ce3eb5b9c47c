package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/openfleet/fleetd/core"
	"github.com/openfleet/fleetd/ports"
)

// Oracle is a configured backend data-source/routing target.
type Oracle struct {
	OracleID       string `json:"oracleId"`
	Name           string `json:"name"`
	UsePendingMode bool   `json:"usePendingMode"`
}

// Tenant is an organizational scope under which fleet data is partitioned.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

const (
	oracleStoreKey  = "directory:oracle"
	tenantStoreKey  = "directory:tenant"
	tenantsStoreKey = "directory:tenants"
)

// Directory manages oracle and tenant selection. Selections are applied
// to the API client and persisted through the store so they survive
// restarts.
type Directory struct {
	api   ports.APIClient
	store ports.Store
	log   *zap.Logger

	mu       sync.RWMutex
	current  *Oracle
	oracles  []Oracle
	tenants  []Tenant
	selected *Tenant
}

func NewDirectory(api ports.APIClient, store ports.Store, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{api: api, store: store, log: logger}
}

// Load restores persisted oracle/tenant selections and applies them to
// the API client.
func (d *Directory) Load(ctx context.Context) {
	if raw, err := d.store.Get(ctx, oracleStoreKey); err == nil {
		var oracle Oracle
		if json.Unmarshal([]byte(raw), &oracle) == nil && oracle.OracleID != "" {
			d.mu.Lock()
			d.current = &oracle
			d.mu.Unlock()
			d.api.SetOracle(oracle.OracleID)
		}
	}
	if raw, err := d.store.Get(ctx, tenantsStoreKey); err == nil {
		var tenants []Tenant
		if json.Unmarshal([]byte(raw), &tenants) == nil {
			d.mu.Lock()
			d.tenants = tenants
			d.mu.Unlock()
		}
	}
	if raw, err := d.store.Get(ctx, tenantStoreKey); err == nil {
		var tenant Tenant
		if json.Unmarshal([]byte(raw), &tenant) == nil && tenant.ID != "" {
			d.mu.Lock()
			d.selected = &tenant
			d.mu.Unlock()
			d.api.SetTenant(tenant.ID)
		}
	}
}

// FetchOracles lists the available oracles from the public endpoint.
func (d *Directory) FetchOracles(ctx context.Context) ([]Oracle, error) {
	var oracles []Oracle
	if err := d.api.Call(ctx, http.MethodGet, "/public/oracles", nil, &oracles, ports.CallOptions{}); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.oracles = oracles
	d.mu.Unlock()
	return oracles, nil
}

// SelectOracle routes subsequent oracle-scoped calls through the given
// oracle and verifies the operator has access to it.
func (d *Directory) SelectOracle(ctx context.Context, oracleID string) error {
	if oracleID == "" {
		return core.ErrNoOracle
	}

	oracle := Oracle{OracleID: oracleID, Name: oracleID}
	d.mu.RLock()
	for _, o := range d.oracles {
		if o.OracleID == oracleID {
			oracle = o
			break
		}
	}
	d.mu.RUnlock()

	d.api.SetOracle(oracle.OracleID)
	d.mu.Lock()
	d.current = &oracle
	d.mu.Unlock()
	d.persist(ctx, oracleStoreKey, oracle)

	return d.VerifyAccess(ctx)
}

// VerifyAccess checks the operator's permission on the selected oracle.
func (d *Directory) VerifyAccess(ctx context.Context) error {
	return d.api.Call(ctx, http.MethodGet, "/permissions", nil, nil, authOracle)
}

// Oracle returns the current oracle, if any.
func (d *Directory) Oracle() *Oracle {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// FetchTenants lists the tenants visible under the selected oracle.
func (d *Directory) FetchTenants(ctx context.Context) ([]Tenant, error) {
	var tenants []Tenant
	if err := d.api.Call(ctx, http.MethodGet, "/tenants", nil, &tenants, authOracle); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.tenants = tenants
	d.mu.Unlock()
	d.persist(ctx, tenantsStoreKey, tenants)
	return tenants, nil
}

// SelectTenant scopes subsequent tenant-scoped calls to the tenant.
func (d *Directory) SelectTenant(ctx context.Context, tenantID string) {
	tenant := Tenant{ID: tenantID, Name: tenantID}
	d.mu.RLock()
	for _, t := range d.tenants {
		if t.ID == tenantID {
			tenant = t
			break
		}
	}
	d.mu.RUnlock()

	d.api.SetTenant(tenant.ID)
	d.mu.Lock()
	d.selected = &tenant
	d.mu.Unlock()
	d.persist(ctx, tenantStoreKey, tenant)
}

// SelectedTenant returns the current tenant, if any.
func (d *Directory) SelectedTenant() *Tenant {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected
}

func (d *Directory) persist(ctx context.Context, key string, value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := d.store.Set(ctx, key, string(encoded), 0); err != nil {
		d.log.Warn("failed to persist directory state", zap.String("key", key), zap.Error(err))
	}
}
