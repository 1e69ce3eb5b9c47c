package service

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/openfleet/fleetd/ports"
)

// FleetGroup is a named grouping of vehicles within a tenant.
type FleetGroup struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	VehicleCount int    `json:"vehicle_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Fleet exposes fleet-group queries.
type Fleet struct {
	api ports.APIClient
	log *zap.Logger
}

func NewFleet(api ports.APIClient, logger *zap.Logger) *Fleet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fleet{api: api, log: logger}
}

// Groups lists the fleet groups for the selected tenant.
func (f *Fleet) Groups(ctx context.Context) ([]FleetGroup, error) {
	var groups []FleetGroup
	opts := ports.CallOptions{Auth: true, Oracle: true, Tenant: true}
	if err := f.api.Call(ctx, http.MethodGet, "/fleet/groups", nil, &groups, opts); err != nil {
		return nil, err
	}
	return groups, nil
}
