package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openfleet/fleetd/ports"
)

// VehicleDefinition identifies a vehicle's make/model/year definition.
type VehicleDefinition struct {
	ID    string `json:"id"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

// VehicleSacdNode is one active sharing grant on a vehicle.
type VehicleSacdNode struct {
	Grantee     string `json:"grantee"`
	Permissions string `json:"permissions"`
}

// VehicleEarnings reports a vehicle's accrued token earnings.
type VehicleEarnings struct {
	TotalTokens decimal.Decimal `json:"totalTokens"`
}

// VehicleIdentity is the on-chain identity record for a minted vehicle.
type VehicleIdentity struct {
	ID         string             `json:"id"`
	Owner      string             `json:"owner"`
	MintedAt   string             `json:"mintedAt"`
	Definition *VehicleDefinition `json:"definition"`
	Sacds      struct {
		Nodes []VehicleSacdNode `json:"nodes"`
	} `json:"sacds"`
	Earnings        *VehicleEarnings `json:"earnings"`
	SyntheticDevice *struct {
		Connection *struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"connection"`
	} `json:"syntheticDevice"`
}

type vehicleIdentityResult struct {
	Vehicle *VehicleIdentity `json:"vehicle"`
}

// Identity looks up on-chain vehicle identity records.
type Identity struct {
	api ports.APIClient
	log *zap.Logger
}

func NewIdentity(api ports.APIClient, logger *zap.Logger) *Identity {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identity{api: api, log: logger}
}

// Vehicle fetches the identity record for a vehicle token.
func (i *Identity) Vehicle(ctx context.Context, tokenID string) (*VehicleIdentity, error) {
	var result vehicleIdentityResult
	if err := i.api.Call(ctx, http.MethodGet, "/identity/vehicle/"+tokenID, nil, &result, ports.CallOptions{}); err != nil {
		return nil, err
	}
	if result.Vehicle == nil {
		return nil, fmt.Errorf("no identity record for vehicle token %s", tokenID)
	}
	return result.Vehicle, nil
}

// OwnerAddress returns the owner wallet for a vehicle token.
func (i *Identity) OwnerAddress(ctx context.Context, tokenID string) (string, error) {
	identity, err := i.Vehicle(ctx, tokenID)
	if err != nil {
		return "", err
	}
	return identity.Owner, nil
}

// TotalEarnings returns the vehicle's accrued earnings, zero when the
// identity record reports none.
func (i *Identity) TotalEarnings(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	identity, err := i.Vehicle(ctx, tokenID)
	if err != nil {
		return decimal.Zero, err
	}
	if identity.Earnings == nil {
		return decimal.Zero, nil
	}
	return identity.Earnings.TotalTokens, nil
}
