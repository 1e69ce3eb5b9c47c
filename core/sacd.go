package core

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Permission is one grantable capability in a sharing/consent grant.
type Permission int

const (
	PermissionNonLocationTelemetry Permission = iota + 1
	PermissionCommands
	PermissionCurrentLocation
	PermissionAllTimeLocation
	PermissionCredentials
	PermissionStreams
	PermissionRawData
	PermissionApproximateLocation
)

var permissionNames = map[Permission]string{
	PermissionNonLocationTelemetry: "NONLOCATION_TELEMETRY",
	PermissionCommands:             "COMMANDS",
	PermissionCurrentLocation:      "CURRENT_LOCATION",
	PermissionAllTimeLocation:      "ALLTIME_LOCATION",
	PermissionCredentials:          "CREDENTIALS",
	PermissionStreams:              "STREAMS",
	PermissionRawData:              "RAW_DATA",
	PermissionApproximateLocation:  "APPROXIMATE_LOCATION",
}

// permissionBitOrder is the on-chain layout, most significant pair first.
var permissionBitOrder = []Permission{
	PermissionApproximateLocation,
	PermissionRawData,
	PermissionStreams,
	PermissionCredentials,
	PermissionAllTimeLocation,
	PermissionCurrentLocation,
	PermissionCommands,
	PermissionNonLocationTelemetry,
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PERMISSION(%d)", int(p))
}

// ParsePermission resolves a permission by its wire name.
func ParsePermission(name string) (Permission, error) {
	for p, n := range permissionNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPermission, name)
}

// PermissionValue encodes a permission set as the contract's bitmask:
// each permission occupies a two-bit pair ("11" granted, "00" not),
// laid out in permissionBitOrder, followed by a reserved trailing pair.
func PermissionValue(granted map[Permission]bool) *big.Int {
	bits := make([]byte, 0, 2*len(permissionBitOrder)+2)
	for _, p := range permissionBitOrder {
		if granted[p] {
			bits = append(bits, '1', '1')
		} else {
			bits = append(bits, '0', '0')
		}
	}
	bits = append(bits, '0', '0')

	v, _ := new(big.Int).SetString(string(bits), 2)
	return v
}

// DefaultPermissions is the grant set preselected for new sharing grants.
func DefaultPermissions() map[Permission]bool {
	return map[Permission]bool{
		PermissionNonLocationTelemetry: true,
		PermissionCommands:             true,
		PermissionCurrentLocation:      true,
		PermissionAllTimeLocation:      true,
		PermissionCredentials:          true,
		PermissionStreams:              true,
		PermissionRawData:              false,
		PermissionApproximateLocation:  false,
	}
}

// SacdGrant authorizes a grantee to access vehicle data. It is built
// once per onboarding job and immutable once submitted.
type SacdGrant struct {
	Grantee     common.Address `json:"grantee"`
	Permissions *big.Int       `json:"permissions"`
	Expiration  int64          `json:"expiration"`
	Source      string         `json:"source"`
}

// NewSacdGrant builds a grant for the given permission set, expiring at
// the given instant.
func NewSacdGrant(grantee common.Address, granted map[Permission]bool, expiration time.Time, source string) SacdGrant {
	return SacdGrant{
		Grantee:     grantee,
		Permissions: PermissionValue(granted),
		Expiration:  expiration.Unix(),
		Source:      source,
	}
}
