package core

import (
	"encoding/json"
	"strings"
	"sync"
)

// VINLength is the fixed length of a Vehicle Identification Number.
const VINLength = 17

// Terminal and default vehicle statuses reported by the backend.
// Any value other than StatusSuccess means the vehicle is either
// pending or failed; the two are only told apart by attempt exhaustion.
const (
	StatusSuccess = "Success"
	StatusUnknown = "Unknown"
)

// VIN is a Vehicle Identification Number.
type VIN string

// Validate checks that the VIN has the mandated length. It is called
// before any network round trip.
func (v VIN) Validate() error {
	if len(v) != VINLength {
		return ErrInvalidVIN
	}
	return nil
}

// JoinVINs renders a VIN batch as the comma-separated form used in
// status query strings.
func JoinVINs(vins []VIN) string {
	parts := make([]string, len(vins))
	for i, v := range vins {
		parts[i] = string(v)
	}
	return strings.Join(parts, ",")
}

// VehicleStatus is one vehicle's entry in a polling response.
type VehicleStatus struct {
	VIN     VIN    `json:"vin"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// MintData is a per-VIN minting payload. TypedData is absent for
// oracle-owned vehicles, which are submitted unsigned.
type MintData struct {
	VIN       VIN             `json:"vin"`
	TypedData json.RawMessage `json:"typedData,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// HasTypedData reports whether a typed-data payload is present. A JSON
// null counts as absent.
func (d MintData) HasTypedData() bool {
	return len(d.TypedData) > 0 && string(d.TypedData) != "null"
}

// UserOperationData carries an account-abstraction user operation for a
// single vehicle. Signature stays empty until the signing phase completes.
type UserOperationData struct {
	VIN           VIN             `json:"vin"`
	IMEI          string          `json:"imei"`
	UserOperation json.RawMessage `json:"userOperation"`
	Hash          string          `json:"hash"`
	Signature     string          `json:"signature,omitempty"`
}

// StatusTable tracks per-vehicle statuses for one workflow job. Entries
// are keyed by VIN with last-write-wins semantics; a vehicle missing
// from a polling response keeps its previous entry and a vehicle that
// never appears stays at StatusUnknown.
type StatusTable struct {
	mu    sync.RWMutex
	order []VIN
	byVIN map[VIN]VehicleStatus
}

func NewStatusTable() *StatusTable {
	return &StatusTable{byVIN: make(map[VIN]VehicleStatus)}
}

// Add seeds an entry for a vehicle at job start.
func (t *StatusTable) Add(vin VIN, status, details string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byVIN[vin]; !ok {
		t.order = append(t.order, vin)
	}
	t.byVIN[vin] = VehicleStatus{VIN: vin, Status: status, Details: details}
}

// Update folds a polling response into the table. Only vehicles named in
// the response are rewritten.
func (t *StatusTable) Update(statuses []VehicleStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range statuses {
		if _, ok := t.byVIN[s.VIN]; !ok {
			t.order = append(t.order, s.VIN)
		}
		t.byVIN[s.VIN] = s
	}
}

// Statuses returns the entries in insertion order.
func (t *StatusTable) Statuses() []VehicleStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]VehicleStatus, 0, len(t.order))
	for _, vin := range t.order {
		out = append(out, t.byVIN[vin])
	}
	return out
}

// AllSuccess reports whether every status in a polling response is
// terminal-success. The predicate runs over the response, not the table,
// so a vehicle the backend never reports cannot hold the batch open.
func AllSuccess(statuses []VehicleStatus) bool {
	for _, s := range statuses {
		if s.Status != StatusSuccess {
			return false
		}
	}
	return true
}
