package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVINValidate(t *testing.T) {
	tests := []struct {
		name string
		vin  VIN
		ok   bool
	}{
		{"valid 17 chars", "1HGCM82633A004352", true},
		{"too short", "1HGCM82633A00435", false},
		{"too long", "1HGCM82633A0043521", false},
		{"empty", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.vin.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidVIN)
			}
		})
	}
}

func TestJoinVINs(t *testing.T) {
	assert.Equal(t, "", JoinVINs(nil))
	assert.Equal(t, "AAA", JoinVINs([]VIN{"AAA"}))
	assert.Equal(t, "AAA,BBB,CCC", JoinVINs([]VIN{"AAA", "BBB", "CCC"}))
}

func TestStatusTableLastWriteWins(t *testing.T) {
	table := NewStatusTable()
	table.Add("VIN1", StatusUnknown, "")
	table.Add("VIN2", StatusUnknown, "")

	table.Update([]VehicleStatus{
		{VIN: "VIN1", Status: "Pending", Details: "waiting"},
	})
	table.Update([]VehicleStatus{
		{VIN: "VIN1", Status: StatusSuccess, Details: "done"},
	})

	statuses := table.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, StatusSuccess, statuses[0].Status)
	assert.Equal(t, "done", statuses[0].Details)
}

// A vehicle missing from a polling response keeps its previous entry
// instead of being reset.
func TestStatusTableKeepsUnreportedVINs(t *testing.T) {
	table := NewStatusTable()
	table.Add("VIN1", StatusUnknown, "")
	table.Add("VIN2", StatusUnknown, "")

	table.Update([]VehicleStatus{
		{VIN: "VIN1", Status: "Pending", Details: "first pass"},
		{VIN: "VIN2", Status: "Pending", Details: "first pass"},
	})
	// Second response omits VIN2 entirely.
	table.Update([]VehicleStatus{
		{VIN: "VIN1", Status: StatusSuccess, Details: "second pass"},
	})

	statuses := table.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, VIN("VIN2"), statuses[1].VIN)
	assert.Equal(t, "Pending", statuses[1].Status)
	assert.Equal(t, "first pass", statuses[1].Details)
}

func TestStatusTableUpdateIdempotent(t *testing.T) {
	table := NewStatusTable()
	response := []VehicleStatus{
		{VIN: "VIN1", Status: StatusSuccess},
		{VIN: "VIN2", Status: "Failed", Details: "bad definition"},
	}
	table.Update(response)
	before := table.Statuses()
	table.Update(response)
	assert.Equal(t, before, table.Statuses())
}

func TestStatusTableInsertionOrder(t *testing.T) {
	table := NewStatusTable()
	table.Add("C", StatusUnknown, "")
	table.Add("A", StatusUnknown, "")
	table.Update([]VehicleStatus{{VIN: "B", Status: "Pending"}})

	var vins []VIN
	for _, s := range table.Statuses() {
		vins = append(vins, s.VIN)
	}
	assert.Equal(t, []VIN{"C", "A", "B"}, vins)
}

func TestAllSuccess(t *testing.T) {
	assert.True(t, AllSuccess(nil))
	assert.True(t, AllSuccess([]VehicleStatus{
		{VIN: "A", Status: StatusSuccess},
		{VIN: "B", Status: StatusSuccess},
	}))
	assert.False(t, AllSuccess([]VehicleStatus{
		{VIN: "A", Status: StatusSuccess},
		{VIN: "B", Status: "Pending"},
	}))
}

func TestMintDataHasTypedData(t *testing.T) {
	assert.False(t, MintData{}.HasTypedData())
	assert.False(t, MintData{TypedData: json.RawMessage("null")}.HasTypedData())
	assert.True(t, MintData{TypedData: json.RawMessage(`{"types":{}}`)}.HasTypedData())
}
