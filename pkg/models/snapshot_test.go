package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitKeys(t *testing.T) {
	assert.Equal(t, "em_circuit_00", CircuitKey(0))
	assert.Equal(t, "em_circuit_07_place", PlaceKey(7))
	assert.Equal(t, "em_circuit_12_circuit", CircuitLabelKey(12))
	assert.Equal(t, "em_circuit_123", CircuitKey(123))
}

func TestSnapshotCircuits(t *testing.T) {
	snap := Snapshot{
		"em_circuit_00":         "120",
		"em_circuit_00_place":   "リビング",
		"em_circuit_00_circuit": "エアコン",
		"em_circuit_01":         "5",
		"num_L1":                "3.2",
	}

	circuits := snap.Circuits(2)
	require.Len(t, circuits, 2)

	assert.Equal(t, "リビング エアコン", circuits[0].Name())
	assert.Equal(t, "living_air_conditioner", circuits[0].EntityName())
	w, ok := circuits[0].Watts()
	require.True(t, ok)
	assert.Equal(t, "120", w.String())

	// circuit 1 has no labels
	assert.Equal(t, "", circuits[1].Place)
	assert.Equal(t, " ", circuits[1].Name())
	assert.Equal(t, "em_circuit_01", circuits[1].Key)
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"1234", "1234", true},
		{"1,234.5", "1234.5", true},
		{" 0 ", "0", true},
		{"", "0", false},
		{"---", "0", false},
	}
	for _, tt := range tests {
		d, ok := ParseValue(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, d.String(), tt.raw)
	}
}

func TestSnapshotClone(t *testing.T) {
	snap := Snapshot{"a": "1"}
	c := snap.Clone()
	c["a"] = "2"
	assert.Equal(t, "1", snap["a"])

	var nilSnap Snapshot
	assert.NotNil(t, nilSnap.Clone())
}

func TestUsageMetricsIsCopy(t *testing.T) {
	m := UsageMetrics()
	require.Len(t, m, 7)
	m[0].Key = "changed"
	assert.Equal(t, "num_L1", UsageMetrics()[0].Key)
}
