package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jgoulah/ecomane/pkg/models"
)

type staticSource struct {
	poll *models.Poll
}

func (s staticSource) Last() *models.Poll { return s.poll }

func TestCollector(t *testing.T) {
	poll := &models.Poll{
		ID: "a",
		Snapshot: models.Snapshot{
			"num_L1":                "12.5",
			"num_L4":                "-",
			"em_circuit_00":         "1,234",
			"em_circuit_00_place":   "リビング",
			"em_circuit_00_circuit": "エアコン",
			"em_circuit_01":         "",
			"em_circuit_01_place":   "書斎",
		},
		CircuitCount: 2,
		FinishedAt:   time.Unix(1750000000, 0),
	}
	c := NewCollector(staticSource{poll}, zap.NewNop())

	expected := `
# HELP ecomane_circuit_power_watts Current power draw of a breaker circuit in Watts.
# TYPE ecomane_circuit_power_watts gauge
ecomane_circuit_power_watts{circuit="エアコン",entity="living_air_conditioner",index="0",place="リビング"} 1234
# HELP ecomane_circuits Number of circuits discovered by the last poll.
# TYPE ecomane_circuits gauge
ecomane_circuits 2
# HELP ecomane_last_success_timestamp_seconds Unix time the last successful poll finished.
# TYPE ecomane_last_success_timestamp_seconds gauge
ecomane_last_success_timestamp_seconds 1.75e+09
# HELP ecomane_usage Today's whole-house usage as reported by the device.
# TYPE ecomane_usage gauge
ecomane_usage{metric="electricity_purchased",unit="kWh"} 12.5
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestCollector_NoPoll(t *testing.T) {
	c := NewCollector(staticSource{}, zap.NewNop())
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestCollector_Registers(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(staticSource{}, zap.NewNop())))
}
