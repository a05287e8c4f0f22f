package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"circuit hit", "リビング エアコン", "living_air_conditioner"},
		{"usage metric hit", "購入電気量", "electricity_purchased"},
		{"empty place keeps leading space", " 太陽光", "solar_panel"},
		{"miss returns input", "Unknown Label", "Unknown Label"},
		{"trimmed variant is a miss", "太陽光", "太陽光"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestTableIsCopy(t *testing.T) {
	tbl := Table()
	tbl["リビング エアコン"] = "changed"

	assert.Equal(t, "living_air_conditioner", Normalize("リビング エアコン"))
	assert.Len(t, Table(), len(table))
}
