package models

// UsageMetric describes one whole-house usage value on the "today's usage" page
type UsageMetric struct {
	Key         string `json:"key"`          // id of the div holding the value
	Name        string `json:"name"`         // identifier used for entity naming
	Description string `json:"description"`  // human readable label
	Unit        string `json:"unit"`         // unit of measurement
	DeviceClass string `json:"device_class"` // Home Assistant device class
	StateClass  string `json:"state_class"`  // Home Assistant state class
}

const (
	UnitKilowattHour = "kWh"
	UnitCubicMeters  = "m³"
	UnitKilograms    = "kg"
	UnitWatt         = "W"

	StateClassTotalIncreasing = "total_increasing"
	StateClassMeasurement     = "measurement"
)

var usageMetrics = []UsageMetric{
	{Key: "num_L1", Name: "electricity_purchased", Description: "Electricity purchased 購入電気量", Unit: UnitKilowattHour, DeviceClass: "energy", StateClass: StateClassTotalIncreasing},
	{Key: "num_L2", Name: "solar_power_energy", Description: "Solar Power Energy 太陽光発電量", Unit: UnitKilowattHour, DeviceClass: "energy", StateClass: StateClassTotalIncreasing},
	{Key: "num_L4", Name: "gas_consumption", Description: "Gas Consumption ガス消費量", Unit: UnitCubicMeters, DeviceClass: "gas", StateClass: StateClassTotalIncreasing},
	{Key: "num_L5", Name: "water_consumption", Description: "Water Consumption 水消費量", Unit: UnitCubicMeters, DeviceClass: "water", StateClass: StateClassTotalIncreasing},
	{Key: "num_R1", Name: "co2_emissions", Description: "CO2 Emissions CO2排出量", Unit: UnitKilograms, DeviceClass: "weight", StateClass: StateClassTotalIncreasing},
	{Key: "num_R2", Name: "co2_reduction", Description: "CO2 Reduction CO2削減量", Unit: UnitKilograms, DeviceClass: "weight", StateClass: StateClassTotalIncreasing},
	{Key: "num_R3", Name: "electricity_sales", Description: "Electricity sales 売電量", Unit: UnitKilowattHour, DeviceClass: "energy", StateClass: StateClassTotalIncreasing},
}

// UsageMetrics returns the static list of usage metric descriptors
func UsageMetrics() []UsageMetric {
	out := make([]UsageMetric, len(usageMetrics))
	copy(out, usageMetrics)
	return out
}
