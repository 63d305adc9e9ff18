// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package tmtc

// Beacon IDs
const (
	BeaconIDLST                 = 0x01
	BeaconIDEPS                 = 0x02
	BeaconIDHighRateUpperSensor = 0x03
	BeaconIDLowRateUpperSensor  = 0x04
	BeaconIDLowerSensor         = 0x05
)

// Registration binds a beacon layout to the fields logged on every decode
type Registration struct {
	Layout    Layout
	LogFields []string
}

// registry lists the built-in beacons in dispatch order
var registry = []Registration{
	{
		Layout: Layout{
			Name: "lst",
			ID:   BeaconIDLST,
			Fields: []Field{
				{Name: "uptime", Type: U32},
				{Name: "rssi", Type: I8},
				{Name: "lqi", Type: U8},
				{Name: "packets_sent", Type: U32},
				{Name: "packets_good", Type: U32},
				{Name: "packets_rejected_checksum", Type: U32},
				{Name: "packets_rejected_other", Type: U32},
			},
		},
		LogFields: []string{"packets_sent"},
	},
	{
		Layout: Layout{
			Name: "eps",
			ID:   BeaconIDEPS,
			Fields: []Field{
				{Name: "bat1_voltage", Type: U16},
				{Name: "bat2_voltage", Type: U16},
				{Name: "bat1_temperature", Type: I16},
				{Name: "bat2_temperature", Type: I16},
				{Name: "solar_current", Type: U16},
				{Name: "system_current", Type: U16},
				{Name: "state", Type: U8},
			},
		},
		LogFields: []string{"bat1_voltage"},
	},
	{
		Layout: Layout{
			Name: "high_rate_upper_sensor",
			ID:   BeaconIDHighRateUpperSensor,
			Fields: []Field{
				{Name: "acceleration", Type: F32, Count: 3},
				{Name: "angular_rate", Type: F32, Count: 3},
				{Name: "pressure", Type: F32},
				{Name: "altitude", Type: F32},
			},
		},
	},
	{
		Layout: Layout{
			Name: "low_rate_upper_sensor",
			ID:   BeaconIDLowRateUpperSensor,
			Fields: []Field{
				{Name: "gps_ecef", Type: I32, Count: 3},
				{Name: "gps_satellites", Type: U8},
				{Name: "temperature", Type: F32},
				{Name: "humidity", Type: F32},
			},
		},
		LogFields: []string{"gps_ecef"},
	},
	{
		Layout: Layout{
			Name: "lower_sensor",
			ID:   BeaconIDLowerSensor,
			Fields: []Field{
				{Name: "thermocouples", Type: F32, Count: 4},
				{Name: "tank_pressure", Type: F32},
				{Name: "chamber_pressure", Type: F32},
				{Name: "mass_flow", Type: F32},
			},
		},
	},
}

// Registrations returns the built-in beacons in dispatch order
func Registrations() []Registration {
	out := make([]Registration, len(registry))
	copy(out, registry)
	return out
}

// Names returns the built-in beacon names in dispatch order
func Names() []string {
	names := make([]string, len(registry))
	for i, r := range registry {
		names[i] = r.Layout.Name
	}
	return names
}

// Lookup finds a built-in beacon by name
func Lookup(name string) (Registration, bool) {
	for _, r := range registry {
		if r.Layout.Name == name {
			return r, true
		}
	}
	return Registration{}, false
}
