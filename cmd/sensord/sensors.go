package main

import (
	"tickwise/internal/sensor"
)

// registeredSensors returns the sensor definitions this daemon evaluates.
// Sensors are compiled in: deployments add their definitions here (or in
// sibling files in this package) using sensor.NewDefinition,
// sensor.NewAssetSensor, sensor.NewMultiAssetSensor or
// sensor.NewPartitionedAssetSensor. Cron-only schedules need no code and
// are registered through the SCHEDULES environment variable instead.
func registeredSensors() []*sensor.Definition {
	var defs []*sensor.Definition
	return defs
}
