// Package sensors exposes measurement sources to the daemon.
package sensors

import "time"

// Field names used in SensorData.Fields.
const (
	FieldTemperature = "temperature" // °C
	FieldPressure    = "pressure"    // Pa
	FieldHumidity    = "humidity"    // %RH
	FieldAltitude    = "altitude"    // m
)

type SensorData struct {
	SensorType string             `json:"sensor_type"`
	Fields     map[string]float64 `json:"fields"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Sensor interface that all sensors must implement
type Sensor interface {
	Read() (*SensorData, error)
	Name() string
	Close() error
}
