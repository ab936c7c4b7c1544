package main

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/Uranury/bme280d/sensors"
)

// influxWriter stores readings in InfluxDB through the non-blocking write API.
type influxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

func newInfluxWriter(url, token, org, bucket string) *influxWriter {
	client := influxdb2.NewClient(url, token)
	w := &influxWriter{client: client, writeAPI: client.WriteAPI(org, bucket)}
	go func() {
		for err := range w.writeAPI.Errors() {
			lg.Errorf("InfluxDB write: %v", err)
		}
	}()
	lg.Infof("Writing readings to %s bucket %s", url, bucket)
	return w
}

func newPoint(data *sensors.SensorData) *write.Point {
	p := influxdb2.NewPointWithMeasurement("sensor_data").
		AddTag("sensor", data.SensorType).
		SetTime(data.Timestamp)

	// Add all fields dynamically
	for key, value := range data.Fields {
		p.AddField(key, value)
	}
	return p
}

func (w *influxWriter) Publish(data *sensors.SensorData) {
	w.writeAPI.WritePoint(newPoint(data))
}

// Close flushes pending points and closes the client.
func (w *influxWriter) Close() {
	w.writeAPI.Flush()
	w.client.Close()
}
