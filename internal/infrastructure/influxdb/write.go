package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading records a single sensor reading.
//
// The write is non-blocking; points are batched and sent
// asynchronously. Room and unit are tags so the dashboard can group
// and filter cheaply.
func (c *Client) WriteSensorReading(room, measurement string, value float64, unit string, at time.Time) {
	tags := map[string]string{
		"room": room,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	c.WritePoint(measurement, tags, map[string]interface{}{"value": value}, at)
}

// WritePoint writes a point with full control over tags, fields and
// timestamp. A zero timestamp means now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time) {
	if !c.IsConnected() {
		return
	}

	if at.IsZero() {
		at = time.Now()
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, at))
}
