package telemetry

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/hearth-automation/hearth-core/internal/schedule"
)

// RecordAction writes a fired schedule action as a telemetry point.
//
// Satisfies the scheduler's action sink interface. The write is
// non-blocking; the context is unused because batching happens in the
// background.
func (c *Client) RecordAction(_ context.Context, action schedule.Action) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"schedule_actions",
		map[string]string{
			"schedule": action.Schedule,
			"actor":    action.Actor.String(),
		},
		map[string]interface{}{
			"trigger": action.Trigger,
		},
		action.At,
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceState records a device's on/off state and power draw.
//
// Power charts and "how long was the heater on" queries run off this
// measurement.
func (c *Client) WriteDeviceState(device string, on bool, powerWatts float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	onValue := 0
	if on {
		onValue = 1
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device": device,
		},
		map[string]interface{}{
			"on":          onValue,
			"power_watts": powerWatts,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
