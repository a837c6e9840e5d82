// Package telemetry writes schedule actions and device state samples
// to InfluxDB.
//
// Telemetry is optional: when disabled in configuration, Connect
// returns ErrDisabled and the daemon runs without it. Writes are
// batched and non-blocking, so a slow or absent InfluxDB never stalls
// the scheduler loop.
//
// Two measurements are written:
//
//   - schedule_actions: one point per fired actuation, tagged by
//     schedule and actor, recorded through the scheduler sink.
//   - device_state: periodic on/off and power samples per device,
//     recorded by the Recorder loop.
package telemetry
