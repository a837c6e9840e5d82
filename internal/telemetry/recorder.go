package telemetry

import (
	"context"
	"time"

	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/schedule"
)

const defaultRecordInterval = time.Minute

// Recorder periodically samples the aggregated device state and writes
// a device_state point per device.
type Recorder struct {
	client   *Client
	source   schedule.StateSource
	interval time.Duration
	logger   *logging.Logger
}

// NewRecorder creates a state recorder. A zero interval defaults to
// one minute.
func NewRecorder(client *Client, source schedule.StateSource, interval time.Duration, logger *logging.Logger) *Recorder {
	if interval <= 0 {
		interval = defaultRecordInterval
	}
	return &Recorder{
		client:   client,
		source:   source,
		interval: interval,
		logger:   logger.With("component", "telemetry"),
	}
}

// Run samples device state on the recorder's interval until the
// context is cancelled. Sampling failures are logged and skipped.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sample(ctx)
		}
	}
}

func (r *Recorder) sample(ctx context.Context) {
	snap, err := r.source.AggregateState(ctx)
	if err != nil {
		r.logger.Warn("state sample failed", "error", err)
		return
	}

	now := time.Now()
	for name, dev := range snap {
		power, _ := dev.Power()
		r.client.WriteDeviceState(name, dev.On(), power, now)
	}
}
