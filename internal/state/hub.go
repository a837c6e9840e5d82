package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-automation/hearth-core/internal/trigger"
)

// ErrStateUnavailable is returned when the aggregate device state
// cannot be supplied, typically because the broker connection is down.
var ErrStateUnavailable = errors.New("state: device state unavailable")

// MQTTClient is the broker surface the hub needs.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Hub tracks every device's last reported state and publishes
// commands. Safe for concurrent use.
type Hub struct {
	client MQTTClient
	qos    byte
	logger *logging.Logger
	topics mqtt.Topics

	mu      sync.RWMutex
	devices map[string]trigger.Device

	// onChange, when set, is called after each state update with the
	// raw property map. Set before Start; not guarded.
	onChange func(device string, props map[string]any)
}

// NewHub creates a hub over the given broker client.
func NewHub(client MQTTClient, qos byte, logger *logging.Logger) *Hub {
	return &Hub{
		client:  client,
		qos:     qos,
		logger:  logger.With("component", "state"),
		devices: make(map[string]trigger.Device),
	}
}

// OnChange registers a callback invoked after each device state
// update. Used to relay changes to WebSocket clients. Must be called
// before Start.
func (h *Hub) OnChange(fn func(device string, props map[string]any)) {
	h.onChange = fn
}

// Start subscribes to the device state wildcard. Retained messages
// arrive immediately, seeding the snapshot.
func (h *Hub) Start() error {
	return h.client.Subscribe(h.topics.AllDeviceStates(), h.qos, h.handleState)
}

// handleState folds one state message into the device map. An empty
// payload is a retained-message delete and removes the device.
func (h *Hub) handleState(topic string, payload []byte) error {
	device := mqtt.DeviceFromStateTopic(topic)
	if device == "" {
		return fmt.Errorf("state: unexpected topic %q", topic)
	}

	if len(payload) == 0 {
		h.mu.Lock()
		delete(h.devices, device)
		h.mu.Unlock()
		h.logger.Debug("device state cleared", "device", device)
		return nil
	}

	var props map[string]any
	if err := json.Unmarshal(payload, &props); err != nil {
		return fmt.Errorf("state: bad payload on %q: %w", topic, err)
	}

	dev := make(trigger.Device, len(props))
	for name, raw := range props {
		dev[name] = trigger.FromAny(raw)
	}

	h.mu.Lock()
	h.devices[device] = dev
	h.mu.Unlock()

	if h.onChange != nil {
		h.onChange(device, props)
	}
	return nil
}

// AggregateState returns a copy of the current snapshot. The copy is
// the caller's to mutate; later broker messages never show through it.
func (h *Hub) AggregateState(ctx context.Context) (trigger.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !h.client.IsConnected() {
		return nil, ErrStateUnavailable
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	snap := make(trigger.Snapshot, len(h.devices))
	for name, dev := range h.devices {
		snap[name] = dev.Clone()
	}
	return snap, nil
}

// DeviceCount returns the number of devices currently reporting.
func (h *Hub) DeviceCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.devices)
}

// TurnOn commands a device on.
func (h *Hub) TurnOn(ctx context.Context, device string) error {
	return h.command(ctx, device, true)
}

// TurnOff commands a device off.
func (h *Hub) TurnOff(ctx context.Context, device string) error {
	return h.command(ctx, device, false)
}

func (h *Hub) command(ctx context.Context, device string, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]bool{"on": on})
	if err != nil {
		return fmt.Errorf("state: encoding command: %w", err)
	}

	topic := h.topics.DeviceCommand(device)
	if err := h.client.Publish(topic, payload, h.qos, false); err != nil {
		return fmt.Errorf("state: commanding %q: %w", device, err)
	}

	h.logger.Debug("command published", "device", device, "on", on)
	return nil
}
