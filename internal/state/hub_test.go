package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hearth-automation/hearth-core/internal/infrastructure/config"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-automation/hearth-core/internal/schedule"
	"github.com/hearth-automation/hearth-core/internal/trigger"
)

// fakeClient records subscriptions and publishes so tests can drive
// handlers directly, without a broker.
type fakeClient struct {
	mu        sync.Mutex
	handlers  map[string]mqtt.MessageHandler
	published []publishedMsg
	connected bool
	pubErr    error
}

type publishedMsg struct {
	topic    string
	payload  []byte
	retained bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		handlers:  make(map[string]mqtt.MessageHandler),
		connected: true,
	}
}

func (f *fakeClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	f.handlers[topic] = handler
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return f.pubErr
	}
	f.published = append(f.published, publishedMsg{topic: topic, payload: payload, retained: retained})
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// deliver simulates the broker handing a message to the wildcard
// subscription.
func (f *fakeClient) deliver(t *testing.T, topic string, payload string) error {
	t.Helper()
	f.mu.Lock()
	handler := f.handlers[mqtt.Topics{}.AllDeviceStates()]
	f.mu.Unlock()
	if handler == nil {
		t.Fatal("hub has not subscribed to device states")
	}
	return handler(topic, []byte(payload))
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func newStartedHub(t *testing.T) (*Hub, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	hub := NewHub(client, 1, testLogger())
	if err := hub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return hub, client
}

func TestHubAggregatesState(t *testing.T) {
	hub, client := newStartedHub(t)
	ctx := context.Background()

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("deliver: %v", err)
		}
	}
	must(client.deliver(t, "hearth/state/lamp", `{"on":true,"power":42.5}`))
	must(client.deliver(t, "hearth/state/therm", `{"on":false,"target":18,"night":"22:30"}`))

	snap, err := hub.AggregateState(ctx)
	if err != nil {
		t.Fatalf("AggregateState: %v", err)
	}

	if !snap["lamp"].On() {
		t.Error("lamp should be on")
	}
	if power, ok := snap["lamp"].Power(); !ok || power != 42.5 {
		t.Errorf("lamp power = %v, %v", power, ok)
	}
	if snap["therm"].On() {
		t.Error("therm should be off")
	}
	if got := snap["therm"].Get("night"); got.AsString() != "22:30" {
		t.Errorf("therm.night = %v", got)
	}

	if hub.DeviceCount() != 2 {
		t.Errorf("DeviceCount = %d, want 2", hub.DeviceCount())
	}
}

func TestHubSnapshotIsACopy(t *testing.T) {
	hub, client := newStartedHub(t)
	ctx := context.Background()

	if err := client.deliver(t, "hearth/state/lamp", `{"on":false}`); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	snap, err := hub.AggregateState(ctx)
	if err != nil {
		t.Fatalf("AggregateState: %v", err)
	}

	// Scheduler-style optimistic flip must not leak back into the hub.
	snap.SetOn("lamp", true)

	fresh, err := hub.AggregateState(ctx)
	if err != nil {
		t.Fatalf("AggregateState: %v", err)
	}
	if fresh["lamp"].On() {
		t.Error("mutating a snapshot changed the hub's state")
	}
}

func TestHubStateUpdateReplaces(t *testing.T) {
	hub, client := newStartedHub(t)
	ctx := context.Background()

	if err := client.deliver(t, "hearth/state/lamp", `{"on":true,"power":30}`); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	// New report without the power property: old properties must not linger.
	if err := client.deliver(t, "hearth/state/lamp", `{"on":false}`); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	snap, _ := hub.AggregateState(ctx)
	if snap["lamp"].On() {
		t.Error("lamp should be off after update")
	}
	if _, ok := snap["lamp"].Power(); ok {
		t.Error("stale power property survived a full state replace")
	}
}

func TestHubRetainedClearRemovesDevice(t *testing.T) {
	hub, client := newStartedHub(t)

	if err := client.deliver(t, "hearth/state/lamp", `{"on":true}`); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := client.deliver(t, "hearth/state/lamp", ""); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	if hub.DeviceCount() != 0 {
		t.Errorf("DeviceCount = %d after retained clear, want 0", hub.DeviceCount())
	}
}

func TestHubOnChange(t *testing.T) {
	client := newFakeClient()
	hub := NewHub(client, 1, testLogger())

	type change struct {
		device string
		props  map[string]any
	}
	var changes []change
	hub.OnChange(func(device string, props map[string]any) {
		changes = append(changes, change{device: device, props: props})
	})
	if err := hub.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := client.deliver(t, "hearth/state/lamp", `{"on":true,"power":42.5}`); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := client.deliver(t, "hearth/state/lamp", `{not json`); err == nil {
		t.Fatal("malformed payload should be reported")
	}

	if len(changes) != 1 {
		t.Fatalf("onChange fired %d times, want 1", len(changes))
	}
	got := changes[0]
	if got.device != "lamp" {
		t.Errorf("device = %q", got.device)
	}
	if on, ok := got.props["on"].(bool); !ok || !on {
		t.Errorf("props = %v", got.props)
	}
}

func TestHubRejectsBadPayload(t *testing.T) {
	_, client := newStartedHub(t)

	if err := client.deliver(t, "hearth/state/lamp", `{not json`); err == nil {
		t.Error("malformed payload should be reported")
	}
	if err := client.deliver(t, "hearth/state/a/b", `{}`); err == nil {
		t.Error("nested topic should be reported")
	}
}

func TestHubDisconnected(t *testing.T) {
	hub, client := newStartedHub(t)
	client.mu.Lock()
	client.connected = false
	client.mu.Unlock()

	_, err := hub.AggregateState(context.Background())
	if !errors.Is(err, ErrStateUnavailable) {
		t.Errorf("AggregateState = %v, want ErrStateUnavailable", err)
	}
}

func TestHubCommands(t *testing.T) {
	hub, client := newStartedHub(t)
	ctx := context.Background()

	if err := hub.TurnOn(ctx, "lamp"); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	if err := hub.TurnOff(ctx, "heater"); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.published) != 2 {
		t.Fatalf("published %d messages, want 2", len(client.published))
	}

	first := client.published[0]
	if first.topic != "hearth/command/lamp" {
		t.Errorf("topic = %q", first.topic)
	}
	if first.retained {
		t.Error("commands must not be retained")
	}
	var cmd map[string]bool
	if err := json.Unmarshal(first.payload, &cmd); err != nil || !cmd["on"] {
		t.Errorf("payload = %s", first.payload)
	}

	second := client.published[1]
	if second.topic != "hearth/command/heater" {
		t.Errorf("topic = %q", second.topic)
	}
	if err := json.Unmarshal(second.payload, &cmd); err != nil || cmd["on"] {
		t.Errorf("payload = %s", second.payload)
	}
}

func TestHubCommandPublishError(t *testing.T) {
	hub, client := newStartedHub(t)
	client.mu.Lock()
	client.pubErr = errors.New("broker gone")
	client.mu.Unlock()

	if err := hub.TurnOn(context.Background(), "lamp"); err == nil {
		t.Error("TurnOn should surface publish failures")
	}
}

func TestEventSinkPublishes(t *testing.T) {
	client := newFakeClient()
	sink := NewEventSink(client, 1, testLogger())

	at := time.Date(2026, 1, 10, 19, 30, 0, 0, time.UTC)
	sink.RecordAction(context.Background(), schedule.Action{
		Schedule: "lamp",
		Actor:    trigger.ActorOn,
		Trigger:  "sunset-15",
		At:       at,
	})

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(client.published))
	}
	msg := client.published[0]
	if msg.topic != "hearth/event/schedule/lamp" {
		t.Errorf("topic = %q", msg.topic)
	}

	var ev struct {
		Schedule string    `json:"schedule"`
		Actor    string    `json:"actor"`
		Trigger  string    `json:"trigger"`
		At       time.Time `json:"at"`
	}
	if err := json.Unmarshal(msg.payload, &ev); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if ev.Schedule != "lamp" || ev.Actor != "on" || ev.Trigger != "sunset-15" || !ev.At.Equal(at) {
		t.Errorf("event = %+v", ev)
	}
}

func TestEventSinkSwallowsPublishError(t *testing.T) {
	client := newFakeClient()
	client.pubErr = errors.New("broker gone")
	sink := NewEventSink(client, 1, testLogger())

	// Must not panic or propagate; fan-out is best effort.
	sink.RecordAction(context.Background(), schedule.Action{Schedule: "lamp"})
}
