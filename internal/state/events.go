package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-automation/hearth-core/internal/schedule"
)

// firedEvent is the wire form of a schedule actuation event.
type firedEvent struct {
	Schedule string    `json:"schedule"`
	Actor    string    `json:"actor"`
	Trigger  string    `json:"trigger"`
	At       time.Time `json:"at"`
}

// EventSink publishes fired schedule actions to the broker so other
// services (dashboards, loggers) can follow along without polling.
type EventSink struct {
	client MQTTClient
	qos    byte
	logger *logging.Logger
	topics mqtt.Topics
}

// NewEventSink creates a sink over the given broker client.
func NewEventSink(client MQTTClient, qos byte, logger *logging.Logger) *EventSink {
	return &EventSink{
		client: client,
		qos:    qos,
		logger: logger.With("component", "events"),
	}
}

// RecordAction publishes the action. Failures are logged and dropped;
// event fan-out must never block or fail an actuation.
func (s *EventSink) RecordAction(_ context.Context, action schedule.Action) {
	payload, err := json.Marshal(firedEvent{
		Schedule: action.Schedule,
		Actor:    action.Actor.String(),
		Trigger:  action.Trigger,
		At:       action.At,
	})
	if err != nil {
		s.logger.Warn("encoding schedule event", "error", err)
		return
	}

	topic := s.topics.ScheduleFired(action.Schedule)
	if err := s.client.Publish(topic, payload, s.qos, false); err != nil {
		s.logger.Warn("publishing schedule event", "schedule", action.Schedule, "error", err)
	}
}
