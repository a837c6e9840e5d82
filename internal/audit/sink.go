package audit

import (
	"context"

	"github.com/hearth-automation/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-automation/hearth-core/internal/schedule"
)

// Sink adapts the action log repository to the scheduler's sink
// interface. Recording is best effort: a failed insert is logged and
// dropped rather than blocking actuation.
type Sink struct {
	repo   Repository
	logger *logging.Logger
}

// NewSink creates a scheduler sink backed by the action log.
func NewSink(repo Repository, logger *logging.Logger) *Sink {
	return &Sink{
		repo:   repo,
		logger: logger.With("component", "audit"),
	}
}

// RecordAction persists a fired schedule action.
func (s *Sink) RecordAction(ctx context.Context, action schedule.Action) {
	rec := Action{
		Schedule:    action.Schedule,
		Actor:       action.Actor.String(),
		TriggerSpec: action.Trigger,
		Source:      SourceSchedule,
		FiredAt:     action.At,
	}

	if err := s.repo.Create(ctx, &rec); err != nil {
		s.logger.Error("failed to record action",
			"schedule", action.Schedule,
			"actor", action.Actor.String(),
			"error", err)
	}
}

// RecordOverride persists a manual override change made through the API.
func (s *Sink) RecordOverride(ctx context.Context, scheduleName, change string) {
	rec := Action{
		Schedule: scheduleName,
		Actor:    change,
		Source:   SourceOverride,
	}

	if err := s.repo.Create(ctx, &rec); err != nil {
		s.logger.Error("failed to record override",
			"schedule", scheduleName,
			"change", change,
			"error", err)
	}
}
