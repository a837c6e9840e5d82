package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListSchedules returns the outward-facing view of every schedule.
func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"reset":     s.store.ResetSpec(),
		"schedules": s.store.Listings(),
	})
}

// handleGetSchedule returns one schedule's listing.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	listings := s.store.Listings()
	listing, ok := listings[name]
	if !ok {
		writeNotFound(w, "schedule not found: "+name)
		return
	}

	writeJSON(w, http.StatusOK, listing)
}

// handleSetOverride marks a schedule as manually overridden, pausing
// automatic actuation until the override is removed or the daily reset
// runs. Pinned schedules accept the request but stay active.
func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	sched := s.store.Get(name)
	if sched == nil {
		writeNotFound(w, "schedule not found: "+name)
		return
	}

	s.store.SetOverride(name)

	if s.recorder != nil {
		s.recorder.RecordOverride(r.Context(), name, "set")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"schedule":   name,
		"overridden": s.store.IsOverridden(name),
		"pinned":     sched.Spec.DoNotOverride,
	})
}

// handleRemoveOverride clears a schedule's manual override.
func (s *Server) handleRemoveOverride(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if !s.store.RemoveOverride(name) {
		writeNotFound(w, "schedule not found: "+name)
		return
	}

	if s.recorder != nil {
		s.recorder.RecordOverride(r.Context(), name, "clear")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"schedule":   name,
		"overridden": false,
	})
}

// handleReload re-reads the schedules file. A document that fails
// validation leaves the previous generation active.
func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	if s.scheduler == nil {
		writeInternalError(w, "scheduler not configured")
		return
	}

	if err := s.scheduler.Reload(); err != nil {
		s.logger.Warn("schedule reload via API failed", "error", err)
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":  true,
		"schedules": len(s.store.Names()),
	})
}
