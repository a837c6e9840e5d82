package api

import (
	"net/http"
	"strconv"

	"github.com/hearth-automation/hearth-core/internal/audit"
)

// handleListActions returns paginated action log entries.
//
// Query parameters:
//   - schedule: filter by schedule name
//   - source: filter by source (schedule, override)
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	if s.actions == nil {
		writeInternalError(w, "action log not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Schedule: q.Get("schedule"),
		Source:   q.Get("source"),
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.actions.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list actions", "error", err)
		writeInternalError(w, "failed to list actions")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
