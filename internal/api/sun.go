package api

import (
	"net/http"
	"time"
)

// handleSunTimes returns today's resolved sun times.
func (s *Server) handleSunTimes(w http.ResponseWriter, _ *http.Request) {
	if s.sun == nil {
		writeInternalError(w, "sun times not configured")
		return
	}

	now := time.Now()
	times := s.sun.Times(now)

	out := make(map[string]string, len(times))
	for name, tod := range times {
		out[name] = tod.String()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  now.Format("2006-01-02"),
		"times": out,
		"night": s.sun.IsNight(now),
	})
}
