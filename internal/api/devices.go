package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hearth-automation/hearth-core/internal/state"
)

// deviceView is the outward-facing shape of one device's state.
type deviceView struct {
	On         bool           `json:"on"`
	Power      *float64       `json:"power,omitempty"`
	Properties map[string]any `json:"properties"`
}

// handleListDevices returns the aggregated state of every known device.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	snap, err := s.state.AggregateState(r.Context())
	if err != nil {
		if errors.Is(err, state.ErrStateUnavailable) {
			writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "device state unavailable")
			return
		}
		s.logger.Error("failed to read device state", "error", err)
		writeInternalError(w, "failed to read device state")
		return
	}

	devices := make(map[string]deviceView, len(snap))
	for name, dev := range snap {
		view := deviceView{
			On:         dev.On(),
			Properties: make(map[string]any, len(dev)),
		}
		if power, ok := dev.Power(); ok {
			view.Power = &power
		}
		for prop, val := range dev {
			view.Properties[prop] = val.Any()
		}
		devices[name] = view
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"at":      time.Now().UTC().Format(time.RFC3339),
	})
}
