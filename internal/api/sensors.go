package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// defaultHistoryLookback is how far back the history endpoint reaches
// when the client does not say.
const defaultHistoryLookback = 24 * time.Hour

// maxHistoryLookback caps the history window to keep Flux queries bounded.
const maxHistoryLookback = 30 * 24 * time.Hour

// handleLatestReadings returns the most recent reading per room and
// measurement.
func (s *Server) handleLatestReadings(w http.ResponseWriter, r *http.Request) {
	if s.sensors == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "sensor store not configured")
		return
	}

	readings, err := s.sensors.LatestReadings(r.Context())
	if err != nil {
		s.logger.Error("latest readings query failed", "error", err)
		writeInternalError(w, "sensor query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

// handleReadingHistory returns readings for one measurement over a
// lookback window.
//
// Query parameters:
//   - since: lookback duration (e.g. 1h, 24h, 7h30m); default 24h
func (s *Server) handleReadingHistory(w http.ResponseWriter, r *http.Request) {
	if s.sensors == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "sensor store not configured")
		return
	}

	since := defaultHistoryLookback
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeBadRequest(w, "since must be a positive duration (e.g. 1h, 24h)")
			return
		}
		since = d
	}
	if since > maxHistoryLookback {
		since = maxHistoryLookback
	}

	measurement := chi.URLParam(r, "measurement")
	readings, err := s.sensors.ReadingHistory(r.Context(), measurement, since)
	if err != nil {
		s.logger.Error("reading history query failed", "measurement", measurement, "error", err)
		writeBadRequest(w, "sensor history query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"measurement": measurement,
		"since":       since.String(),
		"readings":    readings,
	})
}
