package api

import (
	"net/http"
	"strconv"

	"github.com/netlabsug/campus-core/internal/audit"
)

// handleListAudit returns audit trail entries, most recent first.
//
// Query parameters:
//   - event: filter by event kind (login-failure, lockout-triggered, ...)
//   - username: filter by subject username
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{
		Event:    r.URL.Query().Get("event"),
		Username: r.URL.Query().Get("username"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil {
			filter.Offset = offset
		}
	}

	result, err := s.auth.AuditTrail(r.Context(), bearerToken(r), filter)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
