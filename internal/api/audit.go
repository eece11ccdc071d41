package api

import (
	"net/http"
	"strconv"

	"github.com/homelinklabs/homelink-core/internal/audit"
)

// handleListAudit returns one page of the caller's activity trail.
//
// GET /audit?action=...&target_id=...&limit=...&offset=...
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, &audit.ListResult{Entries: []audit.Entry{}})
		return
	}

	user := userFrom(r)
	query := r.URL.Query()

	filter := audit.Filter{
		Action:   query.Get("action"),
		TargetID: query.Get("target_id"),
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = offset
	}

	result, err := s.audit.List(r.Context(), user.ID, filter)
	if err != nil {
		s.logger.Error("listing audit trail failed", "user_id", user.ID, "error", err)
		writeInternalError(w, "could not list activity")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
