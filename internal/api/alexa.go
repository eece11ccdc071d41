package api

import (
	"encoding/json"
	"net/http"

	"github.com/homelinklabs/homelink-core/internal/alexa"
)

// handleAlexa accepts Smart Home directives. The response is always
// 200 with an envelope; error classification lives inside the payload,
// which is how the Smart Home protocol models failures.
//
// POST /alexa
func (s *Server) handleAlexa(w http.ResponseWriter, r *http.Request) {
	if s.alexa == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal,
			"directive adapter is not configured")
		return
	}

	var req alexa.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid directive envelope")
		return
	}

	resp := s.alexa.HandleDirective(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}
