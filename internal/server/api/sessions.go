package api

import (
	"net/http"

	"github.com/ayusman/vigil/internal/session"
)

// SessionLister reports the active sessions.
type SessionLister interface {
	Sessions() []session.Summary
}

// SessionsHandler handles GET /api/sessions.
type SessionsHandler struct {
	sessions SessionLister
}

// NewSessionsHandler creates a SessionsHandler.
func NewSessionsHandler(l SessionLister) *SessionsHandler {
	return &SessionsHandler{sessions: l}
}

type listSessionsResponse struct {
	Sessions []session.Summary `json:"sessions"`
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: h.sessions.Sessions()})
}
