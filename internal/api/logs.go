package api

import (
	"net/http"
)

// handleListLogs returns the caller's most recent execution log entries,
// newest first.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())

	entries, err := s.logs.Recent(r.Context(), claims.Subject)
	if err != nil {
		s.logger.Error("list execution logs failed", "user_id", claims.Subject, "error", err)
		writeInternalError(w, "failed to list logs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"count": len(entries),
	})
}
