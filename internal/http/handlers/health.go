package handlers

import "net/http"

// HandleHealth reports process liveness.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
