package server

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"

	"kestrel/internal/config"
)

func getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, config.GetConfig())
}

// saveSettings replaces the running configuration, policy table included.
// The update is validated, persisted, and broadcast to peer instances; the
// detection engine picks up the new policy through the config change hook.
func saveSettings(w http.ResponseWriter, r *http.Request) {
	var newConfig config.Config
	if err := json.NewDecoder(r.Body).Decode(&newConfig); err != nil {
		log.Error("Error decoding request body:", err)
		writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := config.UpdateConfig(newConfig); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Configuration updated successfully"})
}
