package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"kestrel/internal/api/dto"
	"kestrel/internal/blocker"
	"kestrel/internal/detection"
	"kestrel/internal/domain"
)

// submitEvent ingests one suspicious event from the capture layer. The event
// is acknowledged once it is counted; persistence happens in the background.
func submitEvent(w http.ResponseWriter, r *http.Request) {
	var submission dto.EventSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	engine := detection.PublicEngine
	if engine == nil {
		writeError(w, "Detection engine not ready", http.StatusServiceUnavailable)
		return
	}

	eventID, err := engine.Record(r.Context(), submission.IP, domain.EventType(submission.Type), submission.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, detection.ErrInvalidEventType):
			writeError(w, "Unknown event type", http.StatusBadRequest)
		case errors.Is(err, detection.ErrInvalidIP):
			writeError(w, "Invalid IP address", http.StatusBadRequest)
		default:
			writeError(w, "Failed to record event", http.StatusInternalServerError)
		}
		return
	}

	count := engine.CountInWindow(submission.IP, domain.EventType(submission.Type))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"event_id":        eventID,
		"count_in_window": count,
	})
}

// getBlockedStatus answers the enforcement question: is this IP blocked right
// now. Served from the in-memory cache, no auth required so edge proxies can
// poll it cheaply.
func getBlockedStatus(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")

	manager := blocker.PublicManager
	if manager == nil {
		writeError(w, "Block manager not ready", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ip":      ip,
		"blocked": manager.IsBlocked(ip),
	})
}
