package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"kestrel/internal/api/dto"
	"kestrel/internal/auth"
	"kestrel/internal/blocker"
	"kestrel/internal/database"
	"kestrel/internal/domain"
)

func blockIP(w http.ResponseWriter, r *http.Request) {
	var action dto.BlockAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	actor, manager, ok := blockContext(w, r)
	if !ok {
		return
	}

	record, err := manager.Block(r.Context(), action.IP, action.Reason, actor)
	if err != nil {
		writeBlockError(w, action.IP, err)
		return
	}

	writeJSON(w, http.StatusOK, toBlockRecordInfo(record))
}

func unblockIP(w http.ResponseWriter, r *http.Request) {
	var action dto.BlockAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	actor, manager, ok := blockContext(w, r)
	if !ok {
		return
	}

	record, err := manager.Unblock(r.Context(), action.IP, action.Reason, actor)
	if err != nil {
		writeBlockError(w, action.IP, err)
		return
	}

	writeJSON(w, http.StatusOK, toBlockRecordInfo(record))
}

func resolveBlock(w http.ResponseWriter, r *http.Request) {
	var action dto.ResolveAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	actor, manager, ok := blockContext(w, r)
	if !ok {
		return
	}

	record, err := manager.Resolve(r.Context(), action.IP, action.Resolved, actor)
	if err != nil {
		writeBlockError(w, action.IP, err)
		return
	}

	writeJSON(w, http.StatusOK, toBlockRecordInfo(record))
}

func blockContext(w http.ResponseWriter, r *http.Request) (domain.Actor, *blocker.Manager, bool) {
	actor, err := auth.GetActorFromRequest(r)
	if err != nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return domain.Actor{}, nil, false
	}

	manager := blocker.PublicManager
	if manager == nil {
		writeError(w, "Block manager not ready", http.StatusServiceUnavailable)
		return domain.Actor{}, nil, false
	}

	return actor, manager, true
}

// writeBlockError maps the manager's sentinel errors onto HTTP statuses. A
// transition conflict reports the IP's current state so the caller can see
// what it collided with.
func writeBlockError(w http.ResponseWriter, ip string, err error) {
	switch {
	case errors.Is(err, blocker.ErrInvalidIP):
		writeError(w, "Invalid IP address", http.StatusBadRequest)
	case errors.Is(err, blocker.ErrMissingReason):
		writeError(w, "A reason is required", http.StatusBadRequest)
	case errors.Is(err, blocker.ErrForbidden):
		writeError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, blocker.ErrInvalidTransition):
		status := domain.StatusNotBlocked
		if record, recordErr := database.GetBlockRecord(ip); recordErr == nil && record != nil {
			status = record.Status
		}
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "Invalid block state transition",
			"status": status,
		})
	case errors.Is(err, blocker.ErrUnavailable):
		writeError(w, "Block store unavailable", http.StatusServiceUnavailable)
	default:
		log.Error("Block operation failed", "ip", ip, "error", err)
		writeError(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func toBlockRecordInfo(record *domain.BlockRecord) *dto.BlockRecordInfo {
	if record == nil {
		return nil
	}
	return &dto.BlockRecordInfo{
		IP:              record.IP,
		Status:          record.Status,
		Automatic:       record.Automatic,
		Reason:          record.Reason,
		BlockedBy:       record.BlockedBy,
		BlockedAt:       record.BlockedAt,
		UnblockedBy:     record.UnblockedBy,
		UnblockedReason: record.UnblockedReason,
		UnblockedAt:     record.UnblockedAt,
		Resolved:        record.Resolved,
		ResolvedAt:      record.ResolvedAt,
	}
}
