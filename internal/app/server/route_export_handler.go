package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/database"
	"kestrel/internal/export"
)

// exportIncidentsCSV streams the filtered incident report. The same filter
// vocabulary as the review list applies.
func exportIncidentsCSV(w http.ResponseWriter, r *http.Request) {
	filters, ok := parseIncidentFilters(w, r)
	if !ok {
		return
	}

	incidents, err := database.GetIncidentsForExport(filters)
	if err != nil {
		log.Error("Failed to load incidents for export", "error", err)
		writeError(w, "Failed to export incidents", http.StatusInternalServerError)
		return
	}
	fillSeverities(incidents)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=incidents-%s.csv", time.Now().UTC().Format("20060102-150405")))

	if err := export.WriteIncidentsCSV(w, incidents); err != nil {
		log.Error("Failed to write incident CSV", "error", err)
	}
}

func exportAuditCSV(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")

	entries, _, err := database.GetAuditPage(ip, 1, database.MaxIncidentPageSize)
	if err != nil {
		log.Error("Failed to load audit entries for export", "ip", ip, "error", err)
		writeError(w, "Failed to export audit trail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.csv", ip))

	if err := export.WriteAuditCSV(w, entries); err != nil {
		log.Error("Failed to write audit CSV", "error", err)
	}
}
