package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"kestrel/internal/api/dto"
	"kestrel/internal/domain"
)

// WriteIncidentsCSV streams the incident report. Spreadsheet/PDF rendering
// is a downstream collaborator; CSV is the interchange format the engine
// produces.
func WriteIncidentsCSV(w io.Writer, incidents []dto.IncidentInfo) error {
	writer := csv.NewWriter(w)

	header := []string{"ip", "type", "severity", "count_attempts", "first_seen", "last_seen", "status"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, incident := range incidents {
		row := []string{
			incident.IP,
			incident.Type,
			incident.Severity,
			strconv.FormatUint(uint64(incident.CountAttempts), 10),
			incident.FirstSeen.UTC().Format(time.RFC3339),
			incident.LastSeen.UTC().Format(time.RFC3339),
			incident.Status,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteAuditCSV streams the audit trail for one IP.
func WriteAuditCSV(w io.Writer, entries []domain.AuditEntry) error {
	writer := csv.NewWriter(w)

	header := []string{"ip", "action", "actor", "reason", "outcome", "detail", "created_at"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, entry := range entries {
		row := []string{
			entry.IP,
			entry.Action,
			entry.Actor,
			entry.Reason,
			entry.Outcome,
			entry.Detail,
			entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
