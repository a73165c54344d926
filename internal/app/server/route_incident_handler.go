package server

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"kestrel/internal/api/dto"
	"kestrel/internal/database"
	"kestrel/internal/detection"
	"kestrel/internal/domain"
)

// getIncidents serves the paginated review list. Filters form a closed
// vocabulary; an unrecognized value is a client error, never an empty result.
func getIncidents(w http.ResponseWriter, r *http.Request) {
	filters, ok := parseIncidentFilters(w, r)
	if !ok {
		return
	}
	page, pageSize := parsePagination(r)

	incidents, total, err := database.GetIncidentPage(filters, page, pageSize)
	if err != nil {
		log.Error("Failed to load incident page", "error", err)
		writeError(w, "Failed to load incidents", http.StatusInternalServerError)
		return
	}
	fillSeverities(incidents)

	writeJSON(w, http.StatusOK, dto.IncidentPage{
		Incidents:  incidents,
		Pagination: dto.NewPagination(page, pageSize, total),
	})
}

// getIncidentDetail shows every aggregate for one IP plus its block record.
func getIncidentDetail(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")
	page, pageSize := parsePagination(r)

	incidents, total, err := database.GetIncidentPage(database.IncidentFilters{IP: ip}, page, pageSize)
	if err != nil {
		log.Error("Failed to load incident detail", "ip", ip, "error", err)
		writeError(w, "Failed to load incidents", http.StatusInternalServerError)
		return
	}
	fillSeverities(incidents)

	record, err := database.GetBlockRecord(ip)
	if err != nil {
		log.Error("Failed to load block record", "ip", ip, "error", err)
		writeError(w, "Failed to load block record", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dto.IncidentDetail{
		Incidents:  incidents,
		Pagination: dto.NewPagination(page, pageSize, total),
		Meta:       toBlockRecordInfo(record),
	})
}

func getOverview(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)

	eventsToday, err := database.CountEventsSince(since, "")
	if err != nil {
		log.Error("Failed to count recent events", "error", err)
		writeError(w, "Failed to load overview", http.StatusInternalServerError)
		return
	}

	blocked, err := database.CountBlocked()
	if err != nil {
		writeError(w, "Failed to load overview", http.StatusInternalServerError)
		return
	}

	open, err := database.CountOpenBlocks()
	if err != nil {
		writeError(w, "Failed to load overview", http.StatusInternalServerError)
		return
	}

	topTypes, err := database.TopEventTypesSince(since, 5)
	if err != nil {
		writeError(w, "Failed to load overview", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dto.OverviewInfo{
		EventsToday: eventsToday,
		BlockedIPs:  blocked,
		OpenBlocks:  open,
		TopTypes:    sortTypeCounts(topTypes),
	})
}

func getAuditTrail(w http.ResponseWriter, r *http.Request) {
	ip := r.PathValue("ip")
	page, pageSize := parsePagination(r)

	entries, total, err := database.GetAuditPage(ip, page, pageSize)
	if err != nil {
		log.Error("Failed to load audit page", "ip", ip, "error", err)
		writeError(w, "Failed to load audit trail", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries":    entries,
		"pagination": dto.NewPagination(page, pageSize, total),
	})
}

// parseIncidentFilters validates ip/type/severity/status query parameters.
// Severity is translated to the set of event types policy assigns it, so the
// query never needs a severity column. Writes a 400 and returns ok=false on
// any unknown value.
func parseIncidentFilters(w http.ResponseWriter, r *http.Request) (database.IncidentFilters, bool) {
	query := r.URL.Query()
	filters := database.IncidentFilters{IP: query.Get("ip")}

	if rawType := query.Get("type"); rawType != "" {
		eventType := domain.EventType(rawType)
		if !eventType.Valid() {
			writeError(w, "Unknown event type filter", http.StatusBadRequest)
			return filters, false
		}
		filters.Types = []domain.EventType{eventType}
	}

	if rawSeverity := query.Get("severity"); rawSeverity != "" {
		severity := domain.Severity(rawSeverity)
		if !severity.Valid() {
			writeError(w, "Unknown severity filter", http.StatusBadRequest)
			return filters, false
		}
		engine := detection.PublicEngine
		if engine == nil {
			writeError(w, "Detection engine not ready", http.StatusServiceUnavailable)
			return filters, false
		}
		severityTypes := engine.Policy().TypesForSeverity(severity)
		filters.Types = intersectTypes(filters.Types, severityTypes)
		if len(filters.Types) == 0 {
			// severity and type filters name disjoint sets
			filters.Types = []domain.EventType{""}
		}
	}

	if status := query.Get("status"); status != "" {
		if !domain.ValidBlockStatus(status) {
			writeError(w, "Unknown status filter", http.StatusBadRequest)
			return filters, false
		}
		filters.Status = status
	}

	return filters, true
}

func parsePagination(r *http.Request) (page, pageSize int) {
	query := r.URL.Query()

	page, _ = strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}

	rawSize := query.Get("page_size")
	if rawSize == "" {
		rawSize = query.Get("pageSize")
	}
	pageSize, _ = strconv.Atoi(rawSize)
	if pageSize < 1 {
		pageSize = database.DefaultIncidentPageSize
	}
	if pageSize > database.MaxIncidentPageSize {
		pageSize = database.MaxIncidentPageSize
	}
	return page, pageSize
}

func fillSeverities(incidents []dto.IncidentInfo) {
	engine := detection.PublicEngine
	if engine == nil {
		return
	}
	policy := engine.Policy()
	for i := range incidents {
		incidents[i].Severity = string(policy.Severity(domain.EventType(incidents[i].Type)))
	}
}

func intersectTypes(current, allowed []domain.EventType) []domain.EventType {
	if len(current) == 0 {
		return allowed
	}
	allowedSet := make(map[domain.EventType]struct{}, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = struct{}{}
	}
	out := make([]domain.EventType, 0, len(current))
	for _, t := range current {
		if _, ok := allowedSet[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func sortTypeCounts(counts map[domain.EventType]int64) []dto.TypeCount {
	out := make([]dto.TypeCount, 0, len(counts))
	for eventType, count := range counts {
		out = append(out, dto.TypeCount{Type: string(eventType), Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Type < out[j].Type
	})
	return out
}
