package dto

import "time"

// IncidentInfo is one (ip, type) aggregate row as shown in the review list.
// Severity is the severity policy assigns to the type; aggregates for the
// same IP with different types are surfaced as distinct rows.
type IncidentInfo struct {
	IP            string    `json:"ip"`
	Type          string    `json:"type"`
	Severity      string    `json:"severity"`
	CountAttempts uint32    `json:"count_attempts"`
	FirstSeen     time.Time `json:"first_seen"`
	LastSeen      time.Time `json:"last_seen"`
	Status        string    `json:"status"`
}

type IncidentPage struct {
	Incidents  []IncidentInfo `json:"incidents"`
	Pagination Pagination     `json:"pagination"`
}

// IncidentDetail is the per-IP view: that IP's aggregates plus its current
// block record, if one exists.
type IncidentDetail struct {
	Incidents  []IncidentInfo   `json:"incidents"`
	Pagination Pagination       `json:"pagination"`
	Meta       *BlockRecordInfo `json:"meta"`
}
