package dto

type TypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// OverviewInfo is the review dashboard summary.
type OverviewInfo struct {
	EventsToday int64       `json:"events_today"`
	BlockedIPs  int64       `json:"blocked_ips"`
	OpenBlocks  int64       `json:"open_blocks"`
	TopTypes    []TypeCount `json:"top_types"`
}
