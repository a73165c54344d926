package domain

import "time"

// IncidentAggregate mirrors window activity per (ip, type) for reporting.
// Threshold evaluation never reads these rows; the in-memory window counter
// is authoritative for decisions, this row is the durable trail.
type IncidentAggregate struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	IP   string    `gorm:"size:45;not null;uniqueIndex:idx_incident_ip_type"`
	Type EventType `gorm:"size:32;not null;uniqueIndex:idx_incident_ip_type"`

	// CountAttempts is the window count observed at the last write. It is
	// monotonic while the window keeps filling and resets when a fresh
	// window starts.
	CountAttempts uint32 `gorm:"not null;default:0"`

	FirstSeen time.Time `gorm:"not null"`
	LastSeen  time.Time `gorm:"not null;index"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
