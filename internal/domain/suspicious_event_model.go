package domain

import "time"

// SuspiciousEvent is an immutable, append-only fact. Rows are never updated
// or deleted by the engine; the retention sweep is the only writer after
// insert.
type SuspiciousEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	// IP holds the normalized source address (IPv4 or IPv6).
	IP       string    `gorm:"size:45;not null;index:idx_event_ip_type"`
	Type     EventType `gorm:"size:32;not null;index:idx_event_ip_type"`
	Severity Severity  `gorm:"size:16;not null"`

	OccurredAt time.Time `gorm:"not null;index"`

	// Metadata carries opaque key-value context from the capture layer,
	// serialized as JSON.
	Metadata string `gorm:"type:text;not null;default:''"`

	// Geo enrichment, best effort. Empty when no GeoLite reader is configured.
	Country string `gorm:"size:2;not null;default:''"`
	ASNOrg  string `gorm:"size:255;not null;default:''"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
