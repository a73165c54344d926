package domain

import "time"

// Block statuses. A record cycles not_blocked -> blocked -> unblocked and may
// re-enter blocked on a later event; each cycle overwrites the previous
// transition fields (multi-version history lives in audit_entries).
const (
	StatusNotBlocked = "not_blocked"
	StatusBlocked    = "blocked"
	StatusUnblocked  = "unblocked"
)

// BlockRecord is the authoritative block state for one IP. Exactly one row
// exists per IP; it is created lazily on first block and mutated, never
// deleted.
type BlockRecord struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	IP     string `gorm:"size:45;uniqueIndex;not null"`
	Status string `gorm:"size:16;not null;default:'not_blocked';check:status IN ('not_blocked', 'blocked', 'unblocked');index"`

	// Automatic is true when the engine blocked the IP with no human actor.
	// An automatic block never carries a BlockedBy identity.
	Automatic bool   `gorm:"not null;default:false"`
	Reason    string `gorm:"size:512;not null;default:''"`

	BlockedBy *uint      `gorm:"default:null"`
	BlockedAt *time.Time `gorm:"default:null"`

	UnblockedBy     *uint      `gorm:"default:null"`
	UnblockedReason string     `gorm:"size:512;not null;default:''"`
	UnblockedAt     *time.Time `gorm:"default:null"`

	// Resolved is a manual triage flag for the review dashboard.
	Resolved   bool       `gorm:"not null;default:false"`
	ResolvedAt *time.Time `gorm:"default:null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func ValidBlockStatus(status string) bool {
	switch status {
	case StatusNotBlocked, StatusBlocked, StatusUnblocked:
		return true
	}
	return false
}
