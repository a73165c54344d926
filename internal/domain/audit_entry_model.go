package domain

import "time"

// Audit actions.
const (
	AuditActionBlock   = "block"
	AuditActionUnblock = "unblock"
	AuditActionResolve = "resolve"
)

// Audit outcomes. Rejected attempts are logged too; only applied ones
// mutated the BlockRecord.
const (
	AuditOutcomeApplied  = "applied"
	AuditOutcomeRejected = "rejected"
)

// AuditEntry records every block/unblock attempt with its actor and reason,
// regardless of outcome.
type AuditEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	IP     string `gorm:"size:45;not null;index"`
	Action string `gorm:"size:16;not null"`

	// Actor is "system" for automatic transitions, otherwise the acting
	// user's email.
	Actor   string `gorm:"size:255;not null"`
	Reason  string `gorm:"size:512;not null;default:''"`
	Outcome string `gorm:"size:16;not null"`

	// Detail carries the rejection cause for rejected attempts.
	Detail string `gorm:"size:255;not null;default:''"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}
