package dto

import "time"

type BlockRecordInfo struct {
	IP              string     `json:"ip"`
	Status          string     `json:"status"`
	Automatic       bool       `json:"automatic"`
	Reason          string     `json:"reason"`
	BlockedBy       *uint      `json:"blocked_by"`
	BlockedAt       *time.Time `json:"blocked_at"`
	UnblockedBy     *uint      `json:"unblocked_by"`
	UnblockedReason string     `json:"unblocked_reason,omitempty"`
	UnblockedAt     *time.Time `json:"unblocked_at"`
	Resolved        bool       `json:"resolved"`
	ResolvedAt      *time.Time `json:"resolved_at"`
}

// BlockAction is the request body for /block and /unblock.
type BlockAction struct {
	IP     string `json:"ip"`
	Reason string `json:"reason"`
}

// ResolveAction is the request body for /resolve.
type ResolveAction struct {
	IP       string `json:"ip"`
	Resolved bool   `json:"resolved"`
}
