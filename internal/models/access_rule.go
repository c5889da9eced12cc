package models

import (
	"time"
)

// Rule kinds. TempBlock is a time-bounded block auto-created by the failure
// tracker; allow rules may carry an expiry but in practice never do.
const (
	RuleAllow     = "allow"
	RuleBlock     = "block"
	RuleTempBlock = "temp_block"
)

// AccessRule is a per-host allow/block decision. IP always holds a single
// normalized host address, never a range. Creating an allow rule removes any
// existing block/temp_block rules for the same IP so the store never holds
// contradictory state.
type AccessRule struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UUID      string     `json:"uuid" gorm:"uniqueIndex"`
	IP        string     `json:"ip" gorm:"index"`
	Kind      string     `json:"kind"` // "allow", "block", "temp_block"
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedBy string     `json:"created_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Expired reports whether the rule's expiry has passed at the given instant.
// Rules without an expiry never expire.
func (r *AccessRule) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}

// Blocks reports whether the rule denies traffic.
func (r *AccessRule) Blocks() bool {
	return r.Kind == RuleBlock || r.Kind == RuleTempBlock
}
