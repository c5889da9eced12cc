package models

import (
	"time"
)

// Outcome kinds recorded in the access log.
const (
	OutcomeBlocked     = "blocked"
	OutcomeDefaultDeny = "default_deny"
	OutcomeAuthFailure = "auth_failure"
	OutcomeAuthSuccess = "auth_success"
)

// AccessLogEntry is a deduplicated audit record, unique on (ip, outcome, path).
// Repeated events for the same key increment Attempts and refresh LastSeen;
// FirstSeen is immutable after creation. Entries are never deleted by the
// engine itself, only by external retention jobs.
type AccessLogEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	IP        string    `json:"ip" gorm:"uniqueIndex:idx_access_log_key"`
	Outcome   string    `json:"outcome" gorm:"uniqueIndex:idx_access_log_key"`
	Path      string    `json:"path" gorm:"uniqueIndex:idx_access_log_key"`
	Method    string    `json:"method"`
	RuleUUID  string    `json:"rule_uuid,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Country   string    `json:"country,omitempty"`
	Blocked   bool      `json:"blocked"`
	Attempts  int       `json:"attempts"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	UserAgent string    `json:"user_agent,omitempty"`
}
