package models

import (
	"time"
)

// Default policy applied when no list, rule, or geo stage decides a request.
const (
	PolicyAllow = "allow"
	PolicyDeny  = "deny"
)

// Geo enforcement modes.
const (
	GeoModeDisabled  = "disabled"
	GeoModeAllowList = "allow_list"
	GeoModeBlockList = "block_list"
)

// AccessConfigID is the fixed primary key of the singleton config row.
const AccessConfigID uint = 1

// AccessConfig is the singleton policy configuration for the access engine.
// All list fields hold comma-separated, normalized, deduplicated entries;
// country codes are 2-letter uppercase. Mutations go through
// AccessConfigService.Update, which also writes a before/after audit record.
type AccessConfig struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	Enabled            bool      `json:"enabled"`
	DefaultPolicy      string    `json:"default_policy"`                       // "allow", "deny"
	GeoMode            string    `json:"geo_mode"`                             // "disabled", "allow_list", "block_list"
	AllowedCountries   string    `json:"allowed_countries"`                    // comma-separated ISO country codes
	BlockedCountries   string    `json:"blocked_countries"`                    // comma-separated ISO country codes
	IPAllowList        string    `json:"ip_allow_list" gorm:"type:text"`       // comma-separated IPs/CIDRs
	IPBlockList        string    `json:"ip_block_list" gorm:"type:text"`       // comma-separated IPs/CIDRs
	FailThreshold      int       `json:"fail_threshold"`                       // 1-100
	FailWindowSeconds  int       `json:"fail_window_seconds"`                  // 30-86400
	BanDurationSeconds int       `json:"ban_duration_seconds"`                 // 60-604800
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// FailWindow returns the sliding failure window as a duration.
func (c *AccessConfig) FailWindow() time.Duration {
	return time.Duration(c.FailWindowSeconds) * time.Second
}

// BanDuration returns the automatic ban TTL as a duration.
func (c *AccessConfig) BanDuration() time.Duration {
	return time.Duration(c.BanDurationSeconds) * time.Second
}
