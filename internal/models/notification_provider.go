package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationProvider holds a shoutrrr destination for best-effort alerts.
type NotificationProvider struct {
	ID      string `gorm:"primaryKey" json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"` // discord, slack, gotify, telegram, smtp, generic
	URL     string `json:"url"`  // The shoutrrr URL
	Enabled bool   `json:"enabled"`

	// Notification Preferences
	NotifyBans   bool `json:"notify_bans" gorm:"default:true"`
	NotifyConfig bool `json:"notify_config" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *NotificationProvider) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}
