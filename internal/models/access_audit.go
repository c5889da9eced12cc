package models

import (
	"time"
)

// AccessAudit records admin actions against the access engine, with before and
// after snapshots of the touched entity as JSON.
type AccessAudit struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UUID      string    `json:"uuid" gorm:"uniqueIndex"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity"`
	Before    string    `json:"before" gorm:"type:text"`
	After     string    `json:"after" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}
