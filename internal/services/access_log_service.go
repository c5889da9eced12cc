package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/models"
)

const (
	maxLogPathLen   = 128
	maxLogMethodLen = 16
)

// AccessEvent is what the engine hands to the log for recording.
type AccessEvent struct {
	IP        string
	Outcome   string
	Path      string
	Method    string
	RuleUUID  string
	Reason    string
	Country   string
	Blocked   bool
	UserAgent string
}

// LogFilter narrows List results.
type LogFilter struct {
	Outcome     string
	BlockedOnly bool
	Search      string // free text over ip and reason
	Limit       int
}

// AccessLogService keeps the deduplicated outcome log. Entries are upserted on
// (ip, outcome, path): repeats bump Attempts and LastSeen, FirstSeen never
// changes after creation.
type AccessLogService struct {
	db *gorm.DB
}

func NewAccessLogService(db *gorm.DB) *AccessLogService {
	return &AccessLogService{db: db}
}

// Record upserts one event into the log.
func (s *AccessLogService) Record(e AccessEvent) error {
	ip := strings.TrimSpace(e.IP)
	if ip == "" || e.Outcome == "" {
		return nil
	}
	path := truncate(e.Path, maxLogPathLen)
	method := truncate(strings.ToUpper(e.Method), maxLogMethodLen)
	now := time.Now()

	return s.db.Transaction(func(tx *gorm.DB) error {
		var entry models.AccessLogEntry
		err := tx.Where("ip = ? AND outcome = ? AND path = ?", ip, e.Outcome, path).
			First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry = models.AccessLogEntry{
				IP:        ip,
				Outcome:   e.Outcome,
				Path:      path,
				Method:    method,
				RuleUUID:  e.RuleUUID,
				Reason:    e.Reason,
				Country:   e.Country,
				Blocked:   e.Blocked,
				Attempts:  1,
				FirstSeen: now,
				LastSeen:  now,
				UserAgent: e.UserAgent,
			}
			return tx.Create(&entry).Error
		}
		if err != nil {
			return err
		}

		entry.Attempts++
		entry.LastSeen = now
		entry.Method = method
		entry.Reason = e.Reason
		entry.Blocked = e.Blocked
		entry.Country = e.Country
		if e.RuleUUID != "" {
			entry.RuleUUID = e.RuleUUID
		}
		if e.UserAgent != "" {
			entry.UserAgent = e.UserAgent
		}
		return tx.Save(&entry).Error
	})
}

// List returns log entries matching the filter, most recently seen first.
func (s *AccessLogService) List(filter LogFilter) ([]models.AccessLogEntry, error) {
	q := s.db.Order("last_seen desc, id desc")
	if filter.Outcome != "" {
		q = q.Where("outcome = ?", filter.Outcome)
	}
	if filter.BlockedOnly {
		q = q.Where("blocked = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		q = q.Where("ip LIKE ? OR reason LIKE ?", like, like)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var entries []models.AccessLogEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
