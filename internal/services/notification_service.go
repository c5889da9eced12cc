package services

import (
	"fmt"
	"time"

	"github.com/containrrr/shoutrrr"
	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/logger"
	"github.com/sentinelmesh/console/internal/models"
)

// NotificationService dispatches best-effort alerts through configured
// shoutrrr providers. Delivery failures are logged and swallowed; they must
// never abort the request pipeline.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// NotifyBan announces an automatic temp ban to every enabled provider that
// subscribes to ban events.
func (s *NotificationService) NotifyBan(ip, reason, country string, until time.Time) {
	msg := fmt.Sprintf("Access engine banned %s until %s (reason: %s)",
		ip, until.Format(time.RFC3339), reason)
	if country != "" {
		msg += fmt.Sprintf(" [country: %s]", country)
	}
	s.send("ban", msg)
}

// NotifyConfigChange announces a policy configuration update.
func (s *NotificationService) NotifyConfigChange(actor string) {
	s.send("config", fmt.Sprintf("Access configuration updated by %s", actor))
}

func (s *NotificationService) send(event, message string) {
	providers, err := s.enabledProviders(event)
	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("failed to fetch notification providers")
		return
	}

	for _, provider := range providers {
		go func(p models.NotificationProvider) {
			if err := shoutrrr.Send(p.URL, message); err != nil {
				logger.WithFields(map[string]interface{}{
					"provider": p.Name,
					"type":     p.Type,
					"error":    err.Error(),
				}).Warn("notification dispatch failed")
			}
		}(provider)
	}
}

func (s *NotificationService) enabledProviders(event string) ([]models.NotificationProvider, error) {
	q := s.DB.Where("enabled = ?", true)
	switch event {
	case "ban":
		q = q.Where("notify_bans = ?", true)
	case "config":
		q = q.Where("notify_config = ?", true)
	}
	var providers []models.NotificationProvider
	if err := q.Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

// ListProviders returns all configured providers.
func (s *NotificationService) ListProviders() ([]models.NotificationProvider, error) {
	var providers []models.NotificationProvider
	if err := s.DB.Order("created_at desc").Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

// SaveProvider creates or updates a provider.
func (s *NotificationService) SaveProvider(p *models.NotificationProvider) error {
	return s.DB.Save(p).Error
}

// DeleteProvider removes a provider by id.
func (s *NotificationService) DeleteProvider(id string) error {
	return s.DB.Delete(&models.NotificationProvider{}, "id = ?", id).Error
}
