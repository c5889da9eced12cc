package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/geo"
	"github.com/sentinelmesh/console/internal/ipaddr"
	"github.com/sentinelmesh/console/internal/logger"
	"github.com/sentinelmesh/console/internal/models"
)

var (
	ErrInvalidPolicy      = errors.New("invalid default policy")
	ErrInvalidGeoMode     = errors.New("invalid geo mode")
	ErrInvalidCountryCode = errors.New("invalid country code")
	ErrInvalidThreshold   = errors.New("fail threshold out of range (1-100)")
	ErrInvalidFailWindow  = errors.New("fail window out of range (30-86400 seconds)")
	ErrInvalidBanDuration = errors.New("ban duration out of range (60-604800 seconds)")
)

// AccessConfigPatch carries a partial update of the access configuration.
// Nil fields are left untouched. List fields take raw comma-separated input
// and are normalized before persistence.
type AccessConfigPatch struct {
	Enabled            *bool   `json:"enabled"`
	DefaultPolicy      *string `json:"default_policy"`
	GeoMode            *string `json:"geo_mode"`
	AllowedCountries   *string `json:"allowed_countries"`
	BlockedCountries   *string `json:"blocked_countries"`
	IPAllowList        *string `json:"ip_allow_list"`
	IPBlockList        *string `json:"ip_block_list"`
	FailThreshold      *int    `json:"fail_threshold"`
	FailWindowSeconds  *int    `json:"fail_window_seconds"`
	BanDurationSeconds *int    `json:"ban_duration_seconds"`
}

// AccessConfigService owns the singleton access configuration row.
type AccessConfigService struct {
	db *gorm.DB
}

func NewAccessConfigService(db *gorm.DB) *AccessConfigService {
	return &AccessConfigService{db: db}
}

func defaultAccessConfig() *models.AccessConfig {
	return &models.AccessConfig{
		ID:                 models.AccessConfigID,
		Enabled:            true,
		DefaultPolicy:      models.PolicyAllow,
		GeoMode:            models.GeoModeDisabled,
		FailThreshold:      5,
		FailWindowSeconds:  300,
		BanDurationSeconds: 3600,
	}
}

// Get returns the singleton config, creating the default row on first access
// so callers always receive a usable configuration.
func (s *AccessConfigService) Get() (*models.AccessConfig, error) {
	var cfg models.AccessConfig
	err := s.db.First(&cfg, models.AccessConfigID).Error
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	def := defaultAccessConfig()
	if err := s.db.Create(def).Error; err != nil {
		return nil, fmt.Errorf("create default access config: %w", err)
	}
	logger.Log().Info("created default access configuration")
	return def, nil
}

// Update applies a partial patch, normalizes list fields, validates ranges and
// writes a before/after audit snapshot of the full configuration.
func (s *AccessConfigService) Update(patch *AccessConfigPatch, actor string) (*models.AccessConfig, error) {
	cfg, err := s.Get()
	if err != nil {
		return nil, err
	}

	beforeJSON, _ := json.Marshal(cfg)

	if patch.Enabled != nil {
		cfg.Enabled = *patch.Enabled
	}
	if patch.DefaultPolicy != nil {
		policy := strings.ToLower(strings.TrimSpace(*patch.DefaultPolicy))
		if policy != models.PolicyAllow && policy != models.PolicyDeny {
			return nil, ErrInvalidPolicy
		}
		cfg.DefaultPolicy = policy
	}
	if patch.GeoMode != nil {
		mode := strings.ToLower(strings.TrimSpace(*patch.GeoMode))
		switch mode {
		case models.GeoModeDisabled, models.GeoModeAllowList, models.GeoModeBlockList:
			cfg.GeoMode = mode
		default:
			return nil, ErrInvalidGeoMode
		}
	}
	if patch.AllowedCountries != nil {
		normalized, err := normalizeCountryList(*patch.AllowedCountries)
		if err != nil {
			return nil, err
		}
		cfg.AllowedCountries = normalized
	}
	if patch.BlockedCountries != nil {
		normalized, err := normalizeCountryList(*patch.BlockedCountries)
		if err != nil {
			return nil, err
		}
		cfg.BlockedCountries = normalized
	}
	if patch.IPAllowList != nil {
		cfg.IPAllowList = ipaddr.NormalizeList(*patch.IPAllowList)
	}
	if patch.IPBlockList != nil {
		cfg.IPBlockList = ipaddr.NormalizeList(*patch.IPBlockList)
	}
	if patch.FailThreshold != nil {
		if *patch.FailThreshold < 1 || *patch.FailThreshold > 100 {
			return nil, ErrInvalidThreshold
		}
		cfg.FailThreshold = *patch.FailThreshold
	}
	if patch.FailWindowSeconds != nil {
		if *patch.FailWindowSeconds < 30 || *patch.FailWindowSeconds > 86400 {
			return nil, ErrInvalidFailWindow
		}
		cfg.FailWindowSeconds = *patch.FailWindowSeconds
	}
	if patch.BanDurationSeconds != nil {
		if *patch.BanDurationSeconds < 60 || *patch.BanDurationSeconds > 604800 {
			return nil, ErrInvalidBanDuration
		}
		cfg.BanDurationSeconds = *patch.BanDurationSeconds
	}

	if err := s.db.Save(cfg).Error; err != nil {
		return nil, err
	}

	afterJSON, _ := json.Marshal(cfg)
	audit := &models.AccessAudit{
		UUID:   uuid.NewString(),
		Actor:  actor,
		Action: "update",
		Entity: "access_config",
		Before: string(beforeJSON),
		After:  string(afterJSON),
	}
	if err := s.db.Create(audit).Error; err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("failed to write access config audit record")
	}

	return cfg, nil
}

// ListAudits returns recent audit entries, newest first.
func (s *AccessConfigService) ListAudits(limit int) ([]models.AccessAudit, error) {
	var audits []models.AccessAudit
	q := s.db.Order("created_at desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&audits).Error; err != nil {
		return nil, err
	}
	return audits, nil
}

// PruneAudits deletes audit rows older than the retention cutoff.
func (s *AccessConfigService) PruneAudits(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	result := s.db.Where("created_at < datetime('now', ?)",
		fmt.Sprintf("-%d days", retentionDays)).Delete(&models.AccessAudit{})
	return result.RowsAffected, result.Error
}

// normalizeCountryList uppercases, validates, and deduplicates a
// comma-separated country code list, preserving order.
func normalizeCountryList(raw string) (string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if !geo.ValidCountryCode(code) {
			return "", fmt.Errorf("%w: %s", ErrInvalidCountryCode, code)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return strings.Join(out, ","), nil
}
