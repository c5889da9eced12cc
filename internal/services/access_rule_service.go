package services

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/ipaddr"
	"github.com/sentinelmesh/console/internal/logger"
	"github.com/sentinelmesh/console/internal/models"
)

var (
	ErrRuleNotFound    = errors.New("access rule not found")
	ErrInvalidRuleKind = errors.New("invalid access rule kind")
	ErrRuleNotJailed   = errors.New("rule is not a temp block")
)

// AccessRuleService is the store adapter for per-IP allow/block rules.
type AccessRuleService struct {
	db *gorm.DB
}

func NewAccessRuleService(db *gorm.DB) *AccessRuleService {
	return &AccessRuleService{db: db}
}

// Create inserts a rule for a single host address. ttl <= 0 means no expiry.
// Creating an allow rule first deletes any block/temp_block rules on the same
// IP so the store never holds contradictory state.
func (s *AccessRuleService) Create(ip, kind, reason string, ttl time.Duration, actor string) (*models.AccessRule, error) {
	norm, err := ipaddr.NormalizeIP(ip)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.RuleAllow, models.RuleBlock, models.RuleTempBlock:
	default:
		return nil, ErrInvalidRuleKind
	}

	rule := &models.AccessRule{
		UUID:      uuid.NewString(),
		IP:        norm,
		Kind:      kind,
		Reason:    reason,
		CreatedBy: actor,
	}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		rule.ExpiresAt = &exp
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if kind == models.RuleAllow {
			if err := tx.Where("ip = ? AND kind IN ?", norm,
				[]string{models.RuleBlock, models.RuleTempBlock}).
				Delete(&models.AccessRule{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(rule).Error
	})
	if err != nil {
		return nil, err
	}
	s.audit(actor, "create", nil, rule)
	return rule, nil
}

// CreateAllow inserts an allow rule, superseding any block rules for the IP.
func (s *AccessRuleService) CreateAllow(ip, reason, actor string) (*models.AccessRule, error) {
	return s.Create(ip, models.RuleAllow, reason, 0, actor)
}

// CreateBlock inserts a permanent block rule.
func (s *AccessRuleService) CreateBlock(ip, reason, actor string) (*models.AccessRule, error) {
	return s.Create(ip, models.RuleBlock, reason, 0, actor)
}

// CreateTempBlock inserts a time-bounded block rule.
func (s *AccessRuleService) CreateTempBlock(ip, reason string, ttl time.Duration, actor string) (*models.AccessRule, error) {
	return s.Create(ip, models.RuleTempBlock, reason, ttl, actor)
}

// ListActiveForIP returns every rule stored for the normalized IP, newest
// first. Expired rules are NOT filtered out here; the evaluator re-checks
// expiry inline so it can delete stale rules while scanning.
func (s *AccessRuleService) ListActiveForIP(ip string) ([]models.AccessRule, error) {
	norm, err := ipaddr.NormalizeIP(ip)
	if err != nil {
		return nil, err
	}
	var rules []models.AccessRule
	if err := s.db.Where("ip = ?", norm).Order("created_at desc, id desc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// List returns all rules, newest first.
func (s *AccessRuleService) List() ([]models.AccessRule, error) {
	var rules []models.AccessRule
	if err := s.db.Order("created_at desc, id desc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// GetByID retrieves a single rule.
func (s *AccessRuleService) GetByID(id uint) (*models.AccessRule, error) {
	var rule models.AccessRule
	if err := s.db.First(&rule, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// Delete removes a rule by id and audits the action.
func (s *AccessRuleService) Delete(id uint, actor string) error {
	rule, err := s.GetByID(id)
	if err != nil {
		return err
	}
	result := s.db.Delete(&models.AccessRule{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	s.audit(actor, "delete", rule, nil)
	return nil
}

// DeleteExpired removes a rule only if its expiry has passed. Expiry cleanup
// is housekeeping, not an operator action, so nothing is audited; a rule that
// is already gone or not yet expired is not an error.
func (s *AccessRuleService) DeleteExpired(id uint) error {
	return s.db.Where("id = ? AND expires_at IS NOT NULL AND expires_at <= ?", id, time.Now()).
		Delete(&models.AccessRule{}).Error
}

// ListJailed returns temp_block rules that have not yet expired, newest first.
func (s *AccessRuleService) ListJailed() ([]models.AccessRule, error) {
	var rules []models.AccessRule
	if err := s.db.Where("kind = ? AND expires_at > ?", models.RuleTempBlock, time.Now()).
		Order("created_at desc, id desc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Release deletes a temp_block rule before its expiry, audits the action and
// returns the released rule.
func (s *AccessRuleService) Release(id uint, actor string) (*models.AccessRule, error) {
	rule, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if rule.Kind != models.RuleTempBlock {
		return nil, ErrRuleNotJailed
	}
	result := s.db.Delete(&models.AccessRule{}, id)
	if result.Error != nil {
		return nil, result.Error
	}
	s.audit(actor, "release", rule, nil)
	return rule, nil
}

// audit writes an audit row for an operator action on a rule. Audit failures
// are logged and swallowed so they never fail the action itself.
func (s *AccessRuleService) audit(actor, action string, before, after *models.AccessRule) {
	row := &models.AccessAudit{
		UUID:   uuid.NewString(),
		Actor:  actor,
		Action: action,
		Entity: "access_rule",
	}
	if before != nil {
		b, _ := json.Marshal(before)
		row.Before = string(b)
	}
	if after != nil {
		a, _ := json.Marshal(after)
		row.After = string(a)
	}
	if err := s.db.Create(row).Error; err != nil {
		logger.WithFields(map[string]interface{}{"action": action, "error": err.Error()}).
			Warn("failed to write access rule audit record")
	}
}

// SweepExpired deletes every rule whose expiry has passed and reports how many
// rows went away.
func (s *AccessRuleService) SweepExpired() (int64, error) {
	result := s.db.Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now()).
		Delete(&models.AccessRule{})
	return result.RowsAffected, result.Error
}
