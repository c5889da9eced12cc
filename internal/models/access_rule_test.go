package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccessRuleBlocks(t *testing.T) {
	assert.False(t, (&AccessRule{Kind: RuleAllow}).Blocks())
	assert.True(t, (&AccessRule{Kind: RuleBlock}).Blocks())
	assert.True(t, (&AccessRule{Kind: RuleTempBlock}).Blocks())
}

func TestAccessRuleExpired(t *testing.T) {
	now := time.Now()

	t.Run("no expiry never expires", func(t *testing.T) {
		rule := &AccessRule{Kind: RuleBlock}
		assert.False(t, rule.Expired(now))
	})

	t.Run("future expiry is live", func(t *testing.T) {
		exp := now.Add(time.Hour)
		rule := &AccessRule{Kind: RuleTempBlock, ExpiresAt: &exp}
		assert.False(t, rule.Expired(now))
	})

	t.Run("past and exact expiry are expired", func(t *testing.T) {
		past := now.Add(-time.Second)
		rule := &AccessRule{Kind: RuleTempBlock, ExpiresAt: &past}
		assert.True(t, rule.Expired(now))

		exact := now
		rule.ExpiresAt = &exact
		assert.True(t, rule.Expired(now))
	})
}
