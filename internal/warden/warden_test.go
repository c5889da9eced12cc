package warden

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/geo"
	"github.com/sentinelmesh/console/internal/models"
	"github.com/sentinelmesh/console/internal/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.AccessConfig{},
		&models.AccessRule{},
		&models.AccessLogEntry{},
		&models.AccessAudit{},
		&models.NotificationProvider{},
	))
	return db
}

func newTestWarden(t *testing.T, resolver geo.Resolver) (*Warden, *gorm.DB) {
	db := setupTestDB(t)
	w := New(
		services.NewAccessConfigService(db),
		services.NewAccessRuleService(db),
		services.NewAccessLogService(db),
		nil,
		resolver,
	)
	return w, db
}

func updateConfig(t *testing.T, db *gorm.DB, mutate func(*models.AccessConfig)) {
	svc := services.NewAccessConfigService(db)
	cfg, err := svc.Get()
	require.NoError(t, err)
	mutate(cfg)
	require.NoError(t, db.Save(cfg).Error)
}

func rcFor(ip string) RequestContext {
	return RequestContext{IP: ip, Path: "/api/v1/nodes", Method: "GET", UserAgent: "test-agent"}
}

func TestEvaluate_Disabled(t *testing.T) {
	w, db := newTestWarden(t, nil)
	updateConfig(t, db, func(c *models.AccessConfig) {
		c.Enabled = false
		c.DefaultPolicy = models.PolicyDeny
	})

	d := w.Evaluate(rcFor("10.0.0.1"))
	assert.True(t, d.Allowed)
}

func TestEvaluate_UnknownAddressFailsOpen(t *testing.T) {
	w, db := newTestWarden(t, nil)
	updateConfig(t, db, func(c *models.AccessConfig) {
		c.DefaultPolicy = models.PolicyDeny
	})

	d := w.Evaluate(rcFor("not-an-address"))
	assert.True(t, d.Allowed)

	d = w.Evaluate(rcFor(""))
	assert.True(t, d.Allowed)
}

func TestEvaluate_AllowList(t *testing.T) {
	w, db := newTestWarden(t, nil)
	updateConfig(t, db, func(c *models.AccessConfig) {
		c.IPAllowList = "10.0.0.0/24"
		c.DefaultPolicy = models.PolicyDeny
	})

	t.Run("member passes despite default deny", func(t *testing.T) {
		d := w.Evaluate(rcFor("10.0.0.5"))
		assert.True(t, d.Allowed)
	})

	t.Run("mapped IPv6 form of a member passes", func(t *testing.T) {
		d := w.Evaluate(rcFor("::ffff:10.0.0.5"))
		assert.True(t, d.Allowed)
	})

	t.Run("non-member is denied", func(t *testing.T) {
		d := w.Evaluate(rcFor("10.0.1.5"))
		assert.False(t, d.Allowed)
		assert.Equal(t, "IP not in allow list", d.Reason)
	})

	t.Run("allow list bypasses geo policy", func(t *testing.T) {
		resolver := geo.NewTableResolver()
		require.NoError(t, resolver.Add("10.0.0.0/24", "RU"))
		w2, db2 := newTestWarden(t, resolver)
		updateConfig(t, db2, func(c *models.AccessConfig) {
			c.IPAllowList = "10.0.0.0/24"
			c.GeoMode = models.GeoModeBlockList
			c.BlockedCountries = "RU"
		})
		d := w2.Evaluate(rcFor("10.0.0.5"))
		assert.True(t, d.Allowed)
	})
}

func TestEvaluate_BlockList(t *testing.T) {
	w, db := newTestWarden(t, nil)
	updateConfig(t, db, func(c *models.AccessConfig) {
		c.IPBlockList = "192.168.7.0/24,172.16.0.9"
	})

	d := w.Evaluate(rcFor("192.168.7.33"))
	assert.False(t, d.Allowed)
	assert.Equal(t, "IP blocked by list", d.Reason)

	d = w.Evaluate(rcFor("172.16.0.9"))
	assert.False(t, d.Allowed)

	d = w.Evaluate(rcFor("172.16.0.10"))
	assert.True(t, d.Allowed)
}

func TestEvaluate_Rules(t *testing.T) {
	w, db := newTestWarden(t, nil)
	ruleSvc := services.NewAccessRuleService(db)

	t.Run("block rule denies with rule uuid", func(t *testing.T) {
		rule, err := ruleSvc.CreateBlock("203.0.113.5", "abusive scans", "admin")
		require.NoError(t, err)

		d := w.Evaluate(rcFor("203.0.113.5"))
		assert.False(t, d.Allowed)
		assert.Equal(t, models.OutcomeBlocked, d.Outcome)
		assert.Equal(t, rule.UUID, d.RuleUUID)
	})

	t.Run("newer allow rule wins over older block", func(t *testing.T) {
		_, err := ruleSvc.CreateAllow("203.0.113.5", "cleared", "admin")
		require.NoError(t, err)

		d := w.Evaluate(rcFor("203.0.113.5"))
		assert.True(t, d.Allowed)
	})

	t.Run("expired rule is inert and deleted on scan", func(t *testing.T) {
		rule, err := ruleSvc.CreateTempBlock("198.51.100.9", "flood", time.Minute, "admin")
		require.NoError(t, err)
		past := time.Now().Add(-time.Second)
		require.NoError(t, db.Model(&models.AccessRule{}).Where("id = ?", rule.ID).
			Update("expires_at", past).Error)

		d := w.Evaluate(rcFor("198.51.100.9"))
		assert.True(t, d.Allowed)

		var count int64
		db.Model(&models.AccessRule{}).Where("ip = ?", "198.51.100.9").Count(&count)
		assert.Zero(t, count)
	})
}

func TestEvaluate_Geo(t *testing.T) {
	resolver := geo.NewTableResolver()
	require.NoError(t, resolver.Add("5.18.0.0/16", "RU"))
	require.NoError(t, resolver.Add("203.0.113.0/24", "US"))

	t.Run("block list denies resolved country", func(t *testing.T) {
		w, db := newTestWarden(t, resolver)
		updateConfig(t, db, func(c *models.AccessConfig) {
			c.GeoMode = models.GeoModeBlockList
			c.BlockedCountries = "RU"
		})

		d := w.Evaluate(rcFor("5.18.44.1"))
		assert.False(t, d.Allowed)
		assert.Equal(t, "country blocked", d.Reason)
		assert.Equal(t, "RU", d.Country)

		d = w.Evaluate(rcFor("203.0.113.7"))
		assert.True(t, d.Allowed)
	})

	t.Run("unresolved country is never denied by geo", func(t *testing.T) {
		w, db := newTestWarden(t, resolver)
		updateConfig(t, db, func(c *models.AccessConfig) {
			c.GeoMode = models.GeoModeBlockList
			c.BlockedCountries = "RU"
		})

		d := w.Evaluate(rcFor("192.0.2.1"))
		assert.True(t, d.Allowed)
	})

	t.Run("allow list denies countries outside the set", func(t *testing.T) {
		w, db := newTestWarden(t, resolver)
		updateConfig(t, db, func(c *models.AccessConfig) {
			c.GeoMode = models.GeoModeAllowList
			c.AllowedCountries = "US"
		})

		d := w.Evaluate(rcFor("203.0.113.7"))
		assert.True(t, d.Allowed)

		d = w.Evaluate(rcFor("5.18.44.1"))
		assert.False(t, d.Allowed)
		assert.Equal(t, "country not permitted", d.Reason)
	})

	t.Run("allow list with empty set never denies", func(t *testing.T) {
		w, db := newTestWarden(t, resolver)
		updateConfig(t, db, func(c *models.AccessConfig) {
			c.GeoMode = models.GeoModeAllowList
			c.AllowedCountries = ""
		})

		d := w.Evaluate(rcFor("5.18.44.1"))
		assert.True(t, d.Allowed)
	})
}

func TestEvaluate_DefaultDeny(t *testing.T) {
	w, db := newTestWarden(t, nil)
	updateConfig(t, db, func(c *models.AccessConfig) {
		c.DefaultPolicy = models.PolicyDeny
	})

	d := w.Evaluate(rcFor("10.1.2.3"))
	assert.False(t, d.Allowed)
	assert.Equal(t, models.OutcomeDefaultDeny, d.Outcome)
	assert.Equal(t, "denied by default policy", d.Reason)
}

func TestEvaluate_DeniedRequestsDeduplicatedInLog(t *testing.T) {
	w, db := newTestWarden(t, nil)
	updateConfig(t, db, func(c *models.AccessConfig) {
		c.DefaultPolicy = models.PolicyDeny
	})

	rc := rcFor("10.1.2.3")
	w.Evaluate(rc)
	first := fetchLogEntry(t, db, "10.1.2.3", models.OutcomeDefaultDeny, rc.Path)
	w.Evaluate(rc)

	entry := fetchLogEntry(t, db, "10.1.2.3", models.OutcomeDefaultDeny, rc.Path)
	assert.Equal(t, 2, entry.Attempts)
	assert.True(t, entry.Blocked)
	assert.Equal(t, first.FirstSeen, entry.FirstSeen)

	var count int64
	db.Model(&models.AccessLogEntry{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestEvaluate_PassNeverLogs(t *testing.T) {
	w, db := newTestWarden(t, nil)

	w.Evaluate(rcFor("10.0.0.1"))

	var count int64
	db.Model(&models.AccessLogEntry{}).Count(&count)
	assert.Zero(t, count)
}

func TestTest_DryRunSkipsLog(t *testing.T) {
	w, db := newTestWarden(t, nil)
	updateConfig(t, db, func(c *models.AccessConfig) {
		c.DefaultPolicy = models.PolicyDeny
	})

	d := w.Test(rcFor("10.1.2.3"))
	assert.False(t, d.Allowed)

	var count int64
	db.Model(&models.AccessLogEntry{}).Count(&count)
	assert.Zero(t, count)
}

func fetchLogEntry(t *testing.T, db *gorm.DB, ip, outcome, path string) models.AccessLogEntry {
	var entry models.AccessLogEntry
	require.NoError(t, db.Where("ip = ? AND outcome = ? AND path = ?", ip, outcome, path).
		First(&entry).Error)
	return entry
}

func TestResolveClientIP(t *testing.T) {
	t.Run("forwarded-for first hop wins", func(t *testing.T) {
		got := ResolveClientIP("203.0.113.7, 10.0.0.1", "192.168.1.1:4444")
		assert.Equal(t, "203.0.113.7", got)
	})

	t.Run("mapped forwarded address folds", func(t *testing.T) {
		got := ResolveClientIP("::ffff:203.0.113.7", "192.168.1.1:4444")
		assert.Equal(t, "203.0.113.7", got)
	})

	t.Run("falls back to peer address", func(t *testing.T) {
		got := ResolveClientIP("", "192.168.1.1:4444")
		assert.Equal(t, "192.168.1.1", got)

		got = ResolveClientIP("garbage", "[2001:db8::1]:4444")
		assert.Equal(t, "2001:db8::1", got)
	})

	t.Run("unresolvable yields empty", func(t *testing.T) {
		assert.Equal(t, "", ResolveClientIP("", "not-an-addr"))
	})
}
