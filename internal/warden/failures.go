package warden

import (
	"time"

	"github.com/sentinelmesh/console/internal/ipaddr"
	"github.com/sentinelmesh/console/internal/logger"
	"github.com/sentinelmesh/console/internal/metrics"
	"github.com/sentinelmesh/console/internal/models"
	"github.com/sentinelmesh/console/internal/services"
)

// failureWindow is the sliding per-IP failure counter. Process-local and
// never persisted; it resets once windowStart falls out of the configured
// window, and is cleared on success or when a ban fires.
type failureWindow struct {
	count       int
	windowStart time.Time
	lastAttempt time.Time
}

// OnFailure records one authentication failure for ip. Every failure is
// written to the outcome log; crossing the configured threshold inside the
// sliding window creates a temp_block rule, clears the counter and logs a
// second, blocked outcome carrying the new rule. Anti-automation signals
// (honeypot field, form submitted too fast) arrive here as ordinary failures
// with that reason string. Never returns an error to the caller.
func (w *Warden) OnFailure(ip, reason string, rc RequestContext) {
	norm, err := ipaddr.NormalizeIP(ip)
	if err != nil {
		return
	}

	cfg, err := w.configs.Get()
	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("access config unavailable, auth failure not counted")
		return
	}

	metrics.IncAuthFailure()
	w.record(services.AccessEvent{
		IP:        norm,
		Outcome:   models.OutcomeAuthFailure,
		Path:      rc.Path,
		Method:    rc.Method,
		Reason:    reason,
		UserAgent: rc.UserAgent,
	})

	now := w.now()
	w.mu.Lock()
	fw := w.failures[norm]
	if fw == nil || now.Sub(fw.windowStart) > cfg.FailWindow() {
		fw = &failureWindow{count: 1, windowStart: now}
		w.failures[norm] = fw
	} else {
		fw.count++
	}
	fw.lastAttempt = now
	banned := fw.count >= cfg.FailThreshold
	if banned {
		delete(w.failures, norm)
	}
	w.mu.Unlock()

	if !banned {
		return
	}
	w.ban(norm, reason, cfg, rc)
}

// OnSuccess clears any failure state for ip and logs the successful attempt.
func (w *Warden) OnSuccess(ip string, rc RequestContext) {
	norm, err := ipaddr.NormalizeIP(ip)
	if err != nil {
		return
	}

	w.mu.Lock()
	delete(w.failures, norm)
	w.mu.Unlock()

	w.record(services.AccessEvent{
		IP:        norm,
		Outcome:   models.OutcomeAuthSuccess,
		Path:      rc.Path,
		Method:    rc.Method,
		UserAgent: rc.UserAgent,
	})
}

// FailureCount returns the live window count for ip, 0 when absent.
func (w *Warden) FailureCount(ip string) int {
	norm, err := ipaddr.NormalizeIP(ip)
	if err != nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if fw := w.failures[norm]; fw != nil {
		return fw.count
	}
	return 0
}

func (w *Warden) ban(ip, reason string, cfg *models.AccessConfig, rc RequestContext) {
	rule, err := w.rules.CreateTempBlock(ip, "too many authentication failures", cfg.BanDuration(), "access-engine")
	if err != nil {
		logger.WithFields(map[string]interface{}{"ip": ip, "error": err.Error()}).
			Warn("failed to create temp block rule")
		return
	}

	metrics.IncTempBan()
	country := w.ResolveCountry(ip)
	w.record(services.AccessEvent{
		IP:        ip,
		Outcome:   models.OutcomeBlocked,
		Path:      rc.Path,
		Method:    rc.Method,
		RuleUUID:  rule.UUID,
		Reason:    "too many authentication failures",
		Country:   country,
		Blocked:   true,
		UserAgent: rc.UserAgent,
	})

	logger.WithFields(map[string]interface{}{
		"ip":      ip,
		"rule":    rule.UUID,
		"reason":  reason,
		"country": country,
	}).Warn("authentication failures crossed threshold, IP temp banned")

	if w.notifier != nil && rule.ExpiresAt != nil {
		w.notifier.NotifyBan(ip, "too many authentication failures", country, *rule.ExpiresAt)
	}
}

func (w *Warden) record(e services.AccessEvent) {
	if err := w.logs.Record(e); err != nil {
		logger.WithFields(map[string]interface{}{"ip": e.IP, "error": err.Error()}).
			Warn("failed to record auth outcome")
	}
}
