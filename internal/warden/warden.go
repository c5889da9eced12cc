package warden

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinelmesh/console/internal/geo"
	"github.com/sentinelmesh/console/internal/ipaddr"
	"github.com/sentinelmesh/console/internal/logger"
	"github.com/sentinelmesh/console/internal/metrics"
	"github.com/sentinelmesh/console/internal/models"
	"github.com/sentinelmesh/console/internal/services"
)

// sweepInterval debounces the opportunistic expired-rule sweep. Expired rules
// are re-checked at use time regardless, so the sweep only bounds store size.
const sweepInterval = 60 * time.Second

// RequestContext carries the request facts the engine evaluates.
type RequestContext struct {
	IP        string
	Path      string
	Method    string
	UserAgent string
}

// Decision is the engine's verdict for one request.
type Decision struct {
	Allowed  bool
	Reason   string
	Outcome  string
	RuleUUID string
	Country  string
}

func pass() Decision {
	return Decision{Allowed: true}
}

// Warden is the adaptive access-control engine: a short-circuiting decision
// pipeline over the allow list, block list, per-IP rules, geo policy and
// default policy, plus the per-IP authentication failure tracker that
// escalates repeated failures into temp bans.
//
// The failure map is process-local: under a multi-process deployment each
// worker counts failures independently against a shared rule store.
type Warden struct {
	configs  *services.AccessConfigService
	rules    *services.AccessRuleService
	logs     *services.AccessLogService
	notifier *services.NotificationService
	geo      geo.Resolver

	mu        sync.Mutex
	failures  map[string]*failureWindow
	lastSweep time.Time

	now func() time.Time
}

// New wires the engine to its collaborators. resolver may be nil when geo
// enforcement is unavailable.
func New(configs *services.AccessConfigService, rules *services.AccessRuleService,
	logs *services.AccessLogService, notifier *services.NotificationService,
	resolver geo.Resolver) *Warden {
	if resolver == nil {
		resolver = geo.Disabled{}
	}
	return &Warden{
		configs:  configs,
		rules:    rules,
		logs:     logs,
		notifier: notifier,
		geo:      resolver,
		failures: make(map[string]*failureWindow),
		now:      time.Now,
	}
}

// Evaluate runs the decision pipeline and records denied outcomes in the
// access log.
func (w *Warden) Evaluate(rc RequestContext) Decision {
	return w.evaluate(rc, true)
}

// Test runs the decision pipeline without side effects on the outcome log,
// for the dry-run endpoint.
func (w *Warden) Test(rc RequestContext) Decision {
	return w.evaluate(rc, false)
}

func (w *Warden) evaluate(rc RequestContext, record bool) Decision {
	cfg, err := w.configs.Get()
	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("access config unavailable, engine failing open")
		return pass()
	}
	if !cfg.Enabled {
		return pass()
	}

	// Cannot enforce policy on a request whose address is unknown.
	ip, err := ipaddr.NormalizeIP(rc.IP)
	if err != nil {
		return pass()
	}

	metrics.IncAccessRequest()
	w.maybeSweep()

	// A non-empty allow list is exhaustive: matching traffic bypasses every
	// later stage, everything else is denied.
	if cfg.IPAllowList != "" {
		if ipaddr.MatchesAny(ip, cfg.IPAllowList) {
			return pass()
		}
		return w.deny(rc, ip, record, Decision{
			Reason:  "IP not in allow list",
			Outcome: models.OutcomeBlocked,
		})
	}

	if ipaddr.MatchesAny(ip, cfg.IPBlockList) {
		return w.deny(rc, ip, record, Decision{
			Reason:  "IP blocked by list",
			Outcome: models.OutcomeBlocked,
		})
	}

	if d, decided := w.evaluateRules(rc, ip, record); decided {
		return d
	}

	country := strings.ToUpper(w.geo.Country(ip))
	switch cfg.GeoMode {
	case models.GeoModeAllowList:
		// An unresolved country or an empty allow set never denies.
		if country != "" && cfg.AllowedCountries != "" && !hasCountry(cfg.AllowedCountries, country) {
			return w.deny(rc, ip, record, Decision{
				Reason:  "country not permitted",
				Outcome: models.OutcomeBlocked,
				Country: country,
			})
		}
	case models.GeoModeBlockList:
		if country != "" && hasCountry(cfg.BlockedCountries, country) {
			return w.deny(rc, ip, record, Decision{
				Reason:  "country blocked",
				Outcome: models.OutcomeBlocked,
				Country: country,
			})
		}
	}

	if cfg.DefaultPolicy == models.PolicyDeny {
		return w.deny(rc, ip, record, Decision{
			Reason:  "denied by default policy",
			Outcome: models.OutcomeDefaultDeny,
			Country: country,
		})
	}

	return pass()
}

// evaluateRules scans the per-IP rules newest first. The first live rule wins;
// expired rules are deleted in passing.
func (w *Warden) evaluateRules(rc RequestContext, ip string, record bool) (Decision, bool) {
	rules, err := w.rules.ListActiveForIP(ip)
	if err != nil {
		logger.WithFields(map[string]interface{}{"ip": ip, "error": err.Error()}).
			Warn("access rule lookup failed")
		return Decision{}, false
	}

	now := w.now()
	for i := range rules {
		rule := &rules[i]
		if rule.Expired(now) {
			if err := w.rules.DeleteExpired(rule.ID); err != nil {
				logger.WithFields(map[string]interface{}{"rule": rule.UUID, "error": err.Error()}).
					Warn("failed to delete expired rule")
			}
			continue
		}
		if !rule.Blocks() {
			return pass(), true
		}
		return w.deny(rc, ip, record, Decision{
			Reason:   "IP blocked by rule",
			Outcome:  models.OutcomeBlocked,
			RuleUUID: rule.UUID,
		}), true
	}
	return Decision{}, false
}

func (w *Warden) deny(rc RequestContext, ip string, record bool, d Decision) Decision {
	d.Allowed = false
	metrics.IncAccessDenied()
	if record {
		err := w.logs.Record(services.AccessEvent{
			IP:        ip,
			Outcome:   d.Outcome,
			Path:      rc.Path,
			Method:    rc.Method,
			RuleUUID:  d.RuleUUID,
			Reason:    d.Reason,
			Country:   d.Country,
			Blocked:   true,
			UserAgent: rc.UserAgent,
		})
		if err != nil {
			logger.WithFields(map[string]interface{}{"ip": ip, "error": err.Error()}).
				Warn("failed to record access outcome")
		}
	}
	return d
}

// maybeSweep runs the expired-rule sweep at most once per sweepInterval.
// The debounce check holds the lock; the sweep itself does not.
func (w *Warden) maybeSweep() {
	w.mu.Lock()
	now := w.now()
	due := now.Sub(w.lastSweep) >= sweepInterval
	if due {
		w.lastSweep = now
	}
	w.mu.Unlock()

	if !due {
		return
	}
	if n, err := w.rules.SweepExpired(); err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).
			Warn("expired rule sweep failed")
	} else if n > 0 {
		logger.WithFields(map[string]interface{}{"removed": n}).
			Debug("swept expired access rules")
	}
}

// ResolveCountry exposes the geo lookup for the console API.
func (w *Warden) ResolveCountry(ip string) string {
	norm, err := ipaddr.NormalizeIP(ip)
	if err != nil {
		return ""
	}
	return strings.ToUpper(w.geo.Country(norm))
}

// Middleware enforces the engine's verdict on every request. Denials return
// 403 with the human-readable reason only; rule ids and list contents never
// reach the client.
func (w *Warden) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := ContextFromRequest(c)
		d := w.Evaluate(rc)
		if !d.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": d.Reason})
			return
		}
		c.Next()
	}
}

// ContextFromRequest builds a RequestContext from a gin request.
func ContextFromRequest(c *gin.Context) RequestContext {
	return RequestContext{
		IP:        ResolveClientIP(c.GetHeader("X-Forwarded-For"), c.Request.RemoteAddr),
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
		UserAgent: c.Request.UserAgent(),
	}
}

// ResolveClientIP prefers the first hop of a forwarded-for header and falls
// back to the transport-level peer address. Returns "" when neither yields a
// valid address.
func ResolveClientIP(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := forwardedFor
		if idx := strings.Index(first, ","); idx >= 0 {
			first = first[:idx]
		}
		if ip, err := ipaddr.NormalizeIP(first); err == nil {
			return ip
		}
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if ip, err := ipaddr.NormalizeIP(host); err == nil {
		return ip
	}
	return ""
}

// hasCountry reports membership in a comma-separated country code list.
func hasCountry(list, code string) bool {
	for _, c := range strings.Split(list, ",") {
		if strings.TrimSpace(c) == code {
			return true
		}
	}
	return false
}
