package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	accessRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smc_access_requests_total",
		Help: "Total number of requests evaluated by the access engine",
	})
	accessDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smc_access_denied_total",
		Help: "Total number of requests denied by the access engine",
	})
	accessTempBansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smc_access_temp_bans_total",
		Help: "Total number of automatic temp bans issued",
	})
	authFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "smc_auth_failures_total",
		Help: "Total number of authentication failures recorded",
	})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(accessRequestsTotal, accessDeniedTotal, accessTempBansTotal, authFailuresTotal)
}

// IncAccessRequest increments the evaluated requests counter.
func IncAccessRequest() { accessRequestsTotal.Inc() }

// IncAccessDenied increments the denied requests counter.
func IncAccessDenied() { accessDeniedTotal.Inc() }

// IncTempBan increments the automatic ban counter.
func IncTempBan() { accessTempBansTotal.Inc() }

// IncAuthFailure increments the recorded auth failure counter.
func IncAuthFailure() { authFailuresTotal.Inc() }
