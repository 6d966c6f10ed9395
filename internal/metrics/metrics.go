// Package metrics provides Prometheus collectors for the OAuth2 bridge.
//
// Purpose:
//
//	Counters for the login flow, authorization decisions, redirect bindings
//	and the user endpoint. Metrics register with the default registry on
//	import and are served on /metrics.
//
// Dependencies:
//   - github.com/prometheus/client_golang/prometheus: Prometheus Go client
//
// Usage:
//
//	metrics.RecordLoginSuccess()
//	metrics.RecordLoginFailure("invalid_credentials")
//	metrics.RecordAuthorizationDenied("not_team_member")
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "galette_oauth2"

var (
	// LoginAttemptsTotal counts credential submissions by result.
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "attempts_total",
			Help:      "Total number of login form submissions by result",
		},
		[]string{"result"}, // result: success, failure
	)

	// LoginFailuresTotal counts failed logins by reason.
	LoginFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "failures_total",
			Help:      "Total number of failed logins by reason",
		},
		[]string{"reason"}, // reason: invalid_credentials, admin_account, locked, missing_request_parameter, ...
	)

	// LockoutsTotal counts accounts locked after repeated failures.
	LockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "lockouts_total",
			Help:      "Total number of login lockouts",
		},
	)

	// AuthorizationDecisionsTotal counts decisions by outcome and reason.
	AuthorizationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Total number of authorization decisions by outcome and reason",
		},
		[]string{"outcome", "reason"}, // outcome: allow, deny
	)

	// RedirectBindingsTotal counts redirect URI lookups and binds by source.
	RedirectBindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binding",
			Name:      "operations_total",
			Help:      "Total number of redirect binding operations by operation and source",
		},
		[]string{"operation", "source"}, // operation: bind, resolve; source: session, durable, none
	)

	// ClaimsServedTotal counts successful user endpoint responses.
	ClaimsServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "user",
			Name:      "claims_served_total",
			Help:      "Total number of claims payloads served by client",
		},
		[]string{"client_id"},
	)

	// LogoutsTotal counts logouts.
	LogoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "login",
			Name:      "logouts_total",
			Help:      "Total number of logouts",
		},
	)
)

// RecordLoginSuccess records a completed login.
func RecordLoginSuccess() {
	LoginAttemptsTotal.WithLabelValues("success").Inc()
}

// RecordLoginFailure records a failed login.
func RecordLoginFailure(reason string) {
	LoginAttemptsTotal.WithLabelValues("failure").Inc()
	LoginFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordLockout records an account lock.
func RecordLockout() {
	LockoutsTotal.Inc()
}

// RecordAuthorizationAllowed records an allow decision.
func RecordAuthorizationAllowed() {
	AuthorizationDecisionsTotal.WithLabelValues("allow", "").Inc()
}

// RecordAuthorizationDenied records a deny decision.
func RecordAuthorizationDenied(reason string) {
	AuthorizationDecisionsTotal.WithLabelValues("deny", reason).Inc()
}

// RecordBinding records a bind or resolve against the redirect cache.
func RecordBinding(operation, source string) {
	RedirectBindingsTotal.WithLabelValues(operation, source).Inc()
}

// RecordClaimsServed records a successful user endpoint response.
func RecordClaimsServed(clientID string) {
	ClaimsServedTotal.WithLabelValues(clientID).Inc()
}

// RecordLogout records a logout.
func RecordLogout() {
	LogoutsTotal.Inc()
}
