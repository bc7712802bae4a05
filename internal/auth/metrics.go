// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeRejected           = "rejected"
	OutcomeError              = "error"
)

// LoginsTotal counts login attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fellowhub_auth_logins_total",
		Help: "Total number of login attempts",
	},
	[]string{"outcome"},
)

// SignupsTotal counts signups by outcome.
var SignupsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fellowhub_auth_signups_total",
		Help: "Total number of signup attempts",
	},
	[]string{"outcome"},
)

// TokenRedemptionsTotal counts single-use token redemptions.
// kind is "verification" or "reset".
var TokenRedemptionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fellowhub_auth_token_redemptions_total",
		Help: "Total number of single-use token redemption attempts",
	},
	[]string{"kind", "outcome"},
)

// SessionsInvalidatedTotal counts invalidated sessions by reason.
var SessionsInvalidatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fellowhub_auth_sessions_invalidated_total",
		Help: "Total number of sessions invalidated",
	},
	[]string{"reason"},
)

// RefreshTotal counts token refreshes by outcome.
var RefreshTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fellowhub_auth_refresh_total",
		Help: "Total number of token refresh attempts",
	},
	[]string{"outcome"},
)

// EmailsTotal counts email delivery attempts.
var EmailsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "fellowhub_auth_emails_total",
		Help: "Total number of account emails sent",
	},
	[]string{"kind", "outcome"},
)

// PasswordHashSeconds observes password hashing latency.
var PasswordHashSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "fellowhub_auth_password_hash_seconds",
		Help:    "Password hash and verify duration in seconds",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	},
)

// RegisterMetrics registers auth metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		LoginsTotal,
		SignupsTotal,
		TokenRedemptionsTotal,
		SessionsInvalidatedTotal,
		RefreshTotal,
		EmailsTotal,
		PasswordHashSeconds,
	)
}

func observeHash(start time.Time) {
	PasswordHashSeconds.Observe(time.Since(start).Seconds())
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	switch KindOf(err) {
	case KindInvalidCredentials:
		return OutcomeInvalidCredentials
	case KindAccountLocked, KindTooManyAttempts:
		return OutcomeLocked
	case KindInternal:
		return OutcomeError
	default:
		return OutcomeRejected
	}
}
