package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_auth_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// OTPIssued counts one-time codes issued for password resets.
	OTPIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authcore_otp_issued_total",
			Help: "Total number of one-time codes issued",
		},
	)

	// OTPVerifications counts verification checks by outcome (valid|invalid).
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_otp_verifications_total",
			Help: "Total number of one-time code verification checks",
		},
		[]string{"result"},
	)

	// PasswordResets counts completed reset transactions by outcome (success|failure).
	PasswordResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_password_resets_total",
			Help: "Total number of password reset attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authcore_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
