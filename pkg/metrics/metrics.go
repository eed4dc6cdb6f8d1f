// Package metrics registers the service's Prometheus collectors on the default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_board_otp_issued_total",
		Help: "One-time passcodes issued, by intent",
	}, []string{"intent"})

	otpVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_board_otp_verifications_total",
		Help: "Passcode verification attempts, by intent and outcome",
	}, []string{"intent", "outcome"})

	logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_board_logins_total",
		Help: "Login attempts, by outcome",
	}, []string{"outcome"})

	moderation = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_board_moderation_decisions_total",
		Help: "Company moderation actions, by action",
	}, []string{"action"})

	otpSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_board_otp_swept_total",
		Help: "Expired passcode records removed by the sweeper",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "interview_board_http_request_duration_seconds",
		Help:    "HTTP request latency, by method, route and status",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "route", "status"})
)

func OtpIssued(intent string) {
	otpIssued.WithLabelValues(intent).Inc()
}

// OtpVerified records outcome as one of ok, invalid or expired.
func OtpVerified(intent, outcome string) {
	otpVerified.WithLabelValues(intent, outcome).Inc()
}

func Login(outcome string) {
	logins.WithLabelValues(outcome).Inc()
}

func Moderation(action string) {
	moderation.WithLabelValues(action).Inc()
}

func OtpSwept(n int64) {
	otpSwept.Add(float64(n))
}

func ObserveHTTP(method, route, status string, start time.Time) {
	httpDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
}
