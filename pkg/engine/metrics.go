package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nyxkrage/quotabar/pkg/statuspage"
)

var (
	// usedPercent tracks the latest used percentage per provider window
	usedPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quotabar_used_percent",
			Help: "Latest used percentage for a provider rate window",
		},
		[]string{"provider", "window"},
	)

	// failureStreak tracks the consecutive fetch failures per provider
	failureStreak = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quotabar_failure_streak",
			Help: "Consecutive usage fetch failures for a provider",
		},
		[]string{"provider"},
	)

	// pollErrors counts usage fetch failures, surfaced or suppressed
	pollErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotabar_poll_errors_total",
			Help: "Total usage fetch failures per provider",
		},
		[]string{"provider"},
	)

	// transitionsTotal counts depletion/refill notifications
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quotabar_quota_transitions_total",
			Help: "Total session quota transitions per provider",
		},
		[]string{"provider", "transition"},
	)

	// statusSeverity exposes the status page indicator as a number
	statusSeverity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quotabar_status_severity",
			Help: "Status page severity (0 none .. 4 critical, -1 unknown)",
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(usedPercent)
	prometheus.MustRegister(failureStreak)
	prometheus.MustRegister(pollErrors)
	prometheus.MustRegister(transitionsTotal)
	prometheus.MustRegister(statusSeverity)
}

func severityValue(indicator statuspage.Indicator) float64 {
	switch indicator {
	case statuspage.IndicatorNone:
		return 0
	case statuspage.IndicatorMaintenance:
		return 1
	case statuspage.IndicatorMinor:
		return 2
	case statuspage.IndicatorMajor:
		return 3
	case statuspage.IndicatorCritical:
		return 4
	default:
		return -1
	}
}
