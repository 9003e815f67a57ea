// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PopupRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popup_requests_total",
			Help: "Total number of popup requests by resulting status",
		},
		[]string{"status"},
	)

	PopupRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popup_request_errors_total",
			Help: "Total number of popup requests that failed before a response",
		},
		[]string{"error_code"},
	)

	PopupRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "popup_request_duration_seconds",
			Help: "Duration of popup round trips in seconds",
		},
		[]string{"status"},
	)

	PopupRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "popup_requests_in_flight",
			Help: "Number of popup requests currently awaiting a response",
		},
	)
)
