// Package metrics holds Prometheus instruments that are used across the
// harvester.  All collectors are registered with the global registry, so
// importing this package is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "harvest"

var (
	HarvestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Harvest runs by final status.",
		}, []string{"status"})

	LastSuccessTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last harvest run that completed.",
		})

	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Validated records by verdict (valid, invalid).",
		}, []string{"verdict"})

	RuleFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_failures_total",
			Help:      "Rule failures by record field.",
		}, []string{"field"})

	ValidationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent validating one record.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		})

	ConnectorRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connector_requests_total",
			Help:      "Catalogue requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"})

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications sent by channel and outcome.",
		}, []string{"channel", "outcome"})

	RulesetReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ruleset_reloads_total",
			Help:      "Rule-set file reloads by outcome.",
		}, []string{"outcome"})

	ValidateCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validate_cache_total",
			Help:      "POST /validate verdict cache lookups by result (hit, miss).",
		}, []string{"result"})
)

// Outcome label values.
const (
	OK    = "ok"
	Error = "error"
)

// Outcome maps an error to the outcome label.
func Outcome(err error) string {
	if err != nil {
		return Error
	}
	return OK
}

func init() {
	prometheus.MustRegister(
		HarvestRunsTotal,
		LastSuccessTimestamp,
		RecordsTotal,
		RuleFailuresTotal,
		ValidationSeconds,
		ConnectorRequestsTotal,
		NotificationsTotal,
		RulesetReloadsTotal,
		ValidateCacheTotal,
	)
}
