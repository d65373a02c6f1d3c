package core

import "github.com/prometheus/client_golang/prometheus"

var (
	admissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_app_admissions_total",
			Help: "API key admission decisions by result.",
		},
		[]string{"result"},
	)
	reportCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_app_report_cache_total",
			Help: "Report cache resolutions by outcome.",
		},
		[]string{"outcome"},
	)
	upstreamFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_app_upstream_fetches_total",
			Help: "Weather source fetches by result.",
		},
		[]string{"result"},
	)
	lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_app_lookup_duration_seconds",
			Help:    "Weather report lookup latency by outcome.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(admissionsTotal, reportCacheTotal, upstreamFetchesTotal, lookupDuration)
}
